package pipeline

import "errors"

// Error kinds per failure unit. Only ErrFatalInput aborts a run; every
// other kind degrades the outcome of its unit (chunk, window, thumbnail)
// and is surfaced in the file's processing metadata.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrExtractionFailure = errors.New("extraction failure")
	ErrThumbnailFailure  = errors.New("thumbnail failure")
	ErrEmbeddingService  = errors.New("embedding service failure")
	ErrEntityService     = errors.New("entity service failure")
	ErrStoreWrite        = errors.New("store write failure")
	ErrFatalInput        = errors.New("fatal input error")
)
