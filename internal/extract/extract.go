package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/casewire/casefile-processor/pkg/logger"
)

// Extractor converts raw file bytes into plain text.
type Extractor interface {
	// CanExtract checks whether this extractor handles the MIME type.
	CanExtract(mimeType string) bool

	// Extract returns the text content of the file. An empty string with
	// a nil error is a valid result (e.g. OCR on a blank page).
	Extract(ctx context.Context, data []byte) (string, error)
}

// ErrUnsupportedType marks MIME types no extractor is registered for.
type ErrUnsupportedType struct {
	MimeType string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported content type: %s", e.MimeType)
}

// Extension to MIME type mapping for upload paths that only carry a name.
var extToMIME = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// MimeFromExtension resolves a file extension (".pdf") to its MIME type.
func MimeFromExtension(ext string) (string, bool) {
	mime, ok := extToMIME[strings.ToLower(ext)]
	return mime, ok
}

// Factory routes a MIME type to the extractor registered for it.
type Factory struct {
	extractors []Extractor
	logger     logger.Logger
}

func NewFactory(log logger.Logger, extractors ...Extractor) *Factory {
	return &Factory{
		extractors: extractors,
		logger:     log,
	}
}

// GetExtractor returns the first extractor claiming the MIME type.
// Parameters after ";" (charset etc.) are stripped before matching.
func (f *Factory) GetExtractor(mimeType string) (Extractor, error) {
	normalized := normalizeMime(mimeType)

	for _, e := range f.extractors {
		if e.CanExtract(normalized) {
			return e, nil
		}
	}

	f.logger.Warn("No extractor registered",
		logger.String("mimeType", normalized),
	)
	return nil, &ErrUnsupportedType{MimeType: normalized}
}

func normalizeMime(mimeType string) string {
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
