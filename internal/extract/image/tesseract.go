package image

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/casewire/casefile-processor/pkg/logger"
)

// TesseractExtractor is the local OCR backend, selected via the pipeline
// config when processing must not leave the host (air-gapped deployments).
type TesseractExtractor struct {
	language string
	logger   logger.Logger
}

func NewTesseractExtractor(log logger.Logger, language string) *TesseractExtractor {
	if language == "" {
		language = "eng"
	}
	return &TesseractExtractor{
		language: language,
		logger:   log,
	}
}

func (e *TesseractExtractor) CanExtract(mimeType string) bool {
	// Tesseract handles the raster formats; webp/gif are out.
	switch mimeType {
	case "image/jpeg", "image/jpg", "image/png", "image/bmp", "image/tiff":
		return true
	}
	return false
}

func (e *TesseractExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image input")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("tesseract language %q: %w", e.language, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("tesseract set image: %w", err)
	}

	// gosseract has no context support; honor cancellation before the
	// blocking call at least.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract ocr: %w", err)
	}
	return text, nil
}
