package image

import (
	"context"
	"fmt"

	"github.com/casewire/casefile-processor/pkg/logger"
)

// OCRClient is the vision endpoint: inline image bytes in, visible text out.
type OCRClient interface {
	ImageText(ctx context.Context, mimeType string, data []byte) (string, error)
}

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/webp": true,
	"image/tiff": true,
}

// Extractor sends image bytes to the OCR-capable vision endpoint.
type Extractor struct {
	ocr    OCRClient
	logger logger.Logger
}

func NewExtractor(log logger.Logger, ocr OCRClient) *Extractor {
	return &Extractor{
		ocr:    ocr,
		logger: log,
	}
}

func (e *Extractor) CanExtract(mimeType string) bool {
	return supportedTypes[mimeType]
}

// Extract runs OCR on the image. The MIME type is re-detected from the
// bytes when possible so a mislabeled upload still OCRs correctly.
// Empty OCR output is a valid result (blank image), not an error.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image input")
	}

	mimeType := sniffImageMime(data)

	text, err := e.ocr.ImageText(ctx, mimeType, data)
	if err != nil {
		return "", fmt.Errorf("image ocr: %w", err)
	}
	return text, nil
}

// sniffImageMime detects the image format from magic bytes, defaulting
// to JPEG when unrecognized.
func sniffImageMime(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png"
	case len(data) >= 3 && string(data[:3]) == "GIF":
		return "image/gif"
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return "image/bmp"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	case len(data) >= 4 && (string(data[:4]) == "II*\x00" || string(data[:4]) == "MM\x00*"):
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}
