package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/casewire/casefile-processor/pkg/logger"
)

// Uploader is the slice of object storage the generator needs.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}

// Generator renders small JPEG previews and stores them under a
// deterministic per-file key, so regeneration overwrites in place.
type Generator struct {
	storage   Uploader
	maxPixels int
	logger    logger.Logger
}

func NewGenerator(storage Uploader, maxPixels int, log logger.Logger) *Generator {
	if maxPixels <= 0 {
		maxPixels = 300
	}
	return &Generator{
		storage:   storage,
		maxPixels: maxPixels,
		logger:    log,
	}
}

// Key returns the deterministic object key for a file's thumbnail.
func Key(fileID string) string {
	return fmt.Sprintf("thumbnails/%s.jpg", fileID)
}

// Generate produces a preview for the file and uploads it, returning the
// retrieval URL. Images are resized to fit the bounding box; PDFs are
// probed for an embedded page image; everything else gets a category
// placeholder tile. Render failures degrade to the placeholder before
// giving up entirely.
func (g *Generator) Generate(ctx context.Context, data []byte, mimeType, fileID string) (string, error) {
	var (
		img image.Image
		err error
	)

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		img, err = g.fromImage(data)
	case mimeType == "application/pdf":
		img, err = g.fromPDF(data)
	default:
		img = placeholderTile(Category(mimeType), g.maxPixels)
	}

	if err != nil {
		g.logger.Warn("Thumbnail render failed, using placeholder",
			logger.String("fileId", fileID),
			logger.String("mimeType", mimeType),
			logger.Error(err),
		)
		img = placeholderTile(Category(mimeType), g.maxPixels)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	url, err := g.storage.Upload(ctx, "", Key(fileID), buf.Bytes(), "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}
	return url, nil
}

func (g *Generator) fromImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return imaging.Fit(img, g.maxPixels, g.maxPixels, imaging.Lanczos), nil
}

// fromPDF looks for an embedded JPEG object (scanned PDFs store page
// rasters as DCTDecode streams). There is no pure-Go page rasterizer, so
// a PDF without an embedded image falls back to the document placeholder.
func (g *Generator) fromPDF(data []byte) (image.Image, error) {
	jpegBytes, ok := findEmbeddedJPEG(data)
	if !ok {
		return placeholderTile("document", g.maxPixels), nil
	}

	img, err := imaging.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return placeholderTile("document", g.maxPixels), nil
	}
	return imaging.Fit(img, g.maxPixels, g.maxPixels, imaging.Lanczos), nil
}

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

func findEmbeddedJPEG(data []byte) ([]byte, bool) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		return nil, false
	}
	end := bytes.Index(data[start:], jpegEOI)
	if end < 0 {
		return nil, false
	}
	return data[start : start+end+len(jpegEOI)], true
}

// Category maps a MIME type to the coarse file-type bucket used for
// placeholder styling.
func Category(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	// CSV must beat the generic text/ prefix.
	case strings.Contains(mimeType, "spreadsheet") || strings.Contains(mimeType, "excel") || mimeType == "text/csv":
		return "spreadsheet"
	case strings.HasPrefix(mimeType, "text/"):
		return "text"
	case strings.Contains(mimeType, "presentation") || strings.Contains(mimeType, "powerpoint"):
		return "presentation"
	case strings.Contains(mimeType, "zip") || strings.Contains(mimeType, "tar") || strings.Contains(mimeType, "compressed"):
		return "archive"
	case strings.Contains(mimeType, "pdf") || strings.Contains(mimeType, "word") || strings.Contains(mimeType, "document"):
		return "document"
	default:
		return "file"
	}
}

var categoryColors = map[string]color.NRGBA{
	"document":     {R: 0x3B, G: 0x6E, B: 0xA5, A: 0xFF},
	"spreadsheet":  {R: 0x2E, G: 0x7D, B: 0x4F, A: 0xFF},
	"presentation": {R: 0xC0, G: 0x5A, B: 0x2E, A: 0xFF},
	"archive":      {R: 0x8A, G: 0x6D, B: 0x3B, A: 0xFF},
	"audio":        {R: 0x6B, G: 0x4E, B: 0x9E, A: 0xFF},
	"video":        {R: 0x9E, G: 0x2F, B: 0x4E, A: 0xFF},
	"text":         {R: 0x55, G: 0x5F, B: 0x6B, A: 0xFF},
	"file":         {R: 0x70, G: 0x70, B: 0x70, A: 0xFF},
}

// placeholderTile draws a flat file-icon tile: colored page with a folded
// corner, on a light background.
func placeholderTile(category string, size int) image.Image {
	bg := color.NRGBA{R: 0xF2, G: 0xF3, B: 0xF5, A: 0xFF}
	fill, ok := categoryColors[category]
	if !ok {
		fill = categoryColors["file"]
	}

	tile := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(tile, tile.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	// Page body, centered, portrait aspect.
	pageW := size * 5 / 10
	pageH := size * 7 / 10
	x0 := (size - pageW) / 2
	y0 := (size - pageH) / 2
	page := image.Rect(x0, y0, x0+pageW, y0+pageH)
	draw.Draw(tile, page, &image.Uniform{C: fill}, image.Point{}, draw.Src)

	// Folded corner.
	fold := pageW / 4
	light := color.NRGBA{
		R: lighten(fill.R), G: lighten(fill.G), B: lighten(fill.B), A: 0xFF,
	}
	for dy := 0; dy < fold; dy++ {
		for dx := fold - dy; dx > 0; dx-- {
			tile.SetNRGBA(x0+pageW-dx, y0+dy, light)
		}
	}

	return tile
}

func lighten(c uint8) uint8 {
	v := int(c) + 80
	if v > 0xFF {
		v = 0xFF
	}
	return uint8(v)
}
