package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casewire/casefile-processor/pkg/logger"
)

type fakeUploader struct {
	bucket      string
	key         string
	data        []byte
	contentType string
	err         error
}

func (f *fakeUploader) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.bucket = bucket
	f.key = key
	f.data = data
	f.contentType = contentType
	return "https://cdn.example.com/" + key, nil
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := imaging.New(w, h, image.White.C)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, "thumbnails/abc-123.jpg", Key("abc-123"))
	assert.Equal(t, Key("f1"), Key("f1"))
}

func TestGenerateResizesImage(t *testing.T) {
	up := &fakeUploader{}
	g := NewGenerator(up, 300, logger.NewTestLogger())

	url, err := g.Generate(context.Background(), encodePNG(t, 1200, 600), "image/png", "f1")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/thumbnails/f1.jpg", url)
	assert.Equal(t, "thumbnails/f1.jpg", up.key)
	assert.Equal(t, "image/jpeg", up.contentType)

	thumb, err := imaging.Decode(bytes.NewReader(up.data))
	require.NoError(t, err)
	// Fit preserves aspect ratio inside the bounding box.
	assert.Equal(t, 300, thumb.Bounds().Dx())
	assert.Equal(t, 150, thumb.Bounds().Dy())
}

func TestGenerateCorruptImageFallsBackToPlaceholder(t *testing.T) {
	up := &fakeUploader{}
	g := NewGenerator(up, 300, logger.NewTestLogger())

	url, err := g.Generate(context.Background(), []byte("not an image"), "image/png", "f2")

	require.NoError(t, err)
	assert.NotEmpty(t, url)

	thumb, err := imaging.Decode(bytes.NewReader(up.data))
	require.NoError(t, err)
	assert.Equal(t, 300, thumb.Bounds().Dx())
	assert.Equal(t, 300, thumb.Bounds().Dy())
}

func TestGeneratePDFWithoutEmbeddedImageUsesPlaceholder(t *testing.T) {
	up := &fakeUploader{}
	g := NewGenerator(up, 200, logger.NewTestLogger())

	url, err := g.Generate(context.Background(), []byte("%PDF-1.4 no images here"), "application/pdf", "f3")

	require.NoError(t, err)
	assert.NotEmpty(t, url)

	thumb, err := imaging.Decode(bytes.NewReader(up.data))
	require.NoError(t, err)
	assert.Equal(t, 200, thumb.Bounds().Dx())
}

func TestGenerateUnknownTypeUsesPlaceholder(t *testing.T) {
	up := &fakeUploader{}
	g := NewGenerator(up, 300, logger.NewTestLogger())

	url, err := g.Generate(context.Background(), []byte{0x00, 0x01}, "application/octet-stream", "f4")

	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.NotEmpty(t, up.data)
}

func TestGenerateUploadFailure(t *testing.T) {
	up := &fakeUploader{err: errors.New("bucket unavailable")}
	g := NewGenerator(up, 300, logger.NewTestLogger())

	_, err := g.Generate(context.Background(), encodePNG(t, 10, 10), "image/png", "f5")

	assert.Error(t, err)
}

func TestFindEmbeddedJPEG(t *testing.T) {
	payload := append([]byte("stream "), 0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0xFF, 0xD9)
	payload = append(payload, []byte(" endstream")...)

	jpeg, ok := findEmbeddedJPEG(payload)
	require.True(t, ok)
	assert.Equal(t, byte(0xFF), jpeg[0])
	assert.Equal(t, byte(0xD9), jpeg[len(jpeg)-1])

	_, ok = findEmbeddedJPEG([]byte("no jpeg markers"))
	assert.False(t, ok)
}

func TestCategory(t *testing.T) {
	cases := map[string]string{
		"application/pdf": "document",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "document",
		"application/vnd.ms-excel": "spreadsheet",
		"text/csv":                 "spreadsheet",
		"application/zip":          "archive",
		"audio/mpeg":               "audio",
		"video/mp4":                "video",
		"text/plain":               "text",
		"application/x-unknown":    "file",
	}
	for mime, want := range cases {
		assert.Equal(t, want, Category(mime), mime)
	}
}
