package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"
)

var supportedTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
	"text/csv":      true,
}

// Extractor decodes bytes as UTF-8, replacing invalid sequences.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) CanExtract(mimeType string) bool {
	return supportedTypes[mimeType] || strings.HasPrefix(mimeType, "text/")
}

func (e *Extractor) Extract(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}
