package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/casewire/casefile-processor/pkg/logger"
)

const wordDocumentPath = "word/document.xml"

// Extractor pulls text runs out of the DOCX internal XML. It is a
// best-effort scan of <w:t> elements: tables, headers and footers are
// not traversed, and whatever plain text is found is returned rather
// than failing on structure it does not understand.
type Extractor struct {
	logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

func (e *Extractor) CanExtract(mimeType string) bool {
	return mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty docx input")
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx is not a valid zip archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == wordDocumentPath {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("docx missing %s", wordDocumentPath)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document xml: %w", err)
	}
	defer rc.Close()

	text, err := scanTextRuns(rc)
	if err != nil {
		// Partial text is still useful; only fail with nothing to show.
		if text == "" {
			return "", fmt.Errorf("failed to scan document xml: %w", err)
		}
		e.logger.Warn("DOCX scan ended early, returning partial text",
			logger.Error(err),
		)
	}
	return text, nil
}

// scanTextRuns walks the XML token stream collecting w:t character data.
// Paragraph ends (w:p) become newlines so downstream chunking sees
// paragraph boundaries.
func scanTextRuns(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	inTextRun := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sb.String(), err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inTextRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inTextRun = false
			case "p":
				sb.WriteString("\n\n")
			case "br", "cr":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inTextRun {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
