package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/casewire/casefile-processor/pkg/logger"
)

// OCRClient runs image-to-text on inline media. Scanned PDFs with no text
// layer are forwarded whole; the vision endpoint accepts application/pdf.
type OCRClient interface {
	ImageText(ctx context.Context, mimeType string, data []byte) (string, error)
}

type Extractor struct {
	ocr        OCRClient
	maxPages   int
	maxWorkers int
	logger     logger.Logger
}

// NewExtractor builds a PDF extractor. ocr may be nil, in which case
// scanned PDFs yield empty text instead of an OCR pass.
func NewExtractor(log logger.Logger, ocr OCRClient, maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = 100
	}
	return &Extractor{
		ocr:        ocr,
		maxPages:   maxPages,
		maxWorkers: 4,
		logger:     log,
	}
}

func (e *Extractor) CanExtract(mimeType string) bool {
	return mimeType == "application/pdf"
}

// Extract reads the embedded text layer page by page. Corrupt documents
// return an error rather than panic; the pdf library can panic on
// malformed xref tables, so page reads are recovered individually.
func (e *Extractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty pdf input")
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages > e.maxPages {
		e.logger.Warn("PDF exceeds page cap, truncating",
			logger.Int("pages", numPages),
			logger.Int("cap", e.maxPages),
		)
		numPages = e.maxPages
	}

	type pageText struct {
		page int
		text string
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make(chan pageText, numPages)
	sem := make(chan struct{}, e.maxWorkers)

	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			content, pageErr := e.readPage(pdfReader, pageNum)
			if pageErr != nil {
				// A single unreadable page degrades the result, it does
				// not fail the document.
				e.logger.Warn("Failed to read pdf page",
					logger.Int("page", pageNum),
					logger.Error(pageErr),
				)
				return nil
			}

			select {
			case results <- pageText{page: pageNum, text: content}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	pages := make([]pageText, 0, numPages)
	for pt := range results {
		pages = append(pages, pt)
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	sort.Slice(pages, func(a, b int) bool { return pages[a].page < pages[b].page })

	var sb strings.Builder
	for _, pt := range pages {
		if strings.TrimSpace(pt.text) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(pt.text)
	}

	extracted := sb.String()
	if strings.TrimSpace(extracted) != "" {
		return extracted, nil
	}

	// No text layer: treat it like a scanned document.
	if e.ocr == nil {
		e.logger.Warn("PDF has no text layer and no OCR client is configured")
		return "", nil
	}

	e.logger.Info("PDF has no text layer, falling back to OCR")
	ocrText, err := e.ocr.ImageText(ctx, "application/pdf", data)
	if err != nil {
		return "", fmt.Errorf("pdf ocr fallback: %w", err)
	}
	return ocrText, nil
}

func (e *Extractor) readPage(r *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page panic: %v", rec)
		}
	}()

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
