// Package pdf loads syllabus PDFs into positioned page models: text glyphs
// from the text layer and straight rules from the page content streams.
package pdf

import (
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/a3tai/syllabus-extractor/internal/pdf/errors"
	"github.com/a3tai/syllabus-extractor/internal/pdf/layout"
)

// Document is an open PDF. The text layer is read with ledongthuc/pdf and
// the object graph with pdfcpu; when pdfcpu cannot read the file the
// rectangles reported by the text layer stand in for the content-stream rules.
type Document struct {
	path   string
	file   *os.File
	reader *pdf.Reader
	ctx    *model.Context
	dims   []types.Dim
	pages  int
}

// Open validates and opens the PDF at path. Any failure, including a panic
// inside either PDF library, is returned as an ErrorTypeDocumentRead error.
func Open(path string, maxFileSize int64) (*Document, error) {
	if _, err := NewValidator(maxFileSize).ValidateFile(path); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeDocumentRead, err).WithFile(path)
	}

	doc := &Document{path: path}
	err := pdferrors.Guard(pdferrors.ErrorTypeDocumentRead, func() error {
		f, reader, err := pdf.Open(path)
		if err != nil {
			return fmt.Errorf("open text layer: %w", err)
		}
		doc.file = f
		doc.reader = reader
		doc.pages = reader.NumPage()
		return nil
	})
	if err != nil {
		doc.Close()
		return nil, asDocumentError(err, path)
	}
	if doc.pages == 0 {
		doc.Close()
		return nil, pdferrors.New(pdferrors.ErrorTypeDocumentRead, "document has no pages").WithFile(path)
	}

	// pdfcpu only contributes content streams and page sizes, so a failure
	// here degrades rule detection instead of failing the document.
	_ = pdferrors.Guard(pdferrors.ErrorTypeDocumentRead, func() error {
		ctx, err := readContext(path)
		if err != nil {
			return err
		}
		doc.ctx = ctx
		if dims, err := ctx.PageDims(); err == nil {
			doc.dims = dims
		}
		return nil
	})

	return doc, nil
}

func readContext(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// Path returns the file the document was opened from.
func (d *Document) Path() string {
	return d.path
}

// NumPages returns the number of pages in the text layer.
func (d *Document) NumPages() int {
	return d.pages
}

// HasContentStreams reports whether rules come from the page content streams
// rather than the text layer rectangles.
func (d *Document) HasContentStreams() bool {
	return d.ctx != nil
}

// Page loads page n (1-based). Errors and panics are returned as
// ErrorTypePageExtraction errors so callers can skip the page.
func (d *Document) Page(n int) (*layout.Page, error) {
	if n < 1 || n > d.pages {
		return nil, pdferrors.New(pdferrors.ErrorTypePageExtraction,
			fmt.Sprintf("invalid page number %d (document has %d pages)", n, d.pages)).WithFile(d.path)
	}

	page := &layout.Page{Number: n}
	if n <= len(d.dims) {
		page.Width = d.dims[n-1].Width
		page.Height = d.dims[n-1].Height
	}

	err := pdferrors.Guard(pdferrors.ErrorTypePageExtraction, func() error {
		p := d.reader.Page(n)
		if p.V.IsNull() {
			return fmt.Errorf("page object missing")
		}

		content := p.Content()
		page.Glyphs = make([]layout.Glyph, 0, len(content.Text))
		for _, t := range content.Text {
			page.Glyphs = append(page.Glyphs, layout.Glyph{
				Text:     t.S,
				X:        t.X,
				Y:        t.Y,
				W:        t.W,
				FontSize: t.FontSize,
				Font:     t.Font,
			})
		}

		segments, err := d.contentRules(n)
		if err != nil || segments == nil {
			segments = rectSegments(content.Rect)
		}
		page.Segments = segments
		return nil
	})
	if err != nil {
		if e, ok := err.(*pdferrors.ExtractionError); ok {
			return nil, e.WithFile(d.path).WithPage(n)
		}
		return nil, pdferrors.Wrap(pdferrors.ErrorTypePageExtraction, err).WithFile(d.path).WithPage(n)
	}
	return page, nil
}

func (d *Document) contentRules(n int) ([]layout.Segment, error) {
	if d.ctx == nil {
		return nil, fmt.Errorf("no content streams")
	}
	var (
		segments []layout.Segment
		scanErr  error
	)
	err := pdferrors.Guard(pdferrors.ErrorTypePageExtraction, func() error {
		r, err := pdfcpu.ExtractPageContent(d.ctx, n)
		if err != nil {
			return err
		}
		if r == nil {
			segments = []layout.Segment{}
			return nil
		}
		segments, scanErr = ScanRules(r)
		if segments == nil {
			segments = []layout.Segment{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil && scanErr != io.EOF && len(segments) == 0 {
		return nil, scanErr
	}
	return segments, nil
}

func rectSegments(rects []pdf.Rect) []layout.Segment {
	segments := make([]layout.Segment, 0, 4*len(rects))
	for _, r := range rects {
		x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
		segments = append(segments,
			layout.Segment{X0: x0, Y0: y0, X1: x1, Y1: y0},
			layout.Segment{X0: x1, Y0: y0, X1: x1, Y1: y1},
			layout.Segment{X0: x1, Y0: y1, X1: x0, Y1: y1},
			layout.Segment{X0: x0, Y0: y1, X1: x0, Y1: y0},
		)
	}
	return segments
}

// Close releases the underlying file.
func (d *Document) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func asDocumentError(err error, path string) error {
	if e, ok := err.(*pdferrors.ExtractionError); ok {
		return e.WithFile(path)
	}
	return pdferrors.Wrap(pdferrors.ErrorTypeDocumentRead, err).WithFile(path)
}
