// Package pdftest generates small syllabus PDFs for tests.
package pdftest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

const (
	marginX   = 50.0
	rowHeight = 28.0
	fontSize  = 8.0
)

// Columns are the left edges of the table columns plus the right edge of
// the last one, in points from the left of the page.
var Columns = []float64{50, 330, 550}

// Page describes one page of a generated syllabus.
type Page struct {
	// Headings are drawn above the table, one per line.
	Headings []string
	// Rows are drawn as table rows, one cell per column.
	Rows [][]string
	// Ruled draws the table grid; otherwise cells are only aligned.
	Ruled bool
}

// WriteSyllabus writes a PDF with the given pages to path and fails the test
// on any error.
func WriteSyllabus(tb testing.TB, path string, pages ...Page) {
	tb.Helper()

	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetFont("Helvetica", "", fontSize)
	for _, page := range pages {
		doc.AddPage()
		y := 60.0
		for _, heading := range page.Headings {
			drawWords(doc, marginX, y, heading)
			y += 20
		}
		drawTable(doc, y+10, page)
	}

	require(tb, os.MkdirAll(filepath.Dir(path), 0o755))
	require(tb, doc.OutputFileAndClose(path))
}

// WriteGarbage writes a file with a .pdf name that is not a PDF.
func WriteGarbage(tb testing.TB, path string) {
	tb.Helper()
	require(tb, os.WriteFile(path, []byte("this is not a pdf document\n"), 0o644))
}

func drawTable(doc *gofpdf.Fpdf, top float64, page Page) {
	if len(page.Rows) == 0 {
		return
	}
	for i, row := range page.Rows {
		rowTop := top + float64(i)*rowHeight
		for c, cell := range row {
			if c+1 >= len(Columns) {
				break
			}
			drawWords(doc, Columns[c]+6, rowTop+18, cell)
		}
	}
	if !page.Ruled {
		return
	}

	bottom := top + float64(len(page.Rows))*rowHeight
	left, right := Columns[0], Columns[len(Columns)-1]
	for i := 0; i <= len(page.Rows); i++ {
		y := top + float64(i)*rowHeight
		doc.Line(left, y, right, y)
	}
	for _, x := range Columns {
		doc.Line(x, top, x, bottom)
	}
}

// drawWords places each word separately so word positions survive fonts
// that carry no width table.
func drawWords(doc *gofpdf.Fpdf, x, y float64, text string) {
	for _, word := range strings.Fields(text) {
		doc.Text(x, y, word)
		x += doc.GetStringWidth(word + " ")
	}
}

func require(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatalf("write fixture: %v", err)
	}
}
