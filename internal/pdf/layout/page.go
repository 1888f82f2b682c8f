// Package layout models the positioned content of a PDF page and recovers
// table structure from it.
//
// Coordinates are PDF user space: the origin is the bottom-left corner and Y
// grows upwards, so the top of the page has the largest Y.
package layout

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// RowTolerance is how far apart two baselines may be and still share a line.
	RowTolerance = 3.0
	// wordGapRatio is the horizontal gap, relative to font size, that starts a new word.
	wordGapRatio = 0.2
	// fallbackWordGap applies when a glyph carries no font size.
	fallbackWordGap = 3.0
	// estimatedAdvance approximates a glyph width, relative to font size,
	// when the font provides no width table.
	estimatedAdvance = 0.5
)

// Glyph is a positioned run of text, usually a single character.
type Glyph struct {
	Text     string
	X        float64
	Y        float64
	W        float64
	FontSize float64
	Font     string
}

// Segment is a straight rule drawn on the page.
type Segment struct {
	X0, Y0, X1, Y1 float64
}

// Page is the positioned content of one page.
type Page struct {
	Number   int
	Width    float64
	Height   float64
	Glyphs   []Glyph
	Segments []Segment
}

// Word is a run of glyphs on one line with no significant gap between them.
type Word struct {
	Text     string
	X0       float64
	X1       float64
	Y        float64
	FontSize float64
}

// Center returns the horizontal midpoint of the word.
func (w Word) Center() float64 {
	return (w.X0 + w.X1) / 2
}

// Line is a row of words sharing a baseline, ordered left to right.
type Line struct {
	Y      float64
	Glyphs []Glyph
	Words  []Word
}

// Text joins the words of the line with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Lines groups the page glyphs into lines, top to bottom.
func (p *Page) Lines() []Line {
	return BuildLines(p.Glyphs)
}

// Text returns the page text, one line per row of glyphs.
func (p *Page) Text() string {
	return JoinLines(p.Lines())
}

// JoinLines renders lines as newline separated text.
func JoinLines(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if text := l.Text(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// BuildLines groups glyphs whose baselines lie within RowTolerance of each
// other. Glyphs are never reordered beyond what sorting by position requires,
// so text drawn at a single position keeps its content order.
func BuildLines(glyphs []Glyph) []Line {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if strings.TrimSpace(g.Text) == "" {
			continue
		}
		sorted = append(sorted, g)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	var lines []Line
	for _, g := range sorted {
		n := len(lines)
		if n > 0 && math.Abs(lines[n-1].Y-g.Y) <= RowTolerance {
			lines[n-1].Glyphs = append(lines[n-1].Glyphs, g)
			continue
		}
		lines = append(lines, Line{Y: g.Y, Glyphs: []Glyph{g}})
	}

	for i := range lines {
		gs := lines[i].Glyphs
		sort.SliceStable(gs, func(a, b int) bool {
			return gs[a].X < gs[b].X
		})
		lines[i].Words = buildWords(gs, lines[i].Y)
	}
	return lines
}

func buildWords(glyphs []Glyph, y float64) []Word {
	var (
		words []Word
		sb    strings.Builder
		cur   Word
		// end of the previous glyph as reported by the font, used for gaps
		lastEnd float64
	)

	flush := func() {
		if sb.Len() == 0 {
			return
		}
		cur.Text = sb.String()
		words = append(words, cur)
		sb.Reset()
	}

	for i, g := range glyphs {
		threshold := fallbackWordGap
		if g.FontSize > 0 {
			threshold = wordGapRatio * g.FontSize
		}
		if i > 0 && g.X-lastEnd > threshold {
			flush()
		}
		if sb.Len() == 0 {
			cur = Word{X0: g.X, X1: g.X, Y: y, FontSize: g.FontSize}
		}
		sb.WriteString(g.Text)
		if end := g.X + extent(g); end > cur.X1 {
			cur.X1 = end
		}
		if g.W <= 0 {
			// Without a width table every glyph of a run shares one origin, so
			// estimate the word extent from its length.
			est := cur.X0 + estimatedAdvance*g.FontSize*float64(utf8.RuneCountInString(sb.String()))
			if est > cur.X1 {
				cur.X1 = est
			}
		}
		lastEnd = g.X + g.W
	}
	flush()
	return words
}

func extent(g Glyph) float64 {
	if g.W > 0 {
		return g.W
	}
	return estimatedAdvance * g.FontSize * float64(utf8.RuneCountInString(g.Text))
}
