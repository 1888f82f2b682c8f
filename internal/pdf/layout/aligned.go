package layout

import (
	"sort"
	"strings"
)

// AlignedStrategy finds tables laid out with whitespace instead of rules.
// A column boundary is a gap that recurs at the same position across lines
// and is rarely crossed by a word.
type AlignedStrategy struct {
	// MinGap is the smallest horizontal gap that may separate two columns.
	MinGap float64
	// MaxCrossRatio bounds the share of split lines that may have a word
	// straddling an accepted boundary.
	MaxCrossRatio float64
	// MinRows is the number of multi-cell lines a table needs.
	MinRows int
}

// NewAlignedStrategy returns a strategy with a 15pt minimum column gap.
func NewAlignedStrategy() *AlignedStrategy {
	return &AlignedStrategy{MinGap: 15, MaxCrossRatio: 0.25, MinRows: 2}
}

// Name implements Strategy.
func (s *AlignedStrategy) Name() string { return "text" }

// FindTables implements Strategy.
func (s *AlignedStrategy) FindTables(page *Page) []Table {
	lines := page.Lines()
	if len(lines) < s.MinRows {
		return nil
	}

	boundaries := s.boundaries(lines)
	if len(boundaries) == 0 {
		return nil
	}

	rows := make([][]string, len(lines))
	first, last, multi := -1, -1, 0
	for i, l := range lines {
		rows[i] = split(l, boundaries)
		filled := 0
		for _, cell := range rows[i] {
			if cell != "" {
				filled++
			}
		}
		if filled >= 2 {
			if first < 0 {
				first = i
			}
			last = i
			multi++
		}
	}
	if multi < s.MinRows {
		return nil
	}

	return []Table{{Strategy: s.Name(), Rows: rows[first : last+1]}}
}

// boundaries returns the accepted column boundaries in ascending order.
func (s *AlignedStrategy) boundaries(lines []Line) []float64 {
	var gaps []gap
	for _, l := range lines {
		for i := 0; i+1 < len(l.Words); i++ {
			if l.Words[i+1].X0-l.Words[i].X1 >= s.MinGap {
				gaps = append(gaps, gap{lo: l.Words[i].X1, hi: l.Words[i+1].X0})
			}
		}
	}
	if len(gaps) == 0 {
		return nil
	}

	var accepted []float64
	for _, b := range mergeGaps(gaps) {
		splitLines, crossed := 0, 0
		for _, l := range lines {
			left, right, cross := false, false, false
			for _, w := range l.Words {
				switch {
				case w.X1 <= b:
					left = true
				case w.X0 >= b:
					right = true
				default:
					cross = true
				}
			}
			if left && right {
				splitLines++
			}
			if cross {
				crossed++
			}
		}
		if splitLines >= s.MinRows && float64(crossed) <= s.MaxCrossRatio*float64(splitLines) {
			accepted = append(accepted, b)
		}
	}
	return dedupe(accepted, s.MinGap)
}

// gap is the empty horizontal span between two words on a line.
type gap struct {
	lo float64
	hi float64
}

// mergeGaps clusters overlapping gaps from different lines and returns the
// midpoint of each cluster's common span.
func mergeGaps(gaps []gap) []float64 {
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].lo < gaps[j].lo })

	var out []float64
	cur := gaps[0]
	for _, g := range gaps[1:] {
		if g.lo <= cur.hi {
			cur.lo = max(cur.lo, g.lo)
			cur.hi = min(cur.hi, g.hi)
			continue
		}
		out = append(out, (cur.lo+cur.hi)/2)
		cur = g
	}
	return append(out, (cur.lo+cur.hi)/2)
}

// split assigns the words of a line to columns by their centre.
func split(l Line, boundaries []float64) []string {
	cells := make([][]string, len(boundaries)+1)
	for _, w := range l.Words {
		col := sort.SearchFloat64s(boundaries, w.Center())
		cells[col] = append(cells[col], w.Text)
	}
	row := make([]string, len(cells))
	for i, words := range cells {
		row[i] = strings.Join(words, " ")
	}
	return row
}
