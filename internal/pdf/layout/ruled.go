package layout

import (
	"math"
	"sort"
)

// axisTolerance is how far a rule may lean and still count as horizontal or vertical.
const axisTolerance = 1.0

type rule struct {
	pos  float64
	from float64
	to   float64
}

type band struct {
	top    float64
	bottom float64
	xs     []float64
}

// RuledStrategy finds tables outlined by drawn rules. Horizontal rules
// delimit rows and vertical rules spanning a row delimit its cells.
type RuledStrategy struct {
	SnapTolerance float64
	JoinTolerance float64
	MinLength     float64
}

// NewRuledStrategy returns a strategy with 3pt snap and join tolerances.
func NewRuledStrategy() *RuledStrategy {
	return &RuledStrategy{SnapTolerance: 3, JoinTolerance: 3, MinLength: 3}
}

// Name implements Strategy.
func (s *RuledStrategy) Name() string { return "lines" }

// FindTables implements Strategy.
func (s *RuledStrategy) FindTables(page *Page) []Table {
	hs, vs := s.rules(page.Segments)
	if len(hs) < 2 || len(vs) < 2 {
		return nil
	}

	var ys []float64
	for _, h := range hs {
		if len(ys) == 0 || ys[len(ys)-1] != h.pos {
			ys = append(ys, h.pos)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

	var (
		groups  [][]band
		current []band
	)
	for i := 0; i+1 < len(ys); i++ {
		b, ok := s.band(ys[i], ys[i+1], hs, vs)
		if !ok {
			if len(current) > 0 {
				groups = append(groups, current)
				current = nil
			}
			continue
		}
		current = append(current, b)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	if len(groups) == 0 {
		return nil
	}

	return fillCells(groups, page.Glyphs, s.Name())
}

// band validates the row between two horizontal rules.
func (s *RuledStrategy) band(top, bottom float64, hs, vs []rule) (band, bool) {
	var xs []float64
	for _, v := range vs {
		if v.from <= bottom+s.SnapTolerance && v.to >= top-s.SnapTolerance {
			xs = append(xs, v.pos)
		}
	}
	sort.Float64s(xs)
	xs = dedupe(xs, s.SnapTolerance)
	if len(xs) < 2 {
		return band{}, false
	}

	left, right := xs[0], xs[len(xs)-1]
	if !covered(hs, top, left, right, s.SnapTolerance) || !covered(hs, bottom, left, right, s.SnapTolerance) {
		return band{}, false
	}
	return band{top: top, bottom: bottom, xs: xs}, true
}

// rules splits segments into snapped and joined horizontal and vertical rules.
func (s *RuledStrategy) rules(segments []Segment) (hs, vs []rule) {
	for _, seg := range segments {
		dx := math.Abs(seg.X1 - seg.X0)
		dy := math.Abs(seg.Y1 - seg.Y0)
		switch {
		case dy <= axisTolerance && dx >= s.MinLength:
			hs = append(hs, rule{
				pos:  (seg.Y0 + seg.Y1) / 2,
				from: min(seg.X0, seg.X1),
				to:   max(seg.X0, seg.X1),
			})
		case dx <= axisTolerance && dy >= s.MinLength:
			vs = append(vs, rule{
				pos:  (seg.X0 + seg.X1) / 2,
				from: min(seg.Y0, seg.Y1),
				to:   max(seg.Y0, seg.Y1),
			})
		}
	}
	return join(snap(hs, s.SnapTolerance), s.JoinTolerance), join(snap(vs, s.SnapTolerance), s.JoinTolerance)
}

// snap moves rules whose positions lie within tolerance of their neighbour
// onto the mean position of their cluster.
func snap(rules []rule, tolerance float64) []rule {
	if len(rules) == 0 {
		return nil
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].pos < rules[j].pos })

	start := 0
	for i := 1; i <= len(rules); i++ {
		if i < len(rules) && rules[i].pos-rules[i-1].pos <= tolerance {
			continue
		}
		var sum float64
		for _, r := range rules[start:i] {
			sum += r.pos
		}
		mean := sum / float64(i-start)
		for k := start; k < i; k++ {
			rules[k].pos = mean
		}
		start = i
	}
	return rules
}

// join merges collinear rules whose ends are within tolerance.
func join(rules []rule, tolerance float64) []rule {
	if len(rules) == 0 {
		return nil
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].pos != rules[j].pos {
			return rules[i].pos < rules[j].pos
		}
		return rules[i].from < rules[j].from
	})

	out := []rule{rules[0]}
	for _, r := range rules[1:] {
		last := &out[len(out)-1]
		if r.pos == last.pos && r.from <= last.to+tolerance {
			last.to = max(last.to, r.to)
			continue
		}
		out = append(out, r)
	}
	return out
}

func covered(hs []rule, y, left, right, tolerance float64) bool {
	for _, h := range hs {
		if math.Abs(h.pos-y) <= tolerance && h.from < right && h.to > left {
			return true
		}
	}
	return false
}

func dedupe(xs []float64, tolerance float64) []float64 {
	var out []float64
	for _, x := range xs {
		if len(out) > 0 && x-out[len(out)-1] <= tolerance {
			continue
		}
		out = append(out, x)
	}
	return out
}

// fillCells places every glyph into the cell containing its reference point
// and renders each cell as newline separated lines.
func fillCells(groups [][]band, glyphs []Glyph, strategy string) []Table {
	cells := make([][][][]Glyph, len(groups))
	for t, bands := range groups {
		cells[t] = make([][][]Glyph, len(bands))
		for b, bd := range bands {
			cells[t][b] = make([][]Glyph, len(bd.xs)-1)
		}
	}

	for _, g := range glyphs {
		rx := g.X + extent(g)/2
		ry := g.Y + 0.3*g.FontSize
		t, b, c, ok := locate(groups, rx, ry)
		if !ok {
			continue
		}
		cells[t][b][c] = append(cells[t][b][c], g)
	}

	tables := make([]Table, 0, len(groups))
	for t, bands := range groups {
		rows := make([][]string, len(bands))
		for b := range bands {
			row := make([]string, len(cells[t][b]))
			for c, gs := range cells[t][b] {
				row[c] = JoinLines(BuildLines(gs))
			}
			rows[b] = row
		}
		tables = append(tables, Table{Strategy: strategy, Rows: rows})
	}
	return tables
}

func locate(groups [][]band, x, y float64) (int, int, int, bool) {
	for t, bands := range groups {
		for b, bd := range bands {
			if y < bd.bottom || y >= bd.top {
				continue
			}
			for c := 0; c+1 < len(bd.xs); c++ {
				if x >= bd.xs[c] && x < bd.xs[c+1] {
					return t, b, c, true
				}
			}
		}
	}
	return 0, 0, 0, false
}
