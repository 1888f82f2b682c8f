package pdf

import (
	"io"

	"github.com/a3tai/syllabus-extractor/internal/pdf/layout"
)

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// multiply returns m x n.
func (m matrix) multiply(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

type point struct{ x, y float64 }

// ruleScanner interprets the path operators of a content stream and keeps
// the straight segments of every path that is stroked or filled.
type ruleScanner struct {
	ctm      matrix
	stack    []matrix
	operands []float64
	pending  []layout.Segment
	current  point
	start    point
	segments []layout.Segment
}

// ScanRules returns the straight line segments painted by a content stream,
// in user space. Segments found before a read error are returned with it.
func ScanRules(r io.Reader) ([]layout.Segment, error) {
	s := &ruleScanner{ctm: identity}
	lex := newContentLexer(r)

	for {
		tok := lex.next()
		switch tok.kind {
		case tokenEOF:
			return s.segments, lex.err
		case tokenNumber:
			s.operands = append(s.operands, tok.num)
			continue
		case tokenOperator:
			s.execute(tok.value)
			if tok.value == "ID" {
				lex.skipInlineImage()
			}
		case tokenArrayStart, tokenArrayEnd, tokenDictStart, tokenDictEnd, tokenName, tokenString:
			continue
		}
		s.operands = s.operands[:0]
	}
}

func (s *ruleScanner) args(n int) ([]float64, bool) {
	if len(s.operands) < n {
		return nil, false
	}
	return s.operands[len(s.operands)-n:], true
}

func (s *ruleScanner) execute(op string) {
	switch op {
	case "q":
		s.stack = append(s.stack, s.ctm)
	case "Q":
		if n := len(s.stack); n > 0 {
			s.ctm = s.stack[n-1]
			s.stack = s.stack[:n-1]
		}
	case "cm":
		if a, ok := s.args(6); ok {
			s.ctm = matrix{a[0], a[1], a[2], a[3], a[4], a[5]}.multiply(s.ctm)
		}
	case "m":
		if a, ok := s.args(2); ok {
			s.current = point{a[0], a[1]}
			s.start = s.current
		}
	case "l":
		if a, ok := s.args(2); ok {
			to := point{a[0], a[1]}
			s.line(s.current, to)
			s.current = to
		}
	case "c":
		if a, ok := s.args(6); ok {
			s.current = point{a[4], a[5]}
		}
	case "v", "y":
		if a, ok := s.args(4); ok {
			s.current = point{a[2], a[3]}
		}
	case "h":
		s.closePath()
	case "re":
		if a, ok := s.args(4); ok {
			x, y, w, h := a[0], a[1], a[2], a[3]
			s.line(point{x, y}, point{x + w, y})
			s.line(point{x + w, y}, point{x + w, y + h})
			s.line(point{x + w, y + h}, point{x, y + h})
			s.line(point{x, y + h}, point{x, y})
			s.current = point{x, y}
			s.start = s.current
		}
	case "s", "b", "b*":
		s.closePath()
		s.paint()
	case "S", "f", "F", "f*", "B", "B*":
		s.paint()
	case "n":
		s.pending = s.pending[:0]
	}
}

func (s *ruleScanner) line(from, to point) {
	x0, y0 := s.ctm.apply(from.x, from.y)
	x1, y1 := s.ctm.apply(to.x, to.y)
	s.pending = append(s.pending, layout.Segment{X0: x0, Y0: y0, X1: x1, Y1: y1})
}

func (s *ruleScanner) closePath() {
	if s.current != s.start {
		s.line(s.current, s.start)
	}
	s.current = s.start
}

func (s *ruleScanner) paint() {
	s.segments = append(s.segments, s.pending...)
	s.pending = s.pending[:0]
}
