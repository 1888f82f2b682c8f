package pdf

import (
	"bufio"
	"io"
	"strconv"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenName
	tokenString
	tokenArrayStart
	tokenArrayEnd
	tokenDictStart
	tokenDictEnd
	tokenOperator
)

type token struct {
	kind  tokenKind
	value string
	num   float64
}

// contentLexer tokenizes a page content stream. String and dictionary
// payloads are skipped rather than decoded since only path operators and
// their numeric operands are needed.
type contentLexer struct {
	reader  *bufio.Reader
	current byte
	hasNext bool
	err     error
}

func newContentLexer(r io.Reader) *contentLexer {
	l := &contentLexer{reader: bufio.NewReader(r), hasNext: true}
	l.advance()
	return l
}

func (l *contentLexer) advance() {
	if !l.hasNext {
		return
	}
	ch, err := l.reader.ReadByte()
	if err != nil {
		if err != io.EOF {
			l.err = err
		}
		l.hasNext = false
		l.current = 0
		return
	}
	l.current = ch
}

func (l *contentLexer) peek() byte {
	if !l.hasNext {
		return 0
	}
	next, err := l.reader.Peek(1)
	if err != nil || len(next) == 0 {
		return 0
	}
	return next[0]
}

func isWhitespace(ch byte) bool {
	switch ch {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(ch byte) bool {
	switch ch {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(ch byte) bool {
	return !isWhitespace(ch) && !isDelimiter(ch)
}

func (l *contentLexer) skipComment() {
	for l.hasNext && l.current != '\n' && l.current != '\r' {
		l.advance()
	}
}

// next returns the next token. A read error ends the stream and is
// reported by err.
func (l *contentLexer) next() token {
	for l.hasNext {
		if isWhitespace(l.current) {
			l.advance()
		} else if l.current == '%' {
			l.skipComment()
		} else {
			break
		}
	}
	if !l.hasNext {
		return token{kind: tokenEOF}
	}

	switch l.current {
	case '(':
		l.skipLiteralString()
		return token{kind: tokenString}
	case '<':
		if l.peek() == '<' {
			l.advance()
			l.advance()
			return token{kind: tokenDictStart}
		}
		l.skipHexString()
		return token{kind: tokenString}
	case '>':
		l.advance()
		if l.hasNext && l.current == '>' {
			l.advance()
		}
		return token{kind: tokenDictEnd}
	case '[':
		l.advance()
		return token{kind: tokenArrayStart}
	case ']':
		l.advance()
		return token{kind: tokenArrayEnd}
	case '{', '}', ')':
		// stray delimiters only appear in malformed streams
		l.advance()
		return l.next()
	case '/':
		l.advance()
		return token{kind: tokenName, value: l.readRegular()}
	}

	word := l.readRegular()
	if num, err := strconv.ParseFloat(word, 64); err == nil {
		return token{kind: tokenNumber, value: word, num: num}
	}
	return token{kind: tokenOperator, value: word}
}

func (l *contentLexer) readRegular() string {
	var buf []byte
	for l.hasNext && isRegular(l.current) {
		buf = append(buf, l.current)
		l.advance()
	}
	return string(buf)
}

func (l *contentLexer) skipLiteralString() {
	l.advance()
	depth := 1
	for l.hasNext && depth > 0 {
		switch l.current {
		case '\\':
			l.advance()
		case '(':
			depth++
		case ')':
			depth--
		}
		l.advance()
	}
}

func (l *contentLexer) skipHexString() {
	for l.hasNext && l.current != '>' {
		l.advance()
	}
	l.advance()
}

// skipInlineImage discards inline image data up to and including the EI
// operator that follows the ID operator.
func (l *contentLexer) skipInlineImage() {
	var prev byte = ' '
	for l.hasNext {
		if l.current == 'E' && isWhitespace(prev) && l.peek() == 'I' {
			l.advance()
			l.advance()
			if !l.hasNext || isWhitespace(l.current) {
				return
			}
			prev = 'I'
			continue
		}
		prev = l.current
		l.advance()
	}
}
