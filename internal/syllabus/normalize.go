package syllabus

import "regexp"

var footerPattern = regexp.MustCompile(`CXC\s+\d+/G/SYLL\s+\d+|Page\s+\d+`)

// Normalize collapses whitespace runs to single spaces, removes the
// "CXC nn/G/SYLL nn" and "Page n" running footers and trims the result.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = footerPattern.ReplaceAllString(text, "")
	return collapse(text)
}
