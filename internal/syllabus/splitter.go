package syllabus

import (
	"regexp"
	"unicode/utf8"
)

var itemSeparator = regexp.MustCompile(`[;•]|\band\b`)

// minItemRunes is the length a fragment must exceed to count as an item.
const minItemRunes = 4

// Splitter breaks a cell into its individual objective or content items.
//
// Every whole-word "and" is treated as a separator, so phrases such as
// "structure and function" are split too.
type Splitter struct {
	patterns *Patterns
}

// NewSplitter creates a splitter using the given pattern library.
func NewSplitter(patterns *Patterns) *Splitter {
	return &Splitter{patterns: patterns}
}

// Split returns the normalized items of text in their original order.
// The result is never nil.
func (s *Splitter) Split(text string) []string {
	items := []string{}
	if text == "" {
		return items
	}

	for _, fragment := range itemSeparator.Split(text, -1) {
		fragment = Normalize(fragment)
		if utf8.RuneCountInString(fragment) <= minItemRunes || s.patterns.IsNoise(fragment) {
			continue
		}
		if item := s.patterns.StripPrefix(fragment); item != "" {
			items = append(items, item)
		}
	}
	return items
}
