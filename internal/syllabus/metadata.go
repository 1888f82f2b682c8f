package syllabus

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxKeywords = 12

var parenthesized = regexp.MustCompile(`\(.*?\)`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "their": {}, "from": {}, "this": {}, "that": {},
}

// difficultyTiers is checked from the highest tier down; the first tier with
// a matching verb wins.
var difficultyTiers = []struct {
	level int
	verbs []string
}{
	{3, []string{"analyse", "evaluate", "synthesize", "justify", "critique", "design", "create"}},
	{2, []string{"explain", "describe", "discuss", "apply", "demonstrate", "calculate", "interpret"}},
	{1, []string{"list", "state", "define", "label", "identify", "recall"}},
}

// Metadata derives keywords, skills, difficulty and content hashes.
type Metadata struct {
	patterns *Patterns
}

// NewMetadata creates a metadata extractor.
func NewMetadata(patterns *Patterns) *Metadata {
	return &Metadata{patterns: patterns}
}

// Keywords returns up to twelve sorted, lowercase, non-stopword tokens of at
// least three letters in any script. Tokens mixing letters and digits are
// not words and are dropped. Parenthesized spans are ignored.
func (m *Metadata) Keywords(text string) []string {
	text = parenthesized.ReplaceAllString(text, "")
	seen := make(map[string]struct{})
	keywords := []string{}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), isWordSeparator) {
		if !isAlphabetic(word) || utf8.RuneCountInString(word) < 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	sort.Strings(keywords)
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}

func isWordSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsMark(r) && !unicode.IsDigit(r)
}

func isAlphabetic(word string) bool {
	for _, r := range word {
		if unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Skills returns the sorted set of skill codes mentioned in text.
func (m *Metadata) Skills(text string) []string {
	seen := make(map[string]struct{})
	skills := []string{}
	for _, code := range m.patterns.FindSkills(text) {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		skills = append(skills, code)
	}
	sort.Strings(skills)
	return skills
}

// Difficulty estimates a 1-3 cognitive level from the action verbs in text.
// Verbs match as substrings, case-insensitively.
func (m *Metadata) Difficulty(text string) int {
	lower := strings.ToLower(text)
	for _, tier := range difficultyTiers {
		for _, verb := range tier.verbs {
			if strings.Contains(lower, verb) {
				return tier.level
			}
		}
	}
	return 1
}

// Hash returns the hex SHA-256 digest of text.
func (m *Metadata) Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
