package syllabus

import (
	"regexp"
	"strings"
)

var (
	sectionPattern    = regexp.MustCompile(`(?i)\b(SECTION|MODULE|UNIT)[ \t]+([A-Z0-9]+)[:\- \t]+([A-Z][A-Z \t\-]{2,})`)
	subsectionPattern = regexp.MustCompile(`(?i)\b(?:TOPIC|AREA|THEME)[ \t]*\d*[:\- \t]+([A-Z][A-Z \t\-]{2,})`)
	skillPattern      = regexp.MustCompile(`\b(KC|AK|AS|LI|UK|RE|OR|MK|PS)\b`)
	numberingPattern  = regexp.MustCompile(`^[A-Z]?\d+\.?\d*[a-z]?[):]?\s+`)
	bulletPattern     = regexp.MustCompile(`^[-•*]\s+`)
	noisePattern      = regexp.MustCompile(`(?i)^(TOTAL|SUMMARY|PAGE|TABLE|SECTION|SPECIFIC OBJECTIVES|CONTENT|SKILLS|ADDRESS|EMAIL|FAX|TELEPHONE|WEBSITE|REVISED|AMENDED|CORRIGENDA|APPENDIX)(\s+\d+)?\s*$`)
	numericPattern    = regexp.MustCompile(`^\d+\.?\s*$`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Patterns groups the compiled expressions used to recognise syllabus
// structure in page text and table cells.
type Patterns struct {
	section    *regexp.Regexp
	subsection *regexp.Regexp
	skill      *regexp.Regexp
	numbering  *regexp.Regexp
	bullet     *regexp.Regexp
	noise      *regexp.Regexp
}

// NewPatterns returns the default pattern library.
func NewPatterns() *Patterns {
	return &Patterns{
		section:    sectionPattern,
		subsection: subsectionPattern,
		skill:      skillPattern,
		numbering:  numberingPattern,
		bullet:     bulletPattern,
		noise:      noisePattern,
	}
}

// MatchSection returns the last section heading found in text, formatted as
// "<KIND> <ID>: <NAME>".
func (p *Patterns) MatchSection(text string) (string, bool) {
	matches := p.section.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	last := matches[len(matches)-1]
	name := collapse(last[3])
	if name == "" {
		return "", false
	}
	return last[1] + " " + last[2] + ": " + name, true
}

// MatchSubsection returns the name of the last topic/area/theme heading in text.
func (p *Patterns) MatchSubsection(text string) (string, bool) {
	matches := p.subsection.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	name := collapse(matches[len(matches)-1][1])
	return name, name != ""
}

// IsNoise reports whether text is a bare header/footer word such as
// "TOTAL" or "PAGE 3".
func (p *Patterns) IsNoise(text string) bool {
	return p.noise.MatchString(strings.TrimSpace(text))
}

// StripPrefix removes leading objective numbering ("1.", "A2)", "3.1a:")
// and then a leading bullet marker.
func (p *Patterns) StripPrefix(text string) string {
	text = p.numbering.ReplaceAllString(text, "")
	text = p.bullet.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// FindSkills returns every skill-code occurrence in text, case-insensitively,
// in order of appearance.
func (p *Patterns) FindSkills(text string) []string {
	return p.skill.FindAllString(strings.ToUpper(text), -1)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
