package syllabus

import (
	"strings"
	"unicode/utf8"

	"github.com/a3tai/syllabus-extractor/internal/pdf/layout"
)

// minObjectiveRunes is the shortest objective cell that is not treated as a
// fragment.
const minObjectiveRunes = 20

var (
	headerMarkers  = []string{"SPECIFIC OBJECTIVE", "CONTENT"}
	contactMarkers = []string{"ADDRESS", "E-MAIL", "TEL:", "FAX:", "WWW.", "HTTP"}
)

// PageExtractor turns the tables on a page into objective candidates.
type PageExtractor struct {
	patterns   *Patterns
	splitter   *Splitter
	metadata   *Metadata
	strategies []layout.Strategy
}

// NewPageExtractor creates an extractor that tries the given table
// strategies in order. With none it uses layout.DefaultStrategies.
func NewPageExtractor(strategies ...layout.Strategy) *PageExtractor {
	if len(strategies) == 0 {
		strategies = layout.DefaultStrategies()
	}
	patterns := NewPatterns()
	return &PageExtractor{
		patterns:   patterns,
		splitter:   NewSplitter(patterns),
		metadata:   NewMetadata(patterns),
		strategies: strategies,
	}
}

// Metadata returns the metadata extractor used for candidates.
func (e *PageExtractor) Metadata() *Metadata {
	return e.metadata
}

// Extract returns the candidates found on page together with the section
// state to carry into the next page. IDs and extraction dates are left for
// the caller to assign.
func (e *PageExtractor) Extract(page *layout.Page, source string, state State) ([]Objective, State) {
	if page == nil {
		return nil, state
	}

	text := page.Text()
	if section, ok := e.patterns.MatchSection(text); ok {
		state.Section = section
	}
	if subsection, ok := e.patterns.MatchSubsection(text); ok {
		state.Subsection = subsection
	}

	var objectives []Objective
	for _, table := range layout.FindTables(page, e.strategies...) {
		for _, row := range table.Rows {
			objective, content, ok := e.filterRow(row)
			if !ok {
				continue
			}
			objectives = append(objectives, e.candidate(objective, content, page.Number, source, state))
		}
	}
	return objectives, state
}

// filterRow applies the noise and shape rules to a table row and returns its
// objective and content cells.
func (e *PageExtractor) filterRow(row []string) (string, string, bool) {
	cells := make([]string, 0, len(row))
	for _, cell := range row {
		if cell = Normalize(cell); cell != "" {
			cells = append(cells, cell)
		}
	}
	if len(cells) == 0 {
		return "", "", false
	}

	joined := strings.Join(cells, " ")
	if e.patterns.IsNoise(joined) || containsAny(strings.ToUpper(joined), headerMarkers) {
		return "", "", false
	}
	if len(cells) < 2 {
		return "", "", false
	}

	objective, content := cells[0], cells[1]
	if utf8.RuneCountInString(objective) < minObjectiveRunes {
		return "", "", false
	}
	if numericPattern.MatchString(objective) || containsAny(strings.ToUpper(objective), contactMarkers) {
		return "", "", false
	}
	return objective, content, true
}

func (e *PageExtractor) candidate(objective, content string, pageNumber int, source string, state State) Objective {
	combined := objective + " " + content
	return Objective{
		Section:            state.Section,
		Subsection:         state.Subsection,
		Objective:          objective,
		Content:            content,
		SpecificObjectives: e.splitter.Split(objective),
		ContentItems:       e.splitter.Split(content),
		Skills:             e.metadata.Skills(combined),
		Difficulty:         e.metadata.Difficulty(objective),
		PageNumber:         pageNumber,
		Keywords:           e.metadata.Keywords(combined),
		Hash:               e.metadata.Hash(combined),
		SourceFile:         source,
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
