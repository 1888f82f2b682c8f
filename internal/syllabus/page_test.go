package syllabus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/syllabus-extractor/internal/pdf/layout"
)

// rowsStrategy returns fixed rows regardless of page geometry.
type rowsStrategy [][]string

func (r rowsStrategy) Name() string { return "fixed" }

func (r rowsStrategy) FindTables(*layout.Page) []layout.Table {
	if len(r) == 0 {
		return nil
	}
	return []layout.Table{{Strategy: "fixed", Rows: r}}
}

func headingPage(number int, lines ...string) *layout.Page {
	page := &layout.Page{Number: number}
	y := 800.0
	for _, line := range lines {
		x := 50.0
		for _, r := range line {
			if r != ' ' {
				page.Glyphs = append(page.Glyphs, layout.Glyph{Text: string(r), X: x, Y: y, W: 5, FontSize: 10})
			}
			x += 5
		}
		y -= 20
	}
	return page
}

func TestExtractWorkedExample(t *testing.T) {
	rows := rowsStrategy{
		{"SPECIFIC OBJECTIVES", "CONTENT"},
		{"1. Explain the process of photosynthesis in green plants", "Light reactions; dark reactions; chlorophyll role"},
	}
	e := NewPageExtractor(rows)

	objectives, state := e.Extract(headingPage(4, "SECTION 1: CELL BIOLOGY", "TOPIC 2: PHOTOSYNTHESIS"), "biology.pdf", NewState())
	require.Len(t, objectives, 1)

	o := objectives[0]
	assert.Equal(t, "1. Explain the process of photosynthesis in green plants", o.Objective)
	assert.Equal(t, []string{"Explain the process of photosynthesis in green plants"}, o.SpecificObjectives)
	assert.Equal(t, []string{"Light reactions", "dark reactions", "chlorophyll role"}, o.ContentItems)
	assert.Equal(t, 2, o.Difficulty)
	assert.Equal(t, 4, o.PageNumber)
	assert.Equal(t, "biology.pdf", o.SourceFile)
	assert.Equal(t, "SECTION 1: CELL BIOLOGY", o.Section)
	assert.Equal(t, "PHOTOSYNTHESIS", o.Subsection)
	assert.Equal(t, e.Metadata().Hash(o.Objective+" "+o.Content), o.Hash)
	assert.Contains(t, o.Keywords, "photosynthesis")
	assert.Empty(t, o.ID)

	assert.Equal(t, State{Section: "SECTION 1: CELL BIOLOGY", Subsection: "PHOTOSYNTHESIS"}, state)
}

func TestExtractRowFilter(t *testing.T) {
	rows := rowsStrategy{
		{"TOTAL", ""},
		{"PAGE 3"},
		{"Short text", "content"},
		{"12345678901234567890", "numbers only"},
		{"Contact the Council at www.cxc.org today", "info"},
		{"Only one cell with enough text in it"},
		{"", "Describe the structure of plant cells", "Cell wall and membrane"},
		{"   ", "  "},
	}

	objectives, _ := NewPageExtractor(rows).Extract(headingPage(1), "biology.pdf", NewState())
	require.Len(t, objectives, 1)

	o := objectives[0]
	assert.Equal(t, "Describe the structure of plant cells", o.Objective)
	assert.Equal(t, "Cell wall and membrane", o.Content)
	assert.Equal(t, []string{"Cell wall", "membrane"}, o.ContentItems)
	assert.Equal(t, DefaultSection, o.Section)
	assert.Equal(t, DefaultSubsection, o.Subsection)
	for _, obj := range objectives {
		assert.NotContains(t, obj.Objective, "TOTAL")
		assert.NotContains(t, obj.Content, "PAGE")
	}
}

func TestExtractStateCarriesAcrossPages(t *testing.T) {
	rows := rowsStrategy{{"Identify the parts of a flowering plant", "Roots, stem, leaves"}}
	e := NewPageExtractor(rows)

	state := NewState()
	_, state = e.Extract(headingPage(1, "MODULE 1: LIVING ORGANISMS"), "biology.pdf", state)

	objectives, state := e.Extract(headingPage(2, "Students should be able to"), "biology.pdf", state)
	require.Len(t, objectives, 1)
	assert.Equal(t, "MODULE 1: LIVING ORGANISMS", objectives[0].Section)
	assert.Equal(t, DefaultSubsection, objectives[0].Subsection)

	objectives, state = e.Extract(headingPage(3, "MODULE 2: ECOLOGY", "THEME 1: HABITATS"), "biology.pdf", state)
	require.Len(t, objectives, 1)
	assert.Equal(t, "MODULE 2: ECOLOGY", objectives[0].Section)
	assert.Equal(t, "HABITATS", objectives[0].Subsection)
	assert.Equal(t, State{Section: "MODULE 2: ECOLOGY", Subsection: "HABITATS"}, state)
}

func TestExtractWithoutTables(t *testing.T) {
	e := NewPageExtractor(rowsStrategy(nil))

	objectives, state := e.Extract(headingPage(1, "SECTION 2: GENETICS"), "biology.pdf", NewState())
	assert.Empty(t, objectives)
	assert.Equal(t, "SECTION 2: GENETICS", state.Section)

	objectives, state = e.Extract(nil, "biology.pdf", state)
	assert.Empty(t, objectives)
	assert.Equal(t, "SECTION 2: GENETICS", state.Section)
}

func TestExtractIsDeterministic(t *testing.T) {
	rows := rowsStrategy{
		{"Explain the importance of the water cycle", "Evaporation; condensation; precipitation"},
		{"Describe the structure of plant cells", "Cell wall and membrane"},
	}
	e := NewPageExtractor(rows)
	page := headingPage(7, "SECTION 3: ENVIRONMENT")

	first, firstState := e.Extract(page, "geography.pdf", NewState())
	second, secondState := e.Extract(page, "geography.pdf", NewState())
	assert.Equal(t, first, second)
	assert.Equal(t, firstState, secondState)
}
