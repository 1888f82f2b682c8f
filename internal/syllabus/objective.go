package syllabus

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultSection is used until a document names its first section.
	DefaultSection = "General"
	// DefaultSubsection is used until a document names its first topic.
	DefaultSubsection = "Unknown"
)

// Objective is one learning objective row extracted from a syllabus table.
type Objective struct {
	ID                 string   `json:"id" validate:"required"`
	Section            string   `json:"section" validate:"required"`
	Subsection         string   `json:"subsection" validate:"required"`
	Objective          string   `json:"objective" validate:"required"`
	Content            string   `json:"content"`
	SpecificObjectives []string `json:"specificObjectives"`
	ContentItems       []string `json:"contentItems"`
	Skills             []string `json:"skills"`
	Difficulty         int      `json:"difficulty" validate:"min=1,max=3"`
	PageNumber         int      `json:"pageNumber" validate:"min=1"`
	Keywords           []string `json:"keywords" validate:"max=12"`
	Hash               string   `json:"hash" validate:"required,hexadecimal"`
	SourceFile         string   `json:"sourceFile" validate:"required"`
	ExtractionDate     string   `json:"extractionDate"`
}

// State carries the section headings that stay in effect from one page to
// the next.
type State struct {
	Section    string
	Subsection string
}

// NewState returns the state at the start of a document.
func NewState() State {
	return State{Section: DefaultSection, Subsection: DefaultSubsection}
}

var validate = validator.New()

// Validate checks the record invariants required before an objective is
// written to disk.
func (o *Objective) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("objective %q: %w", o.ID, err)
	}
	return nil
}

// Normalized replaces nil slices with empty ones so the record always
// serializes arrays.
func (o Objective) Normalized() Objective {
	if o.SpecificObjectives == nil {
		o.SpecificObjectives = []string{}
	}
	if o.ContentItems == nil {
		o.ContentItems = []string{}
	}
	if o.Skills == nil {
		o.Skills = []string{}
	}
	if o.Keywords == nil {
		o.Keywords = []string{}
	}
	return o
}
