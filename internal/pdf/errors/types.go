package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ExtractionError describes a failure while turning a syllabus document into
// objective records, with enough context to report it per document.
type ExtractionError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Recoverable bool      `json:"recoverable"`
	StackTrace  string    `json:"stack_trace,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	err error
}

// ErrorType represents the categories of extraction failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeDocumentRead
	ErrorTypePageExtraction
	ErrorTypeArtifactWrite
	ErrorTypeCacheRead
	ErrorTypeInputDirectory
	ErrorTypeManifest
)

// Error implements the error interface
func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.FilePath != "" {
		msg += " (" + e.FilePath
		if e.PageNumber > 0 {
			msg += fmt.Sprintf(" page %d", e.PageNumber)
		}
		msg += ")"
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *ExtractionError) Unwrap() error {
	return e.err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeDocumentRead:
		return "DOCUMENT_READ"
	case ErrorTypePageExtraction:
		return "PAGE_EXTRACTION"
	case ErrorTypeArtifactWrite:
		return "ARTIFACT_WRITE"
	case ErrorTypeCacheRead:
		return "CACHE_READ"
	case ErrorTypeInputDirectory:
		return "INPUT_DIRECTORY"
	case ErrorTypeManifest:
		return "MANIFEST"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether a batch can continue past this kind of
// failure. Only a missing input directory stops a run.
func (et ErrorType) IsRecoverable() bool {
	return et != ErrorTypeInputDirectory
}

// New creates an ExtractionError of the given type
func New(errorType ErrorType, message string) *ExtractionError {
	return &ExtractionError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// Wrap wraps err as an ExtractionError, keeping it available to errors.Is
// and errors.As.
func Wrap(errorType ErrorType, err error) *ExtractionError {
	e := New(errorType, err.Error())
	e.err = err
	return e
}

// WithContext adds context to an existing ExtractionError
func (e *ExtractionError) WithContext(context string) *ExtractionError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing ExtractionError
func (e *ExtractionError) WithFile(filePath string) *ExtractionError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing ExtractionError
func (e *ExtractionError) WithPage(pageNumber int) *ExtractionError {
	e.PageNumber = pageNumber
	return e
}

// TypeOf returns the ErrorType of the first ExtractionError in err's chain.
func TypeOf(err error) ErrorType {
	var e *ExtractionError
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain holds an ExtractionError of type t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
