package errors

import (
	"fmt"
	"runtime/debug"
)

// Guard runs fn and converts a panic into an ExtractionError of the given
// type. PDF libraries panic on some malformed input; callers use Guard at
// the document and page boundaries so one bad file cannot stop a batch.
func Guard(errorType ErrorType, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e := New(errorType, fmt.Sprintf("panic: %v", r))
			e.StackTrace = string(debug.Stack())
			err = e
		}
	}()
	return fn()
}
