package batch

import "fmt"

// PanicError reports a panic recovered from an item function. It is never retried.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("batch item panicked: %v", e.Value)
}
