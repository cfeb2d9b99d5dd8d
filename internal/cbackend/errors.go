package cbackend

import "fmt"

// CBackendError reports an MIR shape the native backend cannot lower,
// naming the offending function and instruction/terminator kind so the
// CLI can report it the way any other compiler diagnostic is reported.
type CBackendError struct {
	Function string
	Detail   string
}

func (e *CBackendError) Error() string {
	return fmt.Sprintf("cbackend: %s: %s", e.Function, e.Detail)
}

func unsupported(fn, detail string) error {
	return &CBackendError{Function: fn, Detail: detail}
}
