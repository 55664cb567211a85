// internal/types/errors.go
package types

import "fmt"

// ValidationError is returned when a malformed entity is passed to a store write.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// StorageFault wraps an underlying I/O or connection failure. Callers may retry
// the whole operation; Unwrap exposes the driver error.
type StorageFault struct {
	Op  string
	Err error
}

func (e *StorageFault) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageFault) Unwrap() error {
	return e.Err
}

// Fault wraps err as a StorageFault for op, passing nil and existing
// validation errors through untouched
func Fault(op string, err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *ValidationError, *StorageFault:
		return err
	}
	return &StorageFault{Op: op, Err: err}
}
