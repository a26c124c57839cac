package pi

import (
	"errors"
	"fmt"
)

// Lifecycle errors returned by Estimator.
var (
	ErrNotInitialized     = errors.New("estimator not initialized")
	ErrAlreadyInitialized = errors.New("estimator already initialized")
	ErrReleased           = errors.New("estimator released")
)

// AllocationError reports that the backend could not satisfy a device memory
// reservation. It always aborts the operation that triggered it; an estimator
// whose Initialize failed stays uninitialized.
type AllocationError struct {
	// Resource names the reservation that failed.
	Resource string
	// Bytes is the requested size.
	Bytes int64
	// Err is the underlying platform error, if any.
	Err error
}

func (e *AllocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pi: allocating %s (%d bytes): %v", e.Resource, e.Bytes, e.Err)
	}
	return fmt.Sprintf("pi: allocating %s (%d bytes) failed", e.Resource, e.Bytes)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}
