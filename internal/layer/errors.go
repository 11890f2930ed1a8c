package layer

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRegistration is returned when a layer name is already bound.
	ErrDuplicateRegistration = errors.New("layer already registered")
	// ErrUnknownLayer is returned when looking up an unregistered layer.
	ErrUnknownLayer = errors.New("unknown layer")
	// ErrEmptyBatch is returned when a layer is scheduled with nothing queued.
	ErrEmptyBatch = errors.New("no queued properties")
)

// SchedulingError reports that a layer could not dispatch its batch. None of
// the batch's outcomes were merged.
type SchedulingError struct {
	Layer string
	Err   error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("layer %s: schedule batch: %v", e.Layer, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }
