package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateProperty is returned when a ledger would queue the same property
// id twice.
var ErrDuplicateProperty = errors.New("duplicate property id")

// Error kind constants for EstimatorError.
const (
	ErrorKindCalculation = "calculation"
	ErrorKindTimeout     = "timeout"
	ErrorKindUnsupported = "unsupported"
	ErrorKindNoLayer     = "no_layer"
	ErrorKindInternal    = "internal"
)

// EstimatorError describes why a single property could not be estimated.
// It is recorded as data in a ledger, not returned across a batch.
type EstimatorError struct {
	Kind      string `json:"kind"`
	Directory string `json:"directory,omitempty"`
	Message   string `json:"message"`
}

// NewEstimatorError builds an EstimatorError of the given kind.
func NewEstimatorError(kind, directory, format string, args ...any) *EstimatorError {
	return &EstimatorError{
		Kind:      kind,
		Directory: directory,
		Message:   fmt.Sprintf(format, args...),
	}
}

func (e *EstimatorError) Error() string {
	if e == nil {
		return ""
	}
	if e.Directory == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (directory %s)", e.Kind, e.Message, e.Directory)
}
