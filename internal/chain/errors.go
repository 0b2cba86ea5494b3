package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedReference is returned when an output reference points
	// outside the outputs produced so far.
	ErrUnresolvedReference = errors.New("unresolved output reference")
	// ErrGenerationFailed is returned when the generate function fails for a step.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrTemplateExpand is returned when conditional expansion of a step template fails.
	ErrTemplateExpand = errors.New("template expansion failed")
	// ErrNoGenerateFunc is returned when Run is called without a generate function.
	ErrNoGenerateFunc = errors.New("generate function is required")
)

// ReferenceError describes an output reference that could not be resolved.
type ReferenceError struct {
	Placeholder string
	Index       int
	Field       string
	Available   int
	Reason      string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %s: %s", e.Placeholder, e.Reason)
}

// Unwrap lets errors.Is match ErrUnresolvedReference.
func (e *ReferenceError) Unwrap() error {
	return ErrUnresolvedReference
}

// StepError reports the step at which a run was aborted.
type StepError struct {
	Index int
	Name  string
	Err   error
}

func (e *StepError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("chain step %d (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("chain step %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}
