package model

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or out-of-range pipeline parameter.
type ValidationError struct {
	Field      string // dotted path of the offending field, e.g. pipeline[0].params.size[1]
	Constraint string // violated constraint, e.g. "required" or "gt=0"
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid field %q (%s): %v", e.Field, e.Constraint, e.Err)
	}
	return fmt.Sprintf("invalid field %q: violates %s", e.Field, e.Constraint)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DecodeError reports source bytes that are not a readable animation.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode source: %s: %v", e.Reason, e.Err)
	}
	return "decode source: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransformNotFoundError reports a step whose name is not registered.
type TransformNotFoundError struct {
	Name string
	Step int // index of the step within the pipeline
}

func (e *TransformNotFoundError) Error() string {
	return fmt.Sprintf("transform %q not found (step %d)", e.Name, e.Step)
}

// AssemblyError reports processed frames that cannot be combined into an output.
type AssemblyError struct {
	Reason string
	Err    error
}

func (e *AssemblyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assemble output: %s: %v", e.Reason, e.Err)
	}
	return "assemble output: " + e.Reason
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// IsPermanent reports whether err stems from the request itself (its
// configuration or source bytes) so that retrying cannot succeed.
func IsPermanent(err error) bool {
	var (
		verr *ValidationError
		derr *DecodeError
		nerr *TransformNotFoundError
		aerr *AssemblyError
	)
	return errors.As(err, &verr) || errors.As(err, &derr) || errors.As(err, &nerr) || errors.As(err, &aerr)
}
