// Package stack attaches a call stack to an error at the point it is wrapped.
package stack

import (
	"fmt"

	"github.com/pkg/errors"
)

// New records the current stack on err. Errors that already carry a stack are
// returned unchanged so repeated wrapping does not pile up traces.
func New(err error) error {
	if err == nil {
		return nil
	}
	if HasStack(err) {
		return err
	}
	return errors.WithStack(err)
}

// HasStack reports whether any error in the chain carries a stack.
func HasStack(err error) bool {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	var st stackTracer
	return errors.As(err, &st)
}

// Format renders err with its stack ("%+v" of pkg/errors).
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}
