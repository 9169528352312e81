package errs

import (
	"errors"
	"fmt"
	"strings"

	"PRelay/tools/errs/stack"
)

// Error is a plain message error that can be wrapped with a stack on demand.
type Error interface {
	Is(err error) bool
	Wrap() error
	WrapMsg(msg string, kv ...any) error
	error
}

// New builds a message error. kv pairs are appended as "k=v".
func New(s string, kv ...any) Error {
	return &errorString{s: toString(s, kv)}
}

type errorString struct {
	s string
}

func (e *errorString) Error() string { return e.s }

func (e *errorString) Is(err error) bool {
	var other *errorString
	if !errors.As(err, &other) {
		return false
	}
	return e.s == other.s
}

func (e *errorString) Wrap() error { return stack.New(e) }

func (e *errorString) WrapMsg(msg string, kv ...any) error {
	if msg == "" && len(kv) == 0 {
		return stack.New(e)
	}
	return stack.New(NewErrorWrapper(e, toString(msg, kv)))
}

// ErrWrapper keeps the original error reachable while adding context.
type ErrWrapper interface {
	Is(err error) bool
	Wrap() error
	Unwrap() error
	WrapMsg(msg string, kv ...any) error
	error
}

func NewErrorWrapper(err error, s string) ErrWrapper {
	return &errorWrapper{error: err, s: s}
}

type errorWrapper struct {
	error
	s string
}

func (e *errorWrapper) Is(err error) bool {
	if e.s == "" {
		return errors.Is(e.error, err)
	}
	var other *errorWrapper
	if errors.As(err, &other) {
		return e.s == other.s && errors.Is(e.error, other.error)
	}
	return false
}

func (e *errorWrapper) Error() string {
	if e.s == "" {
		return e.error.Error()
	}
	return e.s + ": " + e.error.Error()
}

func (e *errorWrapper) Unwrap() error { return e.error }

func (e *errorWrapper) Wrap() error { return stack.New(e) }

func (e *errorWrapper) WrapMsg(msg string, kv ...any) error {
	return stack.New(NewErrorWrapper(e, toString(msg, kv)))
}

// Unwrap walks to the innermost error of a chain.
func Unwrap(err error) error {
	for err != nil {
		unwrap, ok := err.(interface {
			error
			Unwrap() error
		})
		if !ok {
			break
		}
		err = unwrap.Unwrap()
		if err == nil {
			return unwrap
		}
	}
	return err
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return stack.New(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	err = NewErrorWrapper(err, toString(msg, kv))
	return stack.New(err)
}

func toString(s string, kv []any) string {
	if len(kv) == 0 {
		return s
	}
	var sb strings.Builder
	sb.WriteString(s)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}
