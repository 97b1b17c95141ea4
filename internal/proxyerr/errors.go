// Package proxyerr defines the numeric error codes reported to clients.
//
// The number of a Code is what a client sees in the body of a 500 response
// ("Error No: 4"), so existing values must never be renumbered.
package proxyerr

import (
	"errors"
	"fmt"
)

// Code is a stable numeric failure code.
type Code int

const (
	Success           Code = 0
	Parameter         Code = 1
	Allocation        Code = 2
	Address           Code = 3
	IncorrectData     Code = 4
	Accept            Code = 8
	Read              Code = 9
	Write             Code = 10
	Transform         Code = 14
	MalformedRequest  Code = 16
	UnsupportedMethod Code = 17
	Fetch             Code = 18
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case Parameter:
		return "invalid parameter"
	case Allocation:
		return "allocation failed"
	case Address:
		return "invalid address"
	case IncorrectData:
		return "incorrect data"
	case Accept:
		return "accept failed"
	case Read:
		return "read failed"
	case Write:
		return "write failed"
	case Transform:
		return "transform failed"
	case MalformedRequest:
		return "malformed request"
	case UnsupportedMethod:
		return "unsupported method"
	case Fetch:
		return "fetch failed"
	default:
		return fmt.Sprintf("unknown error %d", int(c))
	}
}

// Error implements error so a bare Code can be returned or matched.
func (c Code) Error() string {
	return c.String()
}

// Fatal reports whether the connection is unusable after this failure, so
// no response should be attempted.
func (c Code) Fatal() bool {
	return c == Allocation || c == Read
}

// Error carries a Code together with the operation and cause that produced it.
type Error struct {
	Code Code
	Op   string
	Err  error
}

// New wraps err with a code and the name of the failing operation.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(code Code, op, format string, args ...interface{}) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	default:
		return e.Code.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error or a bare Code with the same code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Code:
		return e.Code == t
	case *Error:
		return e.Code == t.Code
	}
	return false
}

// CodeOf returns the code carried by err. Errors without one map to
// Parameter, and nil maps to Success.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Parameter
}
