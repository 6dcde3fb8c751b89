package errors

import (
	"bytes"
	"fmt"
)

// Errors is a non-empty list of errors; a nil Errors means no error occurred.
type Errors interface {
	error
	// Slice returns a copy of the underlying (non-nil) errors.
	Slice() []error
	// Len is always > 0.
	Len() int
}

type errorSlice []error

func (m errorSlice) Slice() []error {
	return append([]error(nil), m...)
}

func (m errorSlice) Len() int {
	return len(m)
}

func (m errorSlice) Error() string {
	var b bytes.Buffer
	for i, err := range m {
		if i > 0 {
			fmt.Fprint(&b, "\n")
		}
		fmt.Fprint(&b, err)
	}
	return b.String()
}

// Append appends the given (possibly nil) error to the given (possibly nil) Errors.
func Append(errs Errors, err error) Errors {
	if err == nil {
		return errs
	}
	var out errorSlice
	if errs != nil {
		out = errorSlice(errs.Slice())
	}
	if multi, ok := err.(Errors); ok {
		return append(out, multi.Slice()...)
	}
	return append(out, err)
}

// Combine combines errors e & f into a single error
func Combine(e, f error) error {
	switch {
	case e == nil:
		return f
	case f == nil:
		return e
	}
	multi, ok := e.(Errors)
	if !ok {
		multi = errorSlice{e}
	}
	return Append(multi, f)
}

// Defer is a helper for deferring error-returning functions such as Close
func Defer(err *error, f func() error) {
	*err = Combine(*err, f())
}
