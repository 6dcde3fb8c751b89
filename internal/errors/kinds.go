package errors

import "fmt"

// InvalidSpecError reports a malformed mixture or poison specification: a negative
// sample count, a covariance that is not positive semi-definite, or a probability
// outside [0, 1].
type InvalidSpecError struct {
	Field  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid spec: %s: %s", e.Field, e.Reason)
}

// InvalidSpec builds an InvalidSpecError with a formatted reason.
func InvalidSpec(field, format string, args ...interface{}) error {
	return &InvalidSpecError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EstimationFailure reports that the conditional-mean estimator could not be fit or
// could not produce predictions.
type EstimationFailure struct {
	Reason string
	Err    error
}

func (e *EstimationFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("estimation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("estimation failed: %s", e.Reason)
}

// Unwrap returns the underlying error, if any.
func (e *EstimationFailure) Unwrap() error {
	return e.Err
}

// Estimation builds an EstimationFailure with a formatted reason.
func Estimation(format string, args ...interface{}) error {
	return &EstimationFailure{Reason: fmt.Sprintf(format, args...)}
}

// PersistenceFailure reports that an aggregated result could not be written or read.
type PersistenceFailure struct {
	Path string
	Err  error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persistence failed for %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a PersistenceFailure for path; nil stays nil.
func Persistence(path string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceFailure{Path: path, Err: err}
}

// IsInvalidSpec reports whether err is, or wraps, an InvalidSpecError.
func IsInvalidSpec(err error) bool {
	var target *InvalidSpecError
	return As(err, &target)
}

// IsEstimation reports whether err is, or wraps, an EstimationFailure.
func IsEstimation(err error) bool {
	var target *EstimationFailure
	return As(err, &target)
}

// IsPersistence reports whether err is, or wraps, a PersistenceFailure.
func IsPersistence(err error) bool {
	var target *PersistenceFailure
	return As(err, &target)
}
