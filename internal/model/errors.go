package model

import (
	"errors"
	"fmt"
	"strconv"
)

// Error kinds used in logs and API responses.
const (
	KindValidation = "validation_error"
	KindLookup     = "lookup_error"
	KindNotFound   = "not_found"
	KindStorage    = "storage_error"
	KindInternal   = "internal_error"
)

// ValidationError reports malformed input detected locally: an unknown
// industry, a bad revenue, a non-positive simulation count or a bad query filter.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return "validation: " + e.Field + ": " + e.Reason
}

// LookupError means the input was well formed but the distribution table has
// no cell covering it.
type LookupError struct {
	Industry Industry
	Band     RevenueBand
	Revenue  float64
}

func (e *LookupError) Error() string {
	rev := strconv.FormatFloat(e.Revenue, 'f', -1, 64)
	if e.Band == "" {
		return "lookup: no revenue band matches revenue " + rev
	}
	return fmt.Sprintf("lookup: no distribution for industry %q band %q (revenue %s)", e.Industry, e.Band, rev)
}

// NotFoundError means the requested company is absent or a segment matched
// no companies.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return "not found: " + e.Resource
	}
	return "not found: " + e.Resource + " " + e.ID
}

// StorageError wraps a failure of the persistence layer. It is the only
// kind the batch retries.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err as a StorageError. A nil err yields nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ErrorKind classifies err into one of the Kind* constants.
func ErrorKind(err error) string {
	var (
		ve *ValidationError
		le *LookupError
		nf *NotFoundError
		se *StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &le):
		return KindLookup
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &se):
		return KindStorage
	}
	return KindInternal
}
