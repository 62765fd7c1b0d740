package verso

import (
	"github.com/pkg/errors"
)

// The kinds of errors returned by a Store. Test for them with errors.Is,
// errors.Cause, or the Is helpers.
var (
	// ErrInvalidKey means a content type or id cannot be stored.
	ErrInvalidKey = errors.New("invalid key")

	// ErrNotFound means the key or the version does not exist.
	ErrNotFound = errors.New("version not found")

	// ErrWriteFailure means a version could not be stored or removed. The
	// key is left as it was.
	ErrWriteFailure = errors.New("write failure")

	// ErrDiffFailure means one of the versions to compare could not be
	// loaded.
	ErrDiffFailure = errors.New("diff failure")

	// ErrInvalidArgument means a parameter is out of range.
	ErrInvalidArgument = errors.New("invalid argument")
)

// opError pairs an error kind with the underlying cause.
type opError struct {
	kind error
	op   string
	err  error
}

func failure(kind error, op string, err error) error {
	return &opError{kind: kind, op: op, err: err}
}

func (e *opError) Error() string {
	msg := e.op + ": " + e.kind.Error()
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

// Cause returns the kind, so errors.Cause(err) == ErrNotFound works.
func (e *opError) Cause() error { return e.kind }

func (e *opError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// IsNotFound is true if err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidKey is true if err is, or wraps, ErrInvalidKey.
func IsInvalidKey(err error) bool { return errors.Is(err, ErrInvalidKey) }

// IsWriteFailure is true if err is, or wraps, ErrWriteFailure.
func IsWriteFailure(err error) bool { return errors.Is(err, ErrWriteFailure) }
