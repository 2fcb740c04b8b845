package advisorydb

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies the errors produced by this package. Callers branch on the
// kind with IsKind rather than matching message strings.
type Kind int

const (
	// KindBadParam reports an invalid parameter. These errors occur before
	// any side effect: no directory is created and no lock is touched.
	KindBadParam Kind = iota + 1

	// KindLockTimeout reports that the cross-process repository lock could
	// not be acquired before the configured timeout.
	KindLockTimeout

	// KindNotFound reports a missing file or repository.
	KindNotFound

	// KindParse reports malformed data.
	KindParse

	// KindRepo reports a failed git repository operation.
	KindRepo
)

func (k Kind) String() string {
	switch k {
	case KindBadParam:
		return "bad-param"
	case KindLockTimeout:
		return "lock-timeout"
	case KindNotFound:
		return "not-found"
	case KindParse:
		return "parse"
	case KindRepo:
		return "repo"
	}
	return "unknown"
}

// Error is the error type returned by this package.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	}
	return e.kind.String()
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Kind() Kind {
	return e.kind
}

// IsKind reports whether any error in err's chain is an *Error of the given
// kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.kind == kind {
			return true
		}
		err = e.err
	}
	return false
}

// StaleError reports that the latest commit of the advisory database is
// older than the freshness window. It is carried inside a KindRepo error.
type StaleError struct {
	CommitTime time.Time
	Window     time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("repository is stale (last commit: %s)", e.CommitTime.Format(time.RFC3339))
}

// IsStale reports whether err is caused by a stale advisory database.
func IsStale(err error) bool {
	var stale *StaleError
	return errors.As(err, &stale)
}

// Errorf returns a new Error of the given kind.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// errorLabel is the metric label for a sync failure.
func errorLabel(err error) string {
	if IsStale(err) {
		return "stale"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind.String()
	}
	return "unknown"
}
