package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/roundtrip/internal/store"
)

// Kind classifies why a sequence failed.
type Kind string

const (
	KindConnection Kind = "connection_error"
	KindWrite      Kind = "write_error"
	KindRead       Kind = "read_error"
	KindNotFound   Kind = "not_found"
	KindAssertion  Kind = "assertion_failure"
	KindTimeout    Kind = "timeout"
)

// Kinds lists every failure kind.
var Kinds = []Kind{KindConnection, KindWrite, KindRead, KindNotFound, KindAssertion, KindTimeout}

// ParseKind validates a kind name from a scenario file.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown error kind %q", s)
}

// kindError is the sentinel type behind ErrConnection and friends.
type kindError Kind

func (k kindError) Error() string { return string(k) }

// Sentinels for errors.Is. Every error the runner returns matches exactly one.
var (
	ErrConnection error = kindError(KindConnection)
	ErrWrite      error = kindError(KindWrite)
	ErrRead       error = kindError(KindRead)
	ErrNotFound   error = kindError(KindNotFound)
	ErrAssertion  error = kindError(KindAssertion)
	ErrTimeout    error = kindError(KindTimeout)
)

// Operation names used in errors, logs, metrics and traces.
const (
	OpConnect = "connect"
	OpInsert  = "insert"
	OpFindOne = "find_one"
	OpFind    = "find"
	OpDrop    = "drop"
	OpAssert  = "assert"
	OpClose   = "close"
)

// StepError reports a failed operation with its kind.
type StepError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *StepError) Is(target error) bool {
	k, ok := target.(kindError)
	return ok && Kind(k) == e.Kind
}

// KindOf returns the kind of the first StepError or AssertionError in err's
// chain, or "" if there is none.
func KindOf(err error) Kind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	var ae *AssertionError
	if errors.As(err, &ae) {
		return KindAssertion
	}
	return ""
}

// stepError classifies a store error raised by op. fallback is the kind used
// when the error is neither a timeout nor a miss.
func stepError(op string, fallback Kind, err error) *StepError {
	kind := fallback
	switch {
	case errors.Is(err, store.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case fallback == KindRead && errors.Is(err, store.ErrNotFound):
		kind = KindNotFound
	}
	return &StepError{Kind: kind, Op: op, Err: err}
}
