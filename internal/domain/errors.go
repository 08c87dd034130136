package domain

import (
	"errors"
	"fmt"
)

// ErrPersistence marks ledger or disk failures. The run cannot guarantee its
// durability contract past one of these, so they abort the whole run instead
// of being contained at the task level.
var ErrPersistence = errors.New("persistence failure")

type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// FetchError is the typed failure returned by the fetcher. Transient
// failures (timeouts, connection errors, 5xx, 429) are retried under the
// fetcher's policy; permanent ones are not.
type FetchError struct {
	URL    string
	Kind   FailureKind
	Status int // HTTP status, 0 for network-level failures
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: http %d (%s)", e.URL, e.Status, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %v (%s)", e.URL, e.Err, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err wraps a FetchError that is worth retrying.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == FailureTransient
	}
	return false
}
