package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors observable at the cache's external boundary. Check
// with errors.Is; BackendOpError additionally supports errors.As.
var (
	// ErrSizeExceeded is returned by Put for objects larger than the
	// cache bypass threshold. Non-retryable: the caller must route
	// around the cache.
	ErrSizeExceeded = errors.New("cache: object exceeds cache bypass threshold")

	// ErrTierUnavailable is returned by a tier backend (only the
	// persistent tier is permitted to use this class) when its
	// underlying store is down. Transient: callers may retry.
	ErrTierUnavailable = errors.New("cache: tier backend unavailable")

	// ErrNotFound is returned by backend Get for an absent key and by
	// Cache.Get when no tier holds the key. Backend Delete of an absent
	// key is not an error.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrObjectTooLargeForTier is returned when a caller-specified tier
	// cannot hold an object of the given size.
	ErrObjectTooLargeForTier = errors.New("cache: object too large for tier")
)

// BackendOpError wraps a specific tier backend's failure with enough
// context to diagnose and to allow errors.Is(err, ErrTierUnavailable)
// style checks against the wrapped cause.
type BackendOpError struct {
	Backend   string
	Operation string
	Reason    error
}

func (e *BackendOpError) Error() string {
	return fmt.Sprintf("cache: backend %s: operation %s failed: %v", e.Backend, e.Operation, e.Reason)
}

func (e *BackendOpError) Unwrap() error { return e.Reason }

// IsRetryable reports whether the caller may reasonably retry the
// operation that produced err. Size-exceeded, not-found, and
// object-too-large-for-tier are structural and never retryable;
// tier-unavailable (directly or wrapped in a BackendOpError) is
// transient and retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTierUnavailable)
}
