package weather

import (
	"context"
	"fmt"
)

// ErrorKind classifies provider fetch failures. The orchestrator treats every
// kind the same way for failover purposes; kinds exist for reporting and for
// distinguishing configuration problems from transient ones.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindRateLimited  ErrorKind = "rate_limited"
	KindAuthInvalid  ErrorKind = "auth_invalid"
	KindNotFound     ErrorKind = "not_found"
	KindMalformed    ErrorKind = "malformed"
	KindUnconfigured ErrorKind = "unconfigured"
	KindUnavailable  ErrorKind = "unavailable"
)

// FetchError is the typed failure returned by source clients. Clients never
// retry; the single primary-to-backup hop in the orchestrator is the only
// in-run recovery.
type FetchError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a FetchError without an underlying cause.
func NewFetchError(kind ErrorKind, format string, args ...interface{}) *FetchError {
	return &FetchError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapFetchError builds a FetchError around an underlying cause.
func WrapFetchError(kind ErrorKind, err error, format string, args ...interface{}) *FetchError {
	return &FetchError{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// AsFetchError coerces err into a *FetchError, wrapping unknown errors as
// Unavailable so every client failure carries a kind.
func AsFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*FetchError); ok {
		return fe
	}
	return &FetchError{Kind: KindUnavailable, Detail: err.Error(), Err: err}
}

// RawRecord is a provider-specific record prior to normalization. Each
// provider contributes its own concrete variant so unit conversion and schema
// drift stay isolated per source.
type RawRecord interface {
	Source() Source
}

// SourceClient issues a single bounded request for one region and one window
// against one provider. Implementations hold no mutable state beyond their
// credentials and base URL, and perform no retries.
type SourceClient interface {
	Name() string

	// MaxSpanDays is the provider-imposed maximum span of a single request,
	// in days. Zero means unbounded.
	MaxSpanDays() int

	Fetch(ctx context.Context, region Region, window Window) ([]RawRecord, error)
}

// Store is the persistence contract the engine writes through. The partition
// store is the only component allowed to mutate on-disk files.
type Store interface {
	// Append adds one accepted observation to its partition. Append-only;
	// existing rows are never rewritten.
	Append(obs Observation) error

	// Keys returns the persisted observation keys for the given regions and
	// sources within the window, used to seed the dedup index at run start.
	Keys(regionIDs []string, sources []Source, window Window) (map[ObsKey]struct{}, error)
}
