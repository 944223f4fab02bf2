package provider

import "fmt"

// Kind classifies provider failures so callers can decide whether a
// retry makes sense, the same typed-error shape internal/objectstore.Error
// uses for its own failure surface (spec.md 7). internal/ingestion's
// withRetry does not consult it: it retries every failed provider call.
type Kind int

const (
	KindRequest Kind = iota
	KindRateLimited
	KindNotFound
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindDecode:
		return "decode"
	default:
		return "request"
	}
}

// Error is the typed error surfaced by Provider implementations.
type Error struct {
	Kind   Kind
	Method string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider: %s: %s", e.Kind, e.Method)
	}
	return fmt.Sprintf("provider: %s: %s: %v", e.Kind, e.Method, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable mirrors objectstore.Error.Retryable: only Request and
// RateLimited failures are worth retrying, NotFound/Decode never are.
func (e *Error) Retryable() bool {
	return e.Kind == KindRequest || e.Kind == KindRateLimited
}

func newErr(kind Kind, method string, err error) *Error {
	return &Error{Kind: kind, Method: method, Err: err}
}
