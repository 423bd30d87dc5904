package budget

import "errors"

var (
	// ErrQuotaExhausted signals the provider's daily budget is spent.
	// Callers degrade to cached data rather than failing the cycle.
	ErrQuotaExhausted = errors.New("budget: daily quota exhausted")

	// ErrEmptyPayload is returned when a caller tries to cache an empty
	// response body. An empty body is an upstream fault, never data.
	ErrEmptyPayload = errors.New("budget: refusing to cache empty payload")

	// ErrCacheMiss is returned when no fresh cached entry exists.
	ErrCacheMiss = errors.New("budget: cache miss")
)
