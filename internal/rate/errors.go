package rate

import "errors"

var (
	// ErrLimited reports that the caller exhausted the window's budget.
	ErrLimited = errors.New("rate limited")
	// ErrUnavailable reports a Redis transport failure.
	ErrUnavailable = errors.New("rate limiter store unavailable")
)
