// Package acquisition is the single choke point for all outbound calls to a
// third-party source. It wraps raw HTTP with the rate governor, in-flight
// request deduplication, bounded retries and a cheap availability probe.
// Failures never surface as Go errors to scoring callers; they surface as a
// typed Result kind so downstream defaulting stays explicit.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies an upstream failure at the I/O boundary.
type ErrorKind int

const (
	// KindNone means the call succeeded with a 2xx response.
	KindNone ErrorKind = iota
	// KindUnavailable covers network errors and non-2xx statuses.
	KindUnavailable
	// KindTimeout covers request deadline expiry.
	KindTimeout
	// KindMalformed covers responses the caller could not parse
	// (wrong content type, truncated JSON, HTML error pages).
	KindMalformed
	// KindRateLimited covers HTTP 429 that survived all retries.
	KindRateLimited
)

// String returns the kind name for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed_response"
	case KindRateLimited:
		return "rate_limited"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Result is the outcome of one upstream call. Exactly one of two states
// holds: OK() with Body populated, or a non-none Kind with Err explaining it.
type Result struct {
	Body   []byte
	Status int
	Kind   ErrorKind
	Err    error
}

// OK reports whether the call produced a usable 2xx body.
func (r Result) OK() bool {
	return r.Kind == KindNone
}

// Malformed builds a Result for a payload the caller failed to parse.
// Clients use this after sniffing HTML/XML bodies or hitting decode errors.
func Malformed(err error) Result {
	return Result{Kind: KindMalformed, Err: err}
}

// classify maps a transport error to its kind.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnavailable
}
