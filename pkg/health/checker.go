// Package health serves the liveness and readiness probes of a service. The
// request logger skips both paths by default (/healthz and /readiness), so
// probe traffic never reaches the log.
//
// Example usage:
//
//	h := health.New()
//	h.Register("database", pool)
//	mux.Handle("/healthz", h.LivenessHandler())
//	mux.Handle("/readiness", h.ReadinessHandler())
package health

import "context"

// Checker reports whether a dependency is usable. Implementations must honour
// the deadline carried by ctx.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}
