package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	checkOK    = "ok"
	checkError = "error"
)

// Result is the aggregated outcome of every registered check.
type Result struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health runs registered checkers concurrently. Results are cached for a
// short TTL so that probe bursts do not hammer dependencies.
type Health struct {
	mu       sync.RWMutex
	checkers map[string]Checker

	cacheMu sync.Mutex
	cached  *Result
	expiry  time.Time

	timeout  time.Duration
	ttl      time.Duration
	observer *tracectx.Observer
	now      func() time.Time
}

// Option configures a Health.
type Option func(*Health)

// WithTimeout bounds each check when the caller's context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(h *Health) {
		h.timeout = d
	}
}

// WithCacheTTL sets how long a result is reused. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(h *Health) {
		h.ttl = d
	}
}

// WithObserver runs checks on goroutines spawned through o, so that checkers
// logging during a traced probe inherit its trace id.
func WithObserver(o *tracectx.Observer) Option {
	return func(h *Health) {
		h.observer = o
	}
}

// New creates a Health with a 5s check timeout and a 1s cache.
func New(opts ...Option) *Health {
	h := &Health{
		checkers: make(map[string]Checker),
		timeout:  5 * time.Second,
		ttl:      time.Second,
		observer: tracectx.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds or replaces the checker for name.
func (h *Health) Register(name string, c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = c
}

// Unregister removes the checker for name and reports whether it existed.
func (h *Health) Unregister(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.checkers[name]
	delete(h.checkers, name)
	return ok
}

// Names returns the registered checker names in order.
func (h *Health) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check returns the aggregated result, reusing a cached one while fresh.
func (h *Health) Check(ctx context.Context) *Result {
	h.cacheMu.Lock()
	if h.cached != nil && h.now().Before(h.expiry) {
		r := h.cached
		h.cacheMu.Unlock()
		return r
	}
	h.cacheMu.Unlock()

	r := h.run(ctx)

	h.cacheMu.Lock()
	h.cached = r
	h.expiry = h.now().Add(h.ttl)
	h.cacheMu.Unlock()
	return r
}

// Invalidate drops the cached result.
func (h *Health) Invalidate() {
	h.cacheMu.Lock()
	h.cached = nil
	h.cacheMu.Unlock()
}

// CheckOne runs the checker registered under name.
func (h *Health) CheckOne(ctx context.Context, name string) error {
	h.mu.RLock()
	c, ok := h.checkers[name]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("health checker %q not registered", name)
	}
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return c.Check(ctx)
}

func (h *Health) run(ctx context.Context) *Result {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, c := range h.checkers {
		checkers[name] = c
	}
	h.mu.RUnlock()

	r := &Result{Status: StatusHealthy, Checks: make(map[string]CheckResult, len(checkers))}
	if len(checkers) == 0 {
		return r
	}

	ctx, cancel := h.bound(ctx)
	defer cancel()

	var mu sync.Mutex
	g, gctx := h.observer.NewGroup(ctx)
	for name, c := range checkers {
		name, c := name, c
		g.Go(func() error {
			res := CheckResult{Status: checkOK}
			if err := c.Check(gctx); err != nil {
				res = CheckResult{Status: checkError, Message: err.Error()}
			}
			mu.Lock()
			r.Checks[name] = res
			if res.Status != checkOK {
				r.Status = StatusUnhealthy
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return r
}

func (h *Health) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || h.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.timeout)
}
