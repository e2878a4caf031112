package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		checkers   map[string]Checker
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			checkers:   nil,
			wantStatus: StatusHealthy,
			wantChecks: map[string]string{},
		},
		{
			name: "all healthy",
			checkers: map[string]Checker{
				"database": CheckerFunc(func(context.Context) error { return nil }),
				"upstream": CheckerFunc(func(context.Context) error { return nil }),
			},
			wantStatus: StatusHealthy,
			wantChecks: map[string]string{"database": "ok", "upstream": "ok"},
		},
		{
			name: "one failing",
			checkers: map[string]Checker{
				"database": CheckerFunc(func(context.Context) error { return errors.New("connection refused") }),
				"upstream": CheckerFunc(func(context.Context) error { return nil }),
			},
			wantStatus: StatusUnhealthy,
			wantChecks: map[string]string{"database": "error", "upstream": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(WithObserver(tracectx.NewObserver()))
			for name, c := range tt.checkers {
				h.Register(name, c)
			}

			r := h.Check(context.Background())
			if r.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", r.Status, tt.wantStatus)
			}
			if len(r.Checks) != len(tt.wantChecks) {
				t.Fatalf("got %d checks, want %d", len(r.Checks), len(tt.wantChecks))
			}
			for name, want := range tt.wantChecks {
				if got := r.Checks[name].Status; got != want {
					t.Errorf("Checks[%q] = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestCheckCaches(t *testing.T) {
	var calls int32
	h := New(WithObserver(tracectx.NewObserver()), WithCacheTTL(time.Hour))
	h.Register("database", CheckerFunc(func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	h.Check(context.Background())
	h.Check(context.Background())
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("checker ran %d times, want 1", n)
	}

	h.Invalidate()
	h.Check(context.Background())
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("checker ran %d times after Invalidate, want 2", n)
	}
}

func TestCheckTimeout(t *testing.T) {
	h := New(WithObserver(tracectx.NewObserver()), WithTimeout(20*time.Millisecond), WithCacheTTL(0))
	h.Register("slow", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	r := h.Check(context.Background())
	if r.Status != StatusUnhealthy {
		t.Errorf("Status = %q, want %q", r.Status, StatusUnhealthy)
	}
}

func TestChecksInheritTrace(t *testing.T) {
	o := tracectx.NewObserver()
	h := New(WithObserver(o), WithCacheTTL(0))

	var seen atomic.Value
	h.Register("trace", CheckerFunc(func(context.Context) error {
		id, _ := o.GetTraceContext()
		seen.Store(id)
		return nil
	}))

	scope := o.Enter()
	o.Start("probe-trace/0")
	h.Check(context.Background())
	scope.Exit()

	if got, _ := seen.Load().(string); got != "probe-trace/0" {
		t.Errorf("checker saw trace %q, want probe-trace/0", got)
	}
}

func TestRegistration(t *testing.T) {
	h := New()
	h.Register("b", CheckerFunc(func(context.Context) error { return nil }))
	h.Register("a", CheckerFunc(func(context.Context) error { return errors.New("down") }))

	names := h.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
	if err := h.CheckOne(context.Background(), "a"); err == nil {
		t.Error("CheckOne(a) expected error")
	}
	if err := h.CheckOne(context.Background(), "missing"); err == nil {
		t.Error("CheckOne(missing) expected error")
	}
	if !h.Unregister("a") {
		t.Error("Unregister(a) = false, want true")
	}
	if h.Unregister("a") {
		t.Error("second Unregister(a) = true, want false")
	}
}

func TestHandlers(t *testing.T) {
	h := New(WithObserver(tracectx.NewObserver()), WithCacheTTL(0))

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		failing    bool
		wantCode   int
		wantStatus string
	}{
		{"liveness", h.LivenessHandler(), false, http.StatusOK, "alive"},
		{"liveness ignores checks", h.LivenessHandler(), true, http.StatusOK, "alive"},
		{"readiness healthy", h.ReadinessHandler(), false, http.StatusOK, StatusHealthy},
		{"readiness unhealthy", h.ReadinessHandler(), true, http.StatusServiceUnavailable, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Unregister("dependency")
			if tt.failing {
				h.Register("dependency", CheckerFunc(func(context.Context) error { return errors.New("down") }))
			}

			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %v", body["status"], tt.wantStatus)
			}
		})
	}
}
