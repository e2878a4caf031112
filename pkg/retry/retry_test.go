package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	cqerrors "github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
)

func fastConfig(attempts uint) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

func TestDo(t *testing.T) {
	temporary := cqerrors.NewTemporary("connection reset", nil)
	permanent := cqerrors.NewPermanent("bad request", nil)

	tests := []struct {
		name         string
		policy       Policy
		retryable    func(error) bool
		failures     int
		err          error
		wantAttempts int
		wantErr      bool
	}{
		{"success first try", PolicyTemporary, nil, 0, nil, 1, false},
		{"temporary then success", PolicyTemporary, nil, 2, temporary, 3, false},
		{"permanent not retried", PolicyTemporary, nil, 5, permanent, 1, true},
		{"attempts exhausted", PolicyTemporary, nil, 10, temporary, 3, true},
		{"policy all retries permanent", PolicyAll, nil, 1, permanent, 2, false},
		{"policy none", PolicyNone, nil, 5, temporary, 1, true},
		{"custom predicate", PolicyNone, func(error) bool { return true }, 2, permanent, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig(3)
			cfg.Policy = tt.policy
			cfg.Retryable = tt.retryable
			cfg.Logger = logging.New(config.LogConfig{Level: "emergency", Format: "json"}, logging.WithWriter(&bytes.Buffer{}))

			attempts := 0
			err := Do(context.Background(), cfg, func() error {
				attempts++
				if attempts <= tt.failures {
					return tt.err
				}
				return nil
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("Do() error = %v, want %v", err, tt.err)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
		})
	}
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	got, err := DoWithData(context.Background(), Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Policy:       PolicyAll,
		Logger:       logging.New(config.LogConfig{Level: "emergency", Format: "json"}, logging.WithWriter(&bytes.Buffer{})),
	}, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("DoWithData() error = %v", err)
	}
	if got != 42 || attempts != 3 {
		t.Errorf("DoWithData() = %d after %d attempts, want 42 after 3", got, attempts)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  100,
		InitialDelay: 50 * time.Millisecond,
		Policy:       PolicyAll,
		Logger:       logging.New(config.LogConfig{Level: "emergency", Format: "json"}, logging.WithWriter(&bytes.Buffer{})),
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		cancel()
		return errors.New("unavailable")
	})
	if err == nil {
		t.Fatal("Do() expected error after cancellation")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDoLogsRetriesWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(config.LogConfig{Level: "debug", Format: "json"},
		logging.WithWriter(&buf), logging.WithObserver(tracectx.NewObserver()))

	ctx := tracectx.NewContext(logging.WithLogger(context.Background(), logger), "retry-trace/0")
	cfg := fastConfig(3)
	cfg.Policy = PolicyAll
	cfg.Operation = "database ping"

	_ = Do(ctx, cfg, func() error { return errors.New("connection refused") })

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %s", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["message"] != "retrying database ping" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["severity"] != "WARNING" {
		t.Errorf("severity = %v, want WARNING", entry["severity"])
	}
	if entry["trace"] != "retry-trace/0" {
		t.Errorf("trace = %v, want retry-trace/0", entry["trace"])
	}
	payload := entry["payload"].(map[string]interface{})
	if payload["attempt"] != float64(1) {
		t.Errorf("attempt = %v, want 1", payload["attempt"])
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.MaxAttempts != 10 || cfg.InitialDelay != 100*time.Millisecond ||
		cfg.MaxDelay != 5*time.Second || cfg.Multiplier != 2 || cfg.Jitter != 0.25 {
		t.Errorf("withDefaults() = %+v", cfg)
	}
}
