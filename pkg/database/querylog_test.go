package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"github.com/jackc/pgx/v5"
)

func newQueryLogger(buf *bytes.Buffer, cfg config.DatabaseConfig) *QueryLogger {
	logger := logging.New(config.LogConfig{
		Level:                  "debug",
		Format:                 "json",
		MaxFieldLengthForError: 4000,
	}, logging.WithWriter(buf), logging.WithObserver(tracectx.NewObserver()))
	return NewQueryLogger(logger, cfg)
}

func entries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

// fakeClock advances by step on every call.
func fakeClock(step time.Duration) func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestQueryLoggerTrace(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		sql      string
		err      error
		step     time.Duration
		wantMsgs []string
		wantSevs []string
	}{
		{
			name:     "query logging off",
			cfg:      config.DatabaseConfig{},
			sql:      "SELECT * FROM jobs",
			step:     time.Millisecond,
			wantMsgs: nil,
		},
		{
			name:     "query logged at info",
			cfg:      config.DatabaseConfig{LogQueries: true},
			sql:      "SELECT * FROM jobs WHERE id = $1",
			step:     time.Millisecond,
			wantMsgs: []string{"executing query: SELECT * FROM jobs WHERE id = $1"},
			wantSevs: []string{"INFO"},
		},
		{
			name:     "health probe logged at debug",
			cfg:      config.DatabaseConfig{LogQueries: true},
			sql:      "SELECT 1 as result",
			step:     time.Millisecond,
			wantMsgs: []string{"executing query: SELECT 1 as result"},
			wantSevs: []string{"DEBUG"},
		},
		{
			name:     "failed query",
			cfg:      config.DatabaseConfig{},
			sql:      "DELETE FROM jobs",
			err:      errors.New("permission denied"),
			step:     time.Millisecond,
			wantMsgs: []string{"query failed: DELETE FROM jobs"},
			wantSevs: []string{"ERROR"},
		},
		{
			name:     "slow query",
			cfg:      config.DatabaseConfig{LogQueries: true, SlowQueryThreshold: 100 * time.Millisecond},
			sql:      "UPDATE jobs SET state = $1",
			step:     time.Second,
			wantMsgs: []string{"executing query: UPDATE jobs SET state = $1", "query is slow: UPDATE jobs SET state = $1"},
			wantSevs: []string{"INFO", "WARNING"},
		},
		{
			name:     "fast query under threshold",
			cfg:      config.DatabaseConfig{SlowQueryThreshold: time.Second},
			sql:      "UPDATE jobs SET state = $1",
			step:     time.Millisecond,
			wantMsgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			q := newQueryLogger(&buf, tt.cfg)
			q.now = fakeClock(tt.step)

			ctx := tracectx.NewContext(context.Background(), "db-trace/0")
			ctx = q.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: tt.sql, Args: []interface{}{"published"}})
			q.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: tt.err})

			got := entries(t, &buf)
			if len(got) != len(tt.wantMsgs) {
				t.Fatalf("got %d log lines, want %d: %s", len(got), len(tt.wantMsgs), buf.String())
			}
			for i, entry := range got {
				if entry["message"] != tt.wantMsgs[i] {
					t.Errorf("line %d message = %v, want %v", i, entry["message"], tt.wantMsgs[i])
				}
				if entry["severity"] != tt.wantSevs[i] {
					t.Errorf("line %d severity = %v, want %v", i, entry["severity"], tt.wantSevs[i])
				}
				if entry["trace"] != "db-trace/0" {
					t.Errorf("line %d trace = %v, want db-trace/0", i, entry["trace"])
				}
				payload, ok := entry["payload"].(map[string]interface{})
				if !ok {
					t.Fatalf("line %d has no payload", i)
				}
				params, ok := payload["parameters"].([]interface{})
				if !ok || len(params) != 1 || params[0] != "published" {
					t.Errorf("line %d parameters = %v", i, payload["parameters"])
				}
			}
		})
	}
}

func TestQueryLoggerPayloads(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(&buf, config.DatabaseConfig{})
	ctx := context.Background()

	q.LogQueryError(ctx, errors.New("syntax error"), "SELEC 1", nil)
	q.LogQuerySlow(ctx, 1500*time.Millisecond, "SELECT pg_sleep(1.5)", nil)

	got := entries(t, &buf)
	if len(got) != 2 {
		t.Fatalf("got %d log lines, want 2", len(got))
	}

	errPayload := got[0]["payload"].(map[string]interface{})
	errField, ok := errPayload["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("error payload = %v, want object", errPayload["error"])
	}
	if errField["message"] != "syntax error" {
		t.Errorf("error message = %v, want syntax error", errField["message"])
	}

	slowPayload := got[1]["payload"].(map[string]interface{})
	if slowPayload["queryTime"] != 1500.0 {
		t.Errorf("queryTime = %v, want 1500", slowPayload["queryTime"])
	}
}

func TestQueryLoggerMessages(t *testing.T) {
	tests := []struct {
		name    string
		log     func(q *QueryLogger, ctx context.Context)
		wantSev string
		wantMsg string
	}{
		{"schema build", func(q *QueryLogger, ctx context.Context) { q.LogSchemaBuild(ctx, "creating table jobs") }, "INFO", "creating table jobs"},
		{"migration", func(q *QueryLogger, ctx context.Context) { q.LogMigration(ctx, "applied 0003_jobs") }, "INFO", "applied 0003_jobs"},
		{"log level", func(q *QueryLogger, ctx context.Context) { q.Log(ctx, "log", "connected") }, "DEBUG", "connected"},
		{"info level", func(q *QueryLogger, ctx context.Context) { q.Log(ctx, "info", "pool ready") }, "INFO", "pool ready"},
		{"warn level", func(q *QueryLogger, ctx context.Context) { q.Log(ctx, "warn", "pool exhausted") }, "WARNING", "pool exhausted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			q := newQueryLogger(&buf, config.DatabaseConfig{})
			tt.log(q, context.Background())

			got := entries(t, &buf)
			if len(got) != 1 {
				t.Fatalf("got %d log lines, want 1", len(got))
			}
			if got[0]["severity"] != tt.wantSev {
				t.Errorf("severity = %v, want %v", got[0]["severity"], tt.wantSev)
			}
			if got[0]["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %v", got[0]["message"], tt.wantMsg)
			}
		})
	}
}

func TestQueryLoggerUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(&buf, config.DatabaseConfig{})
	q.Log(context.Background(), "query", "ignored")
	if buf.Len() != 0 {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestQueryLoggerEndWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(&buf, config.DatabaseConfig{})
	q.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{Err: errors.New("boom")})
	if buf.Len() != 0 {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestIsHealthProbe(t *testing.T) {
	tests := map[string]bool{
		"SELECT 1":            true,
		"select 1;":           true,
		" SELECT 1 as result": true,
		"SELECT 10":           false,
		"SELECT 1 FROM jobs":  false,
	}
	for sql, want := range tests {
		if got := isHealthProbe(sql); got != want {
			t.Errorf("isHealthProbe(%q) = %v, want %v", sql, got, want)
		}
	}
}

func TestOperation(t *testing.T) {
	if got := operation("  insert into jobs values ($1)"); got != "INSERT" {
		t.Errorf("operation() = %q, want INSERT", got)
	}
	if got := operation(""); got != "" {
		t.Errorf("operation(\"\") = %q, want empty", got)
	}
	if !strings.HasPrefix(operation("SELECT 1"), "SELECT") {
		t.Error("operation() lost the keyword")
	}
}
