package database

import (
	"context"
	"strings"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/tracing"
	"github.com/jackc/pgx/v5"
)

// QueryLogger is a pgx.QueryTracer writing statements to a Logger:
//
//	executing query: <sql>   INFO, DEBUG for health probes; only with LogQueries
//	query failed: <sql>      ERROR
//	query is slow: <sql>     WARNING, over SlowQueryThreshold
//
// Every line carries the statement parameters under payload.
type QueryLogger struct {
	logger     *logging.Logger
	logQueries bool
	slow       time.Duration
	now        func() time.Time
}

var _ pgx.QueryTracer = (*QueryLogger)(nil)

// NewQueryLogger creates a QueryLogger for cfg's logging settings. A nil
// logger means logging.Default().
func NewQueryLogger(logger *logging.Logger, cfg config.DatabaseConfig) *QueryLogger {
	if logger == nil {
		logger = logging.Default()
	}
	return &QueryLogger{
		logger:     logger.WithComponent("database"),
		logQueries: cfg.LogQueries,
		slow:       cfg.SlowQueryThreshold,
		now:        time.Now,
	}
}

type queryKey struct{}

type queryStart struct {
	sql  string
	args []interface{}
	at   time.Time
}

// TraceQueryStart implements pgx.QueryTracer.
func (q *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	q.LogQuery(ctx, data.SQL, data.Args)
	return context.WithValue(ctx, queryKey{}, queryStart{sql: data.SQL, args: data.Args, at: q.now()})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (q *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryKey{}).(queryStart)
	if !ok {
		return
	}
	elapsed := q.now().Sub(start.at)

	tracing.AddSpanEvent(ctx, "db.query", tracing.DatabaseAttributes("postgresql", operation(start.sql), start.sql)...)

	switch {
	case data.Err != nil:
		q.LogQueryError(ctx, data.Err, start.sql, start.args)
	case q.slow > 0 && elapsed > q.slow:
		q.LogQuerySlow(ctx, elapsed, start.sql, start.args)
	}
}

// LogQuery logs a statement about to run when query logging is on.
func (q *QueryLogger) LogQuery(ctx context.Context, sql string, args []interface{}) {
	if !q.logQueries {
		return
	}
	sev := logging.SeverityInfo
	if isHealthProbe(sql) {
		sev = logging.SeverityDebug
	}
	q.logger.LogContext(ctx, sev, "executing query: "+sql, map[string]interface{}{"parameters": args})
}

// LogQueryError logs a failed statement.
func (q *QueryLogger) LogQueryError(ctx context.Context, err error, sql string, args []interface{}) {
	q.logger.LogContext(ctx, logging.SeverityError, "query failed: "+sql, map[string]interface{}{
		"error":      err,
		"parameters": args,
	})
}

// LogQuerySlow logs a statement that took longer than the threshold.
func (q *QueryLogger) LogQuerySlow(ctx context.Context, elapsed time.Duration, sql string, args []interface{}) {
	q.logger.LogContext(ctx, logging.SeverityWarning, "query is slow: "+sql, map[string]interface{}{
		"queryTime":  float64(elapsed.Microseconds()) / 1000,
		"parameters": args,
	})
}

// LogSchemaBuild logs a schema build step at INFO.
func (q *QueryLogger) LogSchemaBuild(ctx context.Context, msg string) {
	q.logger.LogContext(ctx, logging.SeverityInfo, msg, nil)
}

// LogMigration logs a migration step at INFO.
func (q *QueryLogger) LogMigration(ctx context.Context, msg string) {
	q.logger.LogContext(ctx, logging.SeverityInfo, msg, nil)
}

// Log writes a driver message. level is "log" (DEBUG), "info" or "warn";
// other levels are dropped.
func (q *QueryLogger) Log(ctx context.Context, level, msg string) {
	var sev logging.Severity
	switch level {
	case "log":
		sev = logging.SeverityDebug
	case "info":
		sev = logging.SeverityInfo
	case "warn":
		sev = logging.SeverityWarning
	default:
		return
	}
	q.logger.LogContext(ctx, sev, msg, nil)
}

var healthProbes = []string{"select 1", "select 1 as result"}

func isHealthProbe(sql string) bool {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	for _, probe := range healthProbes {
		if strings.EqualFold(s, probe) {
			return true
		}
	}
	return false
}

// operation returns the statement's leading keyword in upper case.
func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
