package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolInterface is what Pool needs from *pgxpool.Pool; pgxmock pools
// implement it too.
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
	Stat() *pgxpool.Stat
}

var _ PoolInterface = (*pgxpool.Pool)(nil)

// Pool is a traced PostgreSQL pool. It implements Database, and Begin hands
// out pgx transactions as Transactions.
type Pool struct {
	pool PoolInterface
}

// Option configures NewPool.
type Option func(*poolOptions)

type poolOptions struct {
	logger *logging.Logger
	retry  retry.Config
}

// WithLogger sends statement logs to l rather than logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(o *poolOptions) {
		o.logger = l
	}
}

// WithConnectRetry retries the startup ping under cfg. Without it the ping
// is tried once.
func WithConnectRetry(cfg retry.Config) Option {
	return func(o *poolOptions) {
		o.retry = cfg
	}
}

// NewPool opens the pool described by cfg, installs a QueryLogger as the
// connection tracer and pings until the retry policy gives up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Pool, error) {
	o := poolOptions{retry: retry.Config{MaxAttempts: 1}}
	for _, opt := range opts {
		opt(&o)
	}

	pc, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	applyLimits(pc, cfg)
	pc.ConnConfig.Tracer = NewQueryLogger(o.logger, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	rc := o.retry
	if rc.Logger == nil {
		rc.Logger = o.logger
	}
	if rc.Operation == "" {
		rc.Operation = "database ping"
	}
	if err := retry.Do(ctx, rc, func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// applyLimits copies the positive sizing values of cfg onto pc, leaving pgx
// defaults for the rest.
func applyLimits(pc *pgxpool.Config, cfg config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pc.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
}

func buildConnString(cfg config.DatabaseConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "host=%s port=%d dbname=%s user=%s password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)
	if cfg.SSLMode != "" {
		b.WriteString(" sslmode=" + cfg.SSLMode)
	}
	if cfg.ConnectTimeout > 0 {
		fmt.Fprintf(&b, " connect_timeout=%d", int(cfg.ConnectTimeout.Seconds()))
	}
	return b.String()
}

func (p *Pool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

// QueryRow defers errors to Scan.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// Begin starts a transaction. pgx.Tx already satisfies Transaction.
func (p *Pool) Begin(ctx context.Context) (Transaction, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// WithTransaction commits when fn returns nil. An error or a panic from fn
// rolls back; the panic is re-raised afterwards.
func (p *Pool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := p.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w): %v", err, rbErr)
		}
		return err
	}

	committed = true
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *Pool) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }
func (p *Pool) Close()                         { p.pool.Close() }
func (p *Pool) Stats() *pgxpool.Stat           { return p.pool.Stat() }
