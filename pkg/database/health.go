package database

import (
	"context"
	"fmt"
	"time"
)

const healthTimeout = 5 * time.Second

// CheckHealth runs "SELECT 1" against db. Without a deadline on ctx the
// check is bounded by five seconds.
func CheckHealth(ctx context.Context, db Database) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, healthTimeout)
		defer cancel()
	}

	var result int
	if err := db.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("health check returned unexpected result: %d", result)
	}
	return nil
}

// Check implements health.Checker. It fails when the database does not
// answer or when every connection of the pool is in use.
func (p *Pool) Check(ctx context.Context) error {
	if err := CheckHealth(ctx, p); err != nil {
		return err
	}
	if stats := p.Stats(); stats != nil && stats.MaxConns() > 0 &&
		stats.IdleConns() == 0 && stats.TotalConns() == stats.MaxConns() {
		return fmt.Errorf("connection pool exhausted: %d/%d connections in use",
			stats.TotalConns(), stats.MaxConns())
	}
	return nil
}
