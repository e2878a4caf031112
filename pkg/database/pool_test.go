package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/pashagolub/pgxmock/v4"
)

func newMockPool(t *testing.T) (*Pool, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return &Pool{pool: mock}, mock
}

func expectationsMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %s", err)
	}
}

func TestBuildConnString(t *testing.T) {
	base := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "jobs",
		User:     "cqtrace",
		Password: "secret",
	}
	withSSL := base
	withSSL.SSLMode = "require"
	withTimeout := withSSL
	withTimeout.ConnectTimeout = 10 * time.Second

	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{"basic", base, "host=localhost port=5432 dbname=jobs user=cqtrace password=secret"},
		{"ssl mode", withSSL, "host=localhost port=5432 dbname=jobs user=cqtrace password=secret sslmode=require"},
		{"connect timeout", withTimeout, "host=localhost port=5432 dbname=jobs user=cqtrace password=secret sslmode=require connect_timeout=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildConnString(tt.cfg); got != tt.want {
				t.Errorf("buildConnString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPoolQuery(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, title FROM jobs").
		WithArgs("published").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title"}).AddRow(1, "Cook").AddRow(2, "Driver"))

	rows, err := pool.Query(ctx, "SELECT id, title FROM jobs WHERE state = $1", "published")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	count := 0
	for rows.Next() {
		count++
	}
	rows.Close()
	if count != 2 {
		t.Errorf("Query() returned %d rows, want 2", count)
	}

	mock.ExpectQuery("SELECT id FROM jobs").WillReturnError(errors.New("relation does not exist"))
	if _, err := pool.Query(ctx, "SELECT id FROM jobs"); err == nil {
		t.Error("Query() expected error, got nil")
	}

	expectationsMet(t, mock)
}

func TestPoolQueryRow(t *testing.T) {
	pool, mock := newMockPool(t)

	mock.ExpectQuery("SELECT title FROM jobs").
		WithArgs(7).
		WillReturnRows(pgxmock.NewRows([]string{"title"}).AddRow("Cook"))

	var title string
	if err := pool.QueryRow(context.Background(), "SELECT title FROM jobs WHERE id = $1", 7).Scan(&title); err != nil {
		t.Fatalf("QueryRow().Scan() error = %v", err)
	}
	if title != "Cook" {
		t.Errorf("title = %q, want Cook", title)
	}
	expectationsMet(t, mock)
}

func TestPoolExec(t *testing.T) {
	pool, mock := newMockPool(t)

	mock.ExpectExec("UPDATE jobs").
		WithArgs("closed", 7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tag, err := pool.Exec(context.Background(), "UPDATE jobs SET state = $1 WHERE id = $2", "closed", 7)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Errorf("RowsAffected() = %d, want 1", tag.RowsAffected())
	}
	expectationsMet(t, mock)
}

func TestPoolBegin(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Errorf("Rollback() error = %v", err)
	}

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
	if _, err := pool.Begin(ctx); err == nil {
		t.Error("Begin() expected error, got nil")
	}

	expectationsMet(t, mock)
}

func TestPoolWithTransaction(t *testing.T) {
	ctx := context.Background()
	insert := func(tx Transaction) error {
		_, err := tx.Exec(ctx, "INSERT INTO jobs (title) VALUES ($1)", "Cook")
		return err
	}

	t.Run("commits on success", func(t *testing.T) {
		pool, mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO jobs").WithArgs("Cook").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		if err := pool.WithTransaction(ctx, insert); err != nil {
			t.Fatalf("WithTransaction() error = %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		pool, mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO jobs").WithArgs("Cook").WillReturnError(errors.New("duplicate key"))
		mock.ExpectRollback()

		err := pool.WithTransaction(ctx, insert)
		if err == nil || err.Error() != "duplicate key" {
			t.Fatalf("WithTransaction() error = %v, want duplicate key", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		pool, mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		defer func() {
			if r := recover(); r == nil {
				t.Error("WithTransaction() did not re-panic")
			}
			expectationsMet(t, mock)
		}()
		_ = pool.WithTransaction(ctx, func(tx Transaction) error {
			panic("boom")
		})
	})

	t.Run("commit failure", func(t *testing.T) {
		pool, mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		if err := pool.WithTransaction(ctx, func(Transaction) error { return nil }); err == nil {
			t.Error("WithTransaction() expected commit error, got nil")
		}
		expectationsMet(t, mock)
	})
}

func TestPoolPing(t *testing.T) {
	pool, mock := newMockPool(t)

	mock.ExpectPing()
	if err := pool.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	if err := pool.Ping(context.Background()); err == nil {
		t.Error("Ping() expected error, got nil")
	}
	expectationsMet(t, mock)
}

func TestPoolClose(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	(&Pool{pool: mock}).Close()
}
