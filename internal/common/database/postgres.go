package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/errors"

	_ "github.com/lib/pq"
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 2
	connMaxLifetime     = 5 * time.Minute
)

// schema holds the tables owned by the support pipeline and the mail queue.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS issues (
		id UUID PRIMARY KEY,
		case_number VARCHAR(32) NOT NULL UNIQUE,
		user_id VARCHAR(255) NOT NULL,
		reporter_email VARCHAR(320) NOT NULL,
		description TEXT NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'open',
		reported_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS issues_user_id_idx ON issues (user_id)`,
	`CREATE TABLE IF NOT EXISTS email_queue (
		id UUID PRIMARY KEY,
		to_email VARCHAR(320) NOT NULL,
		subject TEXT NOT NULL,
		text_content TEXT NOT NULL,
		html_content TEXT,
		status VARCHAR(16) NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS email_queue_pending_idx ON email_queue (created_at) WHERE status = 'pending'`,
}

// PostgresClient owns the issues and email_queue tables.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}

	maxOpen, maxIdle := cfg.MaxConnections, cfg.MaxIdle
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = defaultMaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxLifetime)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

// EnsureSchema creates missing tables and indexes in a single transaction.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return errors.NewQueryExecutionFailedError(fmt.Sprintf("schema step %d", i+1), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.NewQueryExecutionFailedError("schema commit", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
