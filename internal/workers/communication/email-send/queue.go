package emailsend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"birdwatch-support/internal/common/errors"
)

// Queue persists every accepted send so failures can be reconciled.
type Queue interface {
	Enqueue(ctx context.Context, email *QueuedEmail) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	// ListRetryable returns failed rows and pending rows created before
	// staleBefore, oldest first, with fewer than maxAttempts attempts.
	ListRetryable(ctx context.Context, staleBefore time.Time, maxAttempts, limit int) ([]QueuedEmail, error)
}

// PostgresQueue stores the queue in the email_queue table.
type PostgresQueue struct {
	db *sql.DB
}

func NewPostgresQueue(db *sql.DB) *PostgresQueue {
	return &PostgresQueue{db: db}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, email *QueuedEmail) error {
	query := `
		INSERT INTO email_queue (id, to_email, subject, text_content, html_content, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.db.ExecContext(ctx, query,
		email.ID,
		email.ToEmail,
		email.Subject,
		email.TextContent,
		email.HTMLContent,
		string(email.Status),
		email.Attempts,
		email.CreatedAt,
	)
	if err != nil {
		return errors.NewPersistenceError("email_queue", err)
	}
	return nil
}

func (q *PostgresQueue) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `
		UPDATE email_queue
		SET status = 'sent', sent_at = $2, attempts = attempts + 1, last_error = NULL
		WHERE id = $1
	`
	if _, err := q.db.ExecContext(ctx, query, id, sentAt); err != nil {
		return errors.NewPersistenceError("email_queue", err)
	}
	return nil
}

func (q *PostgresQueue) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE email_queue
		SET status = 'failed', attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`
	if _, err := q.db.ExecContext(ctx, query, id, reason); err != nil {
		return errors.NewPersistenceError("email_queue", err)
	}
	return nil
}

func (q *PostgresQueue) ListRetryable(ctx context.Context, staleBefore time.Time, maxAttempts, limit int) ([]QueuedEmail, error) {
	query := `
		SELECT id, to_email, subject, text_content, html_content, status, attempts, last_error, created_at
		FROM email_queue
		WHERE attempts < $1
		  AND (status = 'failed' OR (status = 'pending' AND created_at < $2))
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := q.db.QueryContext(ctx, query, maxAttempts, staleBefore, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_retryable_emails", err)
	}
	defer rows.Close()

	var out []QueuedEmail
	for rows.Next() {
		var (
			e         QueuedEmail
			status    string
			html      sql.NullString
			lastError sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ToEmail, &e.Subject, &e.TextContent, &html, &status, &e.Attempts, &lastError, &e.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_retryable_emails", fmt.Errorf("scan: %w", err))
		}
		e.Status = EmailStatus(status)
		if html.Valid {
			e.HTMLContent = &html.String
		}
		if lastError.Valid {
			e.LastError = &lastError.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_retryable_emails", err)
	}
	return out, nil
}
