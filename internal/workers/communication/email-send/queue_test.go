package emailsend

import (
	"context"
	goerrors "errors"
	"regexp"
	"testing"
	"time"

	"birdwatch-support/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresQueue_Enqueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	email := &QueuedEmail{
		ID:          "q1",
		ToEmail:     "observer@example.com",
		Subject:     "s",
		TextContent: "t",
		Status:      StatusPending,
		CreatedAt:   fixedNow,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_queue")).
		WithArgs("q1", "observer@example.com", "s", "t", sqlmock.AnyArg(), "pending", 0, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewPostgresQueue(db).Enqueue(context.Background(), email))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_EnqueueFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_queue")).
		WillReturnError(goerrors.New("relation does not exist"))

	err = NewPostgresQueue(db).Enqueue(context.Background(), &QueuedEmail{ID: "q1", CreatedAt: fixedNow})

	require.Error(t, err)
	assert.True(t, goerrors.Is(err, errors.ErrPersistence))
}

func TestPostgresQueue_MarkSentAndFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	queue := NewPostgresQueue(db)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'sent'")).
		WithArgs("q1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'failed'")).
		WithArgs("q2", "throttled").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, queue.MarkSent(context.Background(), "q1", fixedNow))
	require.NoError(t, queue.MarkFailed(context.Background(), "q2", "throttled"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_ListRetryable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	staleBefore := fixedNow.Add(-15 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "to_email", "subject", "text_content", "html_content", "status", "attempts", "last_error", "created_at"}).
		AddRow("q1", "a@example.com", "s", "t", nil, "failed", 2, "throttled", staleBefore).
		AddRow("q2", "b@example.com", "s", "t", "<p>t</p>", "pending", 0, nil, staleBefore)

	mock.ExpectQuery(regexp.QuoteMeta("FROM email_queue")).
		WithArgs(5, staleBefore, 50).
		WillReturnRows(rows)

	out, err := NewPostgresQueue(db).ListRetryable(context.Background(), staleBefore, 5, 50)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, StatusFailed, out[0].Status)
	assert.Equal(t, 2, out[0].Attempts)
	require.NotNil(t, out[0].LastError)
	assert.Equal(t, "throttled", *out[0].LastError)
	assert.Nil(t, out[0].HTMLContent)
	require.NotNil(t, out[1].HTMLContent)
	assert.Equal(t, "<p>t</p>", *out[1].HTMLContent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_ListRetryableQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM email_queue")).WillReturnError(goerrors.New("timeout"))

	_, err = NewPostgresQueue(db).ListRetryable(context.Background(), fixedNow, 5, 50)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, errors.FromError(err).Code)
}
