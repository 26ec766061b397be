package submitissuereport

import (
	"context"
	"database/sql"
	"time"

	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/models"

	"github.com/google/uuid"
)

// IssueStore persists issue reports.
type IssueStore interface {
	InsertIssue(ctx context.Context, report *models.IssueReport) error
}

// PostgresIssueStore writes to the issues table.
type PostgresIssueStore struct {
	db *sql.DB
}

func NewPostgresIssueStore(db *sql.DB) *PostgresIssueStore {
	return &PostgresIssueStore{db: db}
}

func (s *PostgresIssueStore) InsertIssue(ctx context.Context, report *models.IssueReport) error {
	query := `
		INSERT INTO issues (id, case_number, user_id, reporter_email, description, status, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		report.ID,
		report.CaseNumber,
		report.UserID,
		report.ReporterEmail,
		report.Description,
		string(report.Status),
		report.ReportedAt,
	)
	if err != nil {
		return errors.NewPersistenceError("issues", err)
	}
	return nil
}

// Recorder turns a validated submission into a stored IssueReport.
type Recorder struct {
	store   IssueStore
	indexer IssueIndexer
	newCase CaseNumberGenerator
	now     func() time.Time
	logger  logger.Logger
}

// NewRecorder builds a recorder. indexer may be nil.
func NewRecorder(store IssueStore, indexer IssueIndexer, newCase CaseNumberGenerator, now func() time.Time, log logger.Logger) *Recorder {
	if newCase == nil {
		newCase = GenerateCaseNumber
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, indexer: indexer, newCase: newCase, now: now, logger: log}
}

// Record stores the report for actor. Indexing for search happens after the
// insert and never fails the call.
func (r *Recorder) Record(ctx context.Context, actor auth.Actor, sub Submission) (*models.IssueReport, error) {
	now := r.now().UTC()
	caseNumber, err := r.newCase(now)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	report := &models.IssueReport{
		ID:            uuid.New().String(),
		CaseNumber:    caseNumber,
		UserID:        actor.ID,
		ReporterEmail: sub.ReporterEmail,
		Description:   sub.Description,
		Status:        models.IssueStatusOpen,
		ReportedAt:    now,
	}

	if err := r.store.InsertIssue(ctx, report); err != nil {
		r.logger.Error("Failed to store issue report", map[string]interface{}{
			"error":      err,
			"caseNumber": caseNumber,
			"userId":     actor.ID,
		})
		return nil, err
	}

	r.logger.Info("Issue report recorded", map[string]interface{}{
		"issueId":    report.ID,
		"caseNumber": caseNumber,
		"userId":     actor.ID,
	})

	if r.indexer != nil {
		if err := r.indexer.IndexIssue(ctx, report); err != nil {
			r.logger.Warn("Failed to index issue report", map[string]interface{}{
				"error":      err,
				"caseNumber": caseNumber,
			})
		}
	}
	return report, nil
}
