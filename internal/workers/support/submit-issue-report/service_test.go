package submitissuereport

import (
	"context"
	goerrors "errors"
	"regexp"
	"testing"

	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var caseNumberPattern = regexp.MustCompile(`^BW-\d{8}-[0-9A-HJKMNP-TV-Z]{10}$`)

func TestService_HappyPath(t *testing.T) {
	p := newPipeline(t)

	outcome, err := p.service.Report(context.Background(), Submission{
		Description:   "App crashes on login",
		ReporterEmail: testReporter,
	})

	require.NoError(t, err)
	require.Len(t, p.store.inserts, 1)
	report := p.store.inserts[0]
	assert.Regexp(t, caseNumberPattern, report.CaseNumber)
	assert.Equal(t, "actor-1", report.UserID)
	assert.Equal(t, "open", string(report.Status))
	assert.Equal(t, fixedNow, report.ReportedAt)

	assert.Equal(t, report.CaseNumber, outcome.CaseNumber)
	assert.Contains(t, outcome.Toast.Description, report.CaseNumber)
	assert.Equal(t, "Issue Report Sent", outcome.Toast.Title)
	assert.True(t, outcome.ResetInput)
	assert.True(t, outcome.CloseDialog)

	require.Len(t, p.transport.sent, 2)
	assert.Equal(t, testSupportAddress, p.transport.sent[0].To)
	assert.Equal(t, testReporter, p.transport.sent[1].To)
	assert.Equal(t, 2, p.queue.count())

	require.Len(t, p.poster.messages, 1)
	assert.Equal(t, SupportChannel, p.poster.channel)
	assert.Contains(t, p.poster.messages[0], report.CaseNumber)
	assert.Equal(t, []string{report.CaseNumber}, p.indexer.indexed)
}

func TestService_BlankDescriptionMakesNoRemoteCall(t *testing.T) {
	for _, description := range []string{"", "   ", "\n\t "} {
		p := newPipeline(t)

		outcome, err := p.service.Report(context.Background(), Submission{Description: description, ReporterEmail: testReporter})

		require.Error(t, err)
		assert.True(t, goerrors.Is(err, errors.ErrValidation))
		assert.Equal(t, msgDescriptionRequired, outcome.Toast.Description)
		assert.False(t, outcome.ResetInput)
		assert.Zero(t, p.resolver.calls)
		assert.Empty(t, p.store.inserts)
		assert.Zero(t, p.queue.count())
		assert.Empty(t, p.poster.messages)
	}
}

func TestService_MissingEmailRejectedBeforePersistence(t *testing.T) {
	p := newPipeline(t)

	outcome, err := p.service.Report(context.Background(), Submission{Description: "Map is blank"})

	require.Error(t, err)
	assert.Equal(t, msgEmailRequired, outcome.Toast.Description)
	assert.Empty(t, p.store.inserts)
	assert.Zero(t, p.queue.count())
}

func TestService_Unauthenticated(t *testing.T) {
	p := newPipeline(t)
	p.resolver.err = errors.NewAuthenticationError("no session")

	outcome, err := p.service.Report(context.Background(), Submission{Description: "x", ReporterEmail: testReporter})

	require.Error(t, err)
	assert.True(t, goerrors.Is(err, errors.ErrAuthentication))
	assert.Equal(t, "User not authenticated", outcome.Toast.Description)
	assert.Empty(t, p.store.inserts)
}

func TestService_ReporterMustMatchActor(t *testing.T) {
	p := newPipeline(t)

	outcome, err := p.service.Report(context.Background(), Submission{
		Description:   "Map pins vanish",
		ReporterEmail: "someone@elsewhere.test",
	})

	require.Error(t, err)
	assert.True(t, goerrors.Is(err, errors.ErrValidation))
	assert.Equal(t, msgEmailMismatch, outcome.Toast.Description)
	assert.Equal(t, 1, p.resolver.calls)
	assert.Empty(t, p.store.inserts)
	assert.Zero(t, p.queue.count())
	assert.Empty(t, p.transport.sent)
	assert.Empty(t, p.poster.messages)
}

func TestService_ReporterMatchIgnoresCase(t *testing.T) {
	p := newPipeline(t)

	_, err := p.service.Report(context.Background(), Submission{
		Description:   "Map pins vanish",
		ReporterEmail: "User@Example.com",
	})

	require.NoError(t, err)
	require.Len(t, p.store.inserts, 1)
}

func TestService_ActorWithoutEmailKeepsReporter(t *testing.T) {
	p := newPipeline(t)
	p.resolver.actor = auth.Actor{ID: "actor-2"}

	_, err := p.service.Report(context.Background(), Submission{Description: "Map pins vanish", ReporterEmail: testReporter})

	require.NoError(t, err)
	require.Len(t, p.transport.sent, 2)
	assert.Equal(t, testReporter, p.transport.sent[1].To)
}

func TestService_PersistenceFailureSendsNothing(t *testing.T) {
	p := newPipeline(t)
	p.store.err = persistenceFailure()

	outcome, err := p.service.Report(context.Background(), Submission{Description: "x", ReporterEmail: testReporter})

	require.Error(t, err)
	assert.True(t, goerrors.Is(err, errors.ErrPersistence))
	assert.Equal(t, "Error", outcome.Toast.Title)
	assert.Zero(t, p.queue.count())
	assert.Empty(t, p.transport.sent)
	assert.Empty(t, p.poster.messages)
	assert.Empty(t, p.indexer.indexed)
}

func TestService_SupportEmailFailureKeepsReport(t *testing.T) {
	p := newPipeline(t)
	p.transport.failTo[testSupportAddress] = true

	outcome, err := p.service.Report(context.Background(), Submission{Description: "x", ReporterEmail: testReporter})

	require.Error(t, err)
	assert.True(t, goerrors.Is(err, errors.ErrDispatch))
	assert.Equal(t, "Failed to send support email", outcome.Toast.Description)
	assert.Equal(t, string(errors.ErrCodeNotificationSendFailed), outcome.Code)
	assert.False(t, outcome.ResetInput)

	require.Len(t, p.store.inserts, 1, "the report stays recorded")
	assert.Empty(t, p.transport.sent, "no acknowledgment after a failed support email")
	assert.Empty(t, p.poster.messages)
}

func TestService_AckFailureStillSucceeds(t *testing.T) {
	p := newPipeline(t)
	p.transport.failTo[testReporter] = true

	receipt, err := p.service.Submit(context.Background(), Submission{Description: "x", ReporterEmail: testReporter})

	require.NoError(t, err)
	assert.True(t, receipt.Dispatch.SupportSent)
	assert.False(t, receipt.Dispatch.AckSent)
	assert.True(t, receipt.Dispatch.WebhookPosted)
}

func TestService_WebhookFailureStillSucceeds(t *testing.T) {
	p := newPipeline(t)
	p.poster.err = goerrors.New("webhook returned 404")

	receipt, err := p.service.Submit(context.Background(), Submission{Description: "x", ReporterEmail: testReporter})

	require.NoError(t, err)
	assert.False(t, receipt.Dispatch.WebhookPosted)
}

func TestService_QuotaExhaustedSurfacesDistinctly(t *testing.T) {
	p := newPipeline(t)
	p.quota.used = 2000

	outcome, err := p.service.Report(context.Background(), Submission{Description: "x", ReporterEmail: testReporter})

	require.Error(t, err)
	assert.True(t, goerrors.Is(err, errors.ErrQuotaExceeded))
	assert.False(t, goerrors.Is(err, errors.ErrDispatch))
	assert.Equal(t, "Email Limit Reached", outcome.Toast.Title)
	assert.Equal(t, "Daily email limit reached (2000 emails/day)", outcome.Toast.Description)
	assert.Equal(t, 429, HTTPStatus(err))
	assert.Len(t, p.store.inserts, 1)
	assert.Zero(t, p.queue.count())
}

func TestService_InFlightGuard(t *testing.T) {
	p := newPipeline(t)
	release, err := p.service.guard.Acquire(context.Background(), "actor-1")
	require.NoError(t, err)

	_, err = p.service.Submit(context.Background(), Submission{Description: "x", ReporterEmail: testReporter})
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, errors.ErrSubmissionInFlight))
	assert.Empty(t, p.store.inserts)

	release()
	_, err = p.service.Submit(context.Background(), Submission{Description: "x", ReporterEmail: testReporter})
	require.NoError(t, err)
}

func TestService_IgnoresCallerCancellation(t *testing.T) {
	p := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.service.Submit(ctx, Submission{Description: "x", ReporterEmail: testReporter})

	require.NoError(t, err)
	assert.Len(t, p.transport.sent, 2)
}
