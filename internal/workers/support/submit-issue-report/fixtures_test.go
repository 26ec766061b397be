package submitissuereport

import (
	"context"
	goerrors "errors"
	"sync"
	"testing"
	"time"

	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/models"
	emailsend "birdwatch-support/internal/workers/communication/email-send"
)

var fixedNow = time.Date(2026, 10, 18, 14, 5, 0, 0, time.UTC)

// ==========================
// Fakes
// ==========================

type fakeIssueStore struct {
	mu      sync.Mutex
	err     error
	inserts []*models.IssueReport
}

func (s *fakeIssueStore) InsertIssue(ctx context.Context, r *models.IssueReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.inserts = append(s.inserts, r)
	return nil
}

type fakeIndexer struct {
	err     error
	indexed []string
}

func (i *fakeIndexer) IndexIssue(ctx context.Context, r *models.IssueReport) error {
	i.indexed = append(i.indexed, r.CaseNumber)
	return i.err
}

type fakeResolver struct {
	actor auth.Actor
	err   error
	calls int
}

func (r *fakeResolver) Resolve(ctx context.Context) (auth.Actor, error) {
	r.calls++
	if r.err != nil {
		return auth.Actor{}, r.err
	}
	return r.actor, nil
}

type fakePoster struct {
	err      error
	channel  string
	messages []string
}

func (p *fakePoster) Post(ctx context.Context, channel, content string) error {
	p.channel = channel
	p.messages = append(p.messages, content)
	return p.err
}

// gatewayQuota is a QuotaCounter with a preset count.
type gatewayQuota struct {
	mu   sync.Mutex
	used int64
}

func (q *gatewayQuota) Reserve(ctx context.Context, day string, limit int64) (int64, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used >= limit {
		return limit, false, nil
	}
	q.used++
	return q.used, true, nil
}

func (q *gatewayQuota) Usage(ctx context.Context, day string) (int64, error) {
	return q.used, nil
}

type gatewayQueue struct {
	mu     sync.Mutex
	emails map[string]*emailsend.QueuedEmail
}

func newGatewayQueue() *gatewayQueue {
	return &gatewayQueue{emails: map[string]*emailsend.QueuedEmail{}}
}

func (q *gatewayQueue) Enqueue(ctx context.Context, e *emailsend.QueuedEmail) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emails[e.ID] = e
	return nil
}

func (q *gatewayQueue) MarkSent(ctx context.Context, id string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emails[id].Status = emailsend.StatusSent
	q.emails[id].SentAt = &at
	return nil
}

func (q *gatewayQueue) MarkFailed(ctx context.Context, id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emails[id].Status = emailsend.StatusFailed
	return nil
}

func (q *gatewayQueue) ListRetryable(ctx context.Context, before time.Time, maxAttempts, limit int) ([]emailsend.QueuedEmail, error) {
	return nil, nil
}

func (q *gatewayQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.emails)
}

// scriptedTransport fails sends to the addresses in failTo.
type scriptedTransport struct {
	mu     sync.Mutex
	failTo map[string]bool
	sent   []emailsend.Message
}

func (t *scriptedTransport) Name() string { return "test" }

func (t *scriptedTransport) Send(ctx context.Context, msg emailsend.Message) (*emailsend.ProviderResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failTo[msg.To] {
		return nil, goerrors.New("mailbox unavailable")
	}
	t.sent = append(t.sent, msg)
	return &emailsend.ProviderResponse{ID: "msg-" + msg.To, Provider: "test"}, nil
}

// ==========================
// Pipeline fixture
// ==========================

const (
	testSupportAddress = "support@birdwatch.app"
	testReporter       = "user@example.com"
)

type pipeline struct {
	service   *Service
	store     *fakeIssueStore
	indexer   *fakeIndexer
	resolver  *fakeResolver
	poster    *fakePoster
	quota     *gatewayQuota
	queue     *gatewayQueue
	transport *scriptedTransport
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.SupportAddress = testSupportAddress
	cfg.Guard = GuardMemory
	return cfg
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	log := logger.NewTestLogger(t)
	cfg := testConfig()

	p := &pipeline{
		store:     &fakeIssueStore{},
		indexer:   &fakeIndexer{},
		resolver:  &fakeResolver{actor: auth.Actor{ID: "actor-1", Email: testReporter}},
		poster:    &fakePoster{},
		quota:     &gatewayQuota{},
		queue:     newGatewayQueue(),
		transport: &scriptedTransport{failTo: map[string]bool{}},
	}

	gwCfg := emailsend.DefaultConfig()
	gwCfg.FromAddress = "BirdWatch Support <noreply@birdwatch.app>"
	gateway := emailsend.NewService(emailsend.ServiceDependencies{
		Logger:    log,
		Quota:     p.quota,
		Queue:     p.queue,
		Transport: p.transport,
		Clock:     func() time.Time { return fixedNow },
	}, gwCfg)

	p.service = NewService(ServiceDependencies{
		Logger:     log,
		Resolver:   p.resolver,
		Guard:      NewMemoryGuard(),
		Recorder:   NewRecorder(p.store, p.indexer, nil, func() time.Time { return fixedNow }, log),
		Dispatcher: NewDispatcher(gateway, p.poster, cfg.Policy, cfg.SupportAddress, cfg.WebhookChannel, log),
	}, cfg)
	return p
}

func persistenceFailure() error {
	return errors.NewPersistenceError("issues", goerrors.New("connection refused"))
}
