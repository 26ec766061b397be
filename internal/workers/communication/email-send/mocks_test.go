package emailsend

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/mock"
)

// ==========================
// Mocks
// ==========================

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Name() string { return "mock" }

func (m *MockTransport) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProviderResponse), args.Error(1)
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, email *QueuedEmail) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockQueue) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return m.Called(ctx, id, sentAt).Error(0)
}

func (m *MockQueue) MarkFailed(ctx context.Context, id string, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockQueue) ListRetryable(ctx context.Context, staleBefore time.Time, maxAttempts, limit int) ([]QueuedEmail, error) {
	args := m.Called(ctx, staleBefore, maxAttempts, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]QueuedEmail), args.Error(1)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

// memoryQuota is an in-process QuotaCounter.
type memoryQuota struct {
	mu   sync.Mutex
	used map[string]int64
	err  error
}

func newMemoryQuota() *memoryQuota {
	return &memoryQuota{used: map[string]int64{}}
}

func (q *memoryQuota) Reserve(ctx context.Context, day string, limit int64) (int64, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, false, q.err
	}
	if q.used[day] >= limit {
		return limit, false, nil
	}
	q.used[day]++
	return q.used[day], true, nil
}

func (q *memoryQuota) Usage(ctx context.Context, day string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used[day], q.err
}

type stubLock struct {
	acquired bool
	err      error
	unlocked bool
}

func (l *stubLock) TryLock(ctx context.Context) (bool, error) { return l.acquired, l.err }

func (l *stubLock) Unlock(ctx context.Context) error {
	l.unlocked = true
	return nil
}

// ==========================
// Helpers
// ==========================

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func createValidConfig() *Config {
	cfg := DefaultConfig()
	cfg.FromAddress = "support@birdwatch.app"
	return cfg
}

func createValidRequest() *SendRequest {
	return &SendRequest{
		To:      "observer@example.com",
		Subject: "Your report was received",
		Text:    "Thanks for the report.",
	}
}

func strPtr(s string) *string { return &s }
