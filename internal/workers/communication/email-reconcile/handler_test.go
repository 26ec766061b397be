package emailreconcile

import (
	"context"
	goerrors "errors"
	"testing"
	"time"

	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	emailsend "birdwatch-support/internal/workers/communication/email-send"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context) (*emailsend.ReconcileResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*emailsend.ReconcileResult), args.Error(1)
}

func TestNewHandler_RequiresReconciler(t *testing.T) {
	_, err := NewHandler(HandlerOptions{Logger: logger.NewTestLogger(t)})
	assert.Error(t, err)
}

func TestHandler_Execute(t *testing.T) {
	rec := new(MockReconciler)
	rec.On("Reconcile", mock.Anything).Return(&emailsend.ReconcileResult{Scanned: 3, Sent: 2, Failed: 1}, nil)

	h, err := NewHandler(HandlerOptions{Reconciler: rec, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	result, err := h.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"reconcileScanned":       3,
		"reconcileSent":          2,
		"reconcileFailed":        1,
		"reconcileQuotaExceeded": false,
		"reconcileSkipped":       false,
	}, Variables(result))
}

func TestHandler_ExecuteError(t *testing.T) {
	rec := new(MockReconciler)
	rec.On("Reconcile", mock.Anything).Return(nil, errors.NewExternalServiceError("reconcile lock", goerrors.New("redis down")))

	h, err := NewHandler(HandlerOptions{Reconciler: rec, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	_, err = h.Execute(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExternalServiceUnavailable, errors.FromError(err).Code)
}

func TestConfigFromApp(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFromApp(nil))

	app := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 5000},
	}}
	cfg := ConfigFromApp(app)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}
