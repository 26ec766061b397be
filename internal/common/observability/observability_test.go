package observability

import (
	"context"
	"testing"
	"time"

	"birdwatch-support/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.AppConfig{Name: "test"}, config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestNoopObservability(t *testing.T) {
	o := NewNoop()
	assert.NotPanics(t, func() {
		o.RecordStep(context.Background(), "webhook", "failed")
		o.RecordJobProcessed(context.Background(), "completed")
		o.RecordJobDuration(context.Background(), time.Second, "completed")
		o.Shutdown()
	})

	var nilObs *Observability
	assert.NotPanics(t, func() { nilObs.RecordStep(context.Background(), "persist", "ok") })
}
