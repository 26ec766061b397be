package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"caseNumber": "BW-20261018-ABCDEFGHJK"})

	log.Warn("acknowledgment email failed", map[string]interface{}{
		"error":   errors.New("gateway returned 500"),
		"attempt": 1,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "BW-20261018-ABCDEFGHJK", fields["caseNumber"])
	assert.Equal(t, "gateway returned 500", fields["error"])
	assert.EqualValues(t, 1, fields["attempt"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestNew_LevelSelection(t *testing.T) {
	l := New("error", "json")
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))

	l = New("unknown", "console")
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.WithError(errors.New("x")).Info("ignored", nil)
	})
}

func TestZapAdapter_MasksAddresses(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core))

	log.Info("Email sent", map[string]interface{}{
		"to":      "jane@birdwatch.app",
		"subject": "Your report",
	})

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "j***@birdwatch.app", fields["to"])
	assert.Equal(t, "Your report", fields["subject"])
}

func TestMaskAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"jane@birdwatch.app", "j***@birdwatch.app"},
		{"a@b", "a***@b"},
		{"@nolocal", "***"},
		{"not-an-address", "***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskAddress(tt.in), tt.in)
	}
}

func TestNew_ParsesMixedCaseLevel(t *testing.T) {
	l := New("WARN", "json")
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
