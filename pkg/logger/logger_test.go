package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := WithStream(WithRunID(context.Background(), "run-1"), "events")
	WithContext(ctx, base).Info("syncing")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "events", fields["stream"])
}

func TestWithContext_NilBase(t *testing.T) {
	assert.NotPanics(t, func() {
		WithContext(context.Background(), nil).Info("dropped")
	})
}

func TestNew_Console(t *testing.T) {
	l, err := New(Config{Level: "debug", Encoding: "console", Console: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}
