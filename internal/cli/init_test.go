package cli

import (
	"bytes"
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/config"
)

func TestSetupLoggerToHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLoggerTo(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestOpenBackendMemory(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLoggerTo(&buf, "info")
	cfg := &config.Config{DataBackend: config.BackendMemory, DataDir: t.TempDir(), SeedDemoData: true}

	res := OpenBackend(context.Background(), logger, cfg)
	require.NotNil(t, res)
	defer res.Cleanup()

	assert.Equal(t, 3, res.Ledger.Len())
	assert.Contains(t, buf.String(), "Backend ready")
}

func TestGracefulShutdownRunsCleanupOnSignal(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLoggerTo(&buf, "info")
	var cleaned atomic.Bool

	ctx, done := GracefulShutdown(logger, time.Second, func() { cleaned.Store(true) })
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	WaitForShutdown(ctx, done)
	assert.True(t, cleaned.Load())
	assert.Contains(t, buf.String(), "Shutdown complete")
}
