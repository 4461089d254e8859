package runtime

import (
	"context"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalContextCancelsOnSIGTERM(t *testing.T) {
	ctx, stop := SignalContext(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGTERM")
	}
	assert.ErrorContains(t, context.Cause(ctx), "terminated")
}

func TestSignalContextStop(t *testing.T) {
	ctx, stop := SignalContext(slog.New(slog.NewTextHandler(io.Discard, nil)))
	stop()
	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}
