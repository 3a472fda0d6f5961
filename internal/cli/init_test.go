package cli

import (
	"context"
	"syscall"
	"testing"
	"time"

	applog "fintrack/internal/log"
)

func TestGracefulShutdown(t *testing.T) {
	logger := applog.New(applog.DefaultConfig())

	cleanupCtx := make(chan context.Context, 1)
	ctx, done := GracefulShutdown(logger, 5*time.Second, func(shutdownCtx context.Context) {
		cleanupCtx <- shutdownCtx
	})

	select {
	case <-ctx.Done():
		t.Fatalf("context cancelled before any signal")
	default:
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("send signal: %v", err)
	}

	waited := make(chan struct{})
	go func() {
		WaitForShutdown(ctx, done)
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not complete")
	}

	select {
	case got := <-cleanupCtx:
		if _, ok := got.Deadline(); !ok {
			t.Fatalf("cleanup context must carry the shutdown timeout")
		}
	default:
		t.Fatalf("cleanup was not invoked")
	}
}
