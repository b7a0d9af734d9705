package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWithSignals_ExitCodes(t *testing.T) {
	r := New(zap.NewNop())

	if code := r.WithSignals(func(context.Context) error { return nil }); code != 0 {
		t.Fatalf("expected 0 for nil error, got %d", code)
	}
	if code := r.WithSignals(func(context.Context) error { return http.ErrServerClosed }); code != 0 {
		t.Fatalf("expected 0 for closed server, got %d", code)
	}
	if code := r.WithSignals(func(context.Context) error { return errors.New("boom") }); code != 1 {
		t.Fatalf("expected 1 for failure, got %d", code)
	}
}

func TestWithSignals_WaitsForShutdown(t *testing.T) {
	r := New(zap.NewNop())
	drained := false
	code := r.WithSignals(func(ctx context.Context) error {
		if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
			return err
		}
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		drained = true
		return http.ErrServerClosed
	})
	if code != 0 {
		t.Fatalf("expected 0 after a clean shutdown, got %d", code)
	}
	if !drained {
		t.Fatal("expected WithSignals to wait for start to return")
	}
}

func TestWithSignals_ShutdownTimeout(t *testing.T) {
	prev := drainTimeout
	drainTimeout = 50 * time.Millisecond
	t.Cleanup(func() { drainTimeout = prev })

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	r := New(zap.NewNop())
	code := r.WithSignals(func(ctx context.Context) error {
		if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
			return err
		}
		<-release
		return nil
	})
	if code != 1 {
		t.Fatalf("expected 1 when shutdown hangs, got %d", code)
	}
}

func TestGraceful_PassesDeadline(t *testing.T) {
	r := New(zap.NewNop())
	called := false
	r.Graceful("test", func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("expected a deadline on the shutdown context")
		}
		return nil
	})
	if !called {
		t.Fatal("expected shutdown to be called")
	}
}
