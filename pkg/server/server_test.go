package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAdapter is a minimal adapter.Adapter for lifecycle testing.
type fakeAdapter struct {
	protocol string
	port     int
	serveErr error
	stopped  atomic.Bool
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	if f.serveErr != nil {
		return f.serveErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.stopped.Store(true)
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Port() int        { return f.port }

func TestAddAdapter_DuplicateProtocol(t *testing.T) {
	srv := New()

	if err := srv.AddAdapter(&fakeAdapter{protocol: "finger", port: 79}); err != nil {
		t.Fatalf("Failed to add adapter: %v", err)
	}
	if err := srv.AddAdapter(&fakeAdapter{protocol: "finger", port: 7979}); err == nil {
		t.Error("Expected error for duplicate protocol, got nil")
	}
}

func TestAddAdapter_PortConflict(t *testing.T) {
	srv := New()

	if err := srv.AddAdapter(&fakeAdapter{protocol: "finger", port: 79}); err != nil {
		t.Fatalf("Failed to add adapter: %v", err)
	}
	if err := srv.AddAdapter(&fakeAdapter{protocol: "gopher", port: 79}); err == nil {
		t.Error("Expected error for port conflict, got nil")
	}
}

func TestServe_NoAdapters(t *testing.T) {
	srv := New()

	if err := srv.Serve(context.Background()); err == nil {
		t.Error("Expected error with no adapters registered, got nil")
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv := New()
	fake := &fakeAdapter{protocol: "finger", port: 79}
	if err := srv.AddAdapter(fake); err != nil {
		t.Fatalf("Failed to add adapter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-serverDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if !fake.stopped.Load() {
		t.Error("Expected Stop() to be called on the adapter")
	}
}

func TestServe_AdapterFailure(t *testing.T) {
	srv := New()
	failing := &fakeAdapter{protocol: "finger", port: 79, serveErr: errors.New("bind failed")}
	if err := srv.AddAdapter(failing); err != nil {
		t.Fatalf("Failed to add adapter: %v", err)
	}

	err := srv.Serve(context.Background())
	if err == nil {
		t.Fatal("Expected error from failing adapter, got nil")
	}
	if !errors.Is(err, failing.serveErr) {
		t.Errorf("Expected wrapped adapter error, got %v", err)
	}
}
