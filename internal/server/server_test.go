package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(handler http.Handler) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(handler, Config{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 2 * time.Second,
	}, logger)
}

type orderLog struct {
	mu    sync.Mutex
	calls []string
}

func (o *orderLog) add(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, name)
}

func (o *orderLog) get() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func TestServer_ServesUntilCancelled(t *testing.T) {
	srv := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(srv.Addr(), ":0")
	}, 2*time.Second, 10*time.Millisecond)

	addr := srv.Addr()
	if strings.HasPrefix(addr, "[::]") {
		addr = "127.0.0.1" + strings.TrimPrefix(addr, "[::]")
	}
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestServer_ShutdownOrder(t *testing.T) {
	srv := newTestServer(http.NotFoundHandler())
	order := &orderLog{}

	workerStopped := make(chan struct{})
	srv.Go("worker", func(ctx context.Context) error {
		<-ctx.Done()
		order.add("worker exited")
		close(workerStopped)
		return ctx.Err()
	})
	srv.OnShutdown("first", func(ctx context.Context) error {
		order.add("first")
		return nil
	})
	srv.OnShutdown("second", func(ctx context.Context) error {
		order.add("second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(srv.Addr(), ":0")
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	<-workerStopped
	assert.Equal(t, []string{"second", "first", "worker exited"}, order.get())
}

func TestServer_ComponentFailureStopsServer(t *testing.T) {
	srv := newTestServer(http.NotFoundHandler())
	order := &orderLog{}

	srv.Go("broken", func(ctx context.Context) error {
		return errors.New("boom")
	})
	srv.OnShutdown("cleanup", func(ctx context.Context) error {
		order.add("cleanup")
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken: boom")
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after component failure")
	}
	assert.Equal(t, []string{"cleanup"}, order.get())
}

func TestServer_ShutdownErrorsAreJoined(t *testing.T) {
	srv := newTestServer(http.NotFoundHandler())
	srv.OnShutdown("a", func(ctx context.Context) error { return errors.New("a failed") })
	srv.OnShutdown("b", func(ctx context.Context) error { return errors.New("b failed") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: a failed")
	assert.Contains(t, err.Error(), "b: b failed")
}
