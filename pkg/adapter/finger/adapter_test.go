package finger

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thumbplan/fingerd/internal/ratelimiter"
	"github.com/thumbplan/fingerd/pkg/planstore"
	"github.com/thumbplan/fingerd/pkg/planstore/cache"
)

const (
	alphaContent = "Alpha: distributed build cache\nStatus: in progress\n"
	oldContent   = "Old notes from a finished project.\n"
)

// newTestTree creates a plan tree with two year directories plus some
// noise the server must ignore.
func newTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "2024"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2025"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "drafts"), 0o755))

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "2024", "old.project"), []byte(oldContent), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "2025", "alpha.plan"), []byte(alphaContent), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "drafts", "ignored.txt"), []byte("draft"), 0o644))

	return root
}

// startAdapter boots a full adapter on an ephemeral port and returns
// its dial address. Shutdown is wired into t.Cleanup.
func startAdapter(t *testing.T, config Config, clientLimit int) string {
	t.Helper()

	root := newTestTree(t)
	store, err := planstore.New(root)
	require.NoError(t, err)

	contentCache := cache.New(cache.Config{
		Enabled:    true,
		TTL:        time.Minute,
		MaxEntries: 16,
	}, nil)

	clients := ratelimiter.NewClientLimiter(clientLimit, time.Minute)
	global := ratelimiter.New(0, 0) // unlimited

	adapter := New(config, store, contentCache, clients, global, nil)

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- adapter.Serve(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for adapter.Port() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.NotZero(t, adapter.Port(), "listener did not start")

	t.Cleanup(func() {
		cancel()
		select {
		case <-serverDone:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return fmt.Sprintf("127.0.0.1:%d", adapter.Port())
}

// fingerRequest performs one full finger exchange: dial, send the
// line, read to EOF.
func fingerRequest(t *testing.T, addr, line string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(line))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	body, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(body)
}

func TestServeFile(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 0)

	got := fingerRequest(t, addr, "2025/alpha.plan\r\n")
	assert.Equal(t, alphaContent, got)
}

func TestServeFileLong(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 0)

	got := fingerRequest(t, addr, "-l 2025/alpha.plan\r\n")

	assert.True(t, strings.HasPrefix(got, "Project:  alpha\n"), "got %q", got)
	assert.Contains(t, got, "Location: 2025/alpha.plan\n")
	assert.Contains(t, got, fmt.Sprintf("Size:     %d bytes\n", len(alphaContent)))
	assert.True(t, strings.HasSuffix(got, "\n\n"+alphaContent), "got %q", got)
}

func TestListing(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 0)

	got := fingerRequest(t, addr, "\r\n")
	assert.Equal(t, "2024/old.project\n2025/alpha.plan\n", got)
}

func TestListingVerbose(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 0)

	got := fingerRequest(t, addr, "/W\r\n")

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "2024/old.project")
	assert.Contains(t, lines[1], "2025/alpha.plan")
	assert.Contains(t, lines[1], "bytes")
	assert.Contains(t, lines[1], "Alpha: distributed build cache")
}

func TestNotFound(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 0)

	got := fingerRequest(t, addr, "2025/missing.plan\r\n")
	assert.Equal(t, "Project 2025/missing.plan not found\n", got)
}

func TestInvalidPath(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 0)

	for _, identifier := range []string{
		"../etc/passwd",
		"/etc/passwd",
		"2025/../2024/old.project",
	} {
		got := fingerRequest(t, addr, identifier+"\r\n")
		assert.Equal(t, msgInvalid, got, "identifier %q", identifier)
	}
}

func TestHostSuffixStripped(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 0)

	got := fingerRequest(t, addr, "2025/alpha.plan@hub.example.org\r\n")
	assert.Equal(t, alphaContent, got)
}

func TestBareNewlineFraming(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 0)

	got := fingerRequest(t, addr, "2025/alpha.plan\n")
	assert.Equal(t, alphaContent, got)
}

func TestOversizedLine(t *testing.T) {
	addr := startAdapter(t, Config{
		Port:            0,
		MaxLineLength:   64,
		ShutdownTimeout: time.Second,
	}, 0)

	got := fingerRequest(t, addr, strings.Repeat("a", 200)+"\r\n")
	assert.Equal(t, msgInvalid, got)
}

func TestClientRateLimit(t *testing.T) {
	addr := startAdapter(t, Config{Port: 0, ShutdownTimeout: time.Second}, 3)

	for i := 0; i < 3; i++ {
		got := fingerRequest(t, addr, "2025/alpha.plan\r\n")
		require.Equal(t, alphaContent, got, "request %d should be admitted", i+1)
	}

	got := fingerRequest(t, addr, "2025/alpha.plan\r\n")
	assert.Equal(t, msgUnavailable, got, "request over quota should get the generic refusal")
}

func TestGracefulShutdown(t *testing.T) {
	root := newTestTree(t)
	store, err := planstore.New(root)
	require.NoError(t, err)

	adapter := New(Config{
		Port:            0,
		ShutdownTimeout: 2 * time.Second,
	}, store, cache.New(cache.DefaultConfig(), nil),
		ratelimiter.NewClientLimiter(0, time.Minute),
		ratelimiter.New(0, 0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- adapter.Serve(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for adapter.Port() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.NotZero(t, adapter.Port())

	// Hold a connection open without sending anything so shutdown has
	// something to wait on, then force-close.
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", adapter.Port()))
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, adapter.ActiveConnections())

	shutdownStart := time.Now()
	cancel()

	select {
	case <-serverDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.Less(t, time.Since(shutdownStart), 4*time.Second)
	assert.Eventually(t, func() bool {
		return adapter.ActiveConnections() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStopBeforeServe(t *testing.T) {
	root := newTestTree(t)
	store, err := planstore.New(root)
	require.NoError(t, err)

	contentCache := cache.New(cache.DefaultConfig(), nil)
	clients := ratelimiter.NewClientLimiter(0, time.Minute)
	global := ratelimiter.New(0, 0)

	// Unlimited connections: the accept loop has no semaphore wait, so
	// a missed shutdown would leave Serve blocked in Accept forever.
	adapter := New(Config{Port: 0, ShutdownTimeout: time.Second},
		store, contentCache, clients, global, nil)

	require.NoError(t, adapter.Stop(context.Background()))

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- adapter.Serve(context.Background())
	}()

	select {
	case err := <-serverDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept running after a prior Stop")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{Port: -1}
	assert.Error(t, cfg.validate())

	cfg = Config{}
	cfg.applyDefaults()
	assert.NoError(t, cfg.validate())
	assert.Equal(t, 256, cfg.MaxLineLength)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
}
