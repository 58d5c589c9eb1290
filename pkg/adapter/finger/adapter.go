// Package finger implements the TCP front end of the plan-file server:
// the accept loop, the one-shot connection handler, and response
// formatting for the finger protocol (RFC 1288).
//
// The adapter owns no domain state of its own; it wires the shared plan
// store, content cache and rate limiters into each accepted connection.
// Both limiters and the cache are constructed once at server start and
// passed in, never reached through globals, so tests run against fresh
// instances.
package finger

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thumbplan/fingerd/internal/logger"
	"github.com/thumbplan/fingerd/internal/ratelimiter"
	"github.com/thumbplan/fingerd/pkg/metrics"
	"github.com/thumbplan/fingerd/pkg/planstore"
	"github.com/thumbplan/fingerd/pkg/planstore/cache"
)

// Adapter is the finger protocol server.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (in-flight sessions abort)
//  4. Wait for active connections up to ShutdownTimeout
//  5. Force-close whatever remains
//
// All methods are safe for concurrent use; shutdown is idempotent via
// sync.Once.
type Adapter struct {
	config Config

	listener net.Listener

	store   *planstore.Store
	cache   *cache.ContentCache
	clients *ratelimiter.ClientLimiter
	global  *ratelimiter.RateLimiter

	metrics metrics.FingerMetrics

	// activeConns tracks in-flight connections for graceful shutdown.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// connSemaphore bounds concurrent connections when MaxConnections
	// is set; nil means unlimited.
	connSemaphore chan struct{}

	// activeConnections maps remote address to net.Conn for forced
	// closure after the shutdown timeout.
	activeConnections sync.Map

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// boundPort is the actual listen port, which differs from
	// config.Port when the config asked for an ephemeral port.
	boundPort atomic.Int32
}

// New creates an Adapter over the given store and collaborators.
//
// cache, clients and global may not be nil; fingerMetrics may be nil
// for no-op metrics. Zero config values are defaulted; an invalid
// config panics (programmer error).
func New(
	config Config,
	store *planstore.Store,
	contentCache *cache.ContentCache,
	clients *ratelimiter.ClientLimiter,
	global *ratelimiter.RateLimiter,
	fingerMetrics metrics.FingerMetrics,
) *Adapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid finger config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Finger connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("Finger connection limit: unlimited")
	}

	if fingerMetrics == nil {
		fingerMetrics = noopFingerMetrics{}
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &Adapter{
		config:         config,
		store:          store,
		cache:          contentCache,
		clients:        clients,
		global:         global,
		metrics:        fingerMetrics,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// noopFingerMetrics is the local no-op used when no collector is wired.
type noopFingerMetrics struct{}

func (noopFingerMetrics) RecordRequest(kind, outcome string, duration time.Duration) {}
func (noopFingerMetrics) RecordBytesWritten(bytes int64)                             {}
func (noopFingerMetrics) SetActiveConnections(count int32)                           {}
func (noopFingerMetrics) RecordConnectionAccepted()                                  {}
func (noopFingerMetrics) RecordConnectionClosed()                                    {}
func (noopFingerMetrics) RecordRateLimited()                                         {}

// Serve starts the listener and blocks until the context is cancelled
// or an unrecoverable error occurs. Each accepted connection is served
// by its own goroutine; finger sessions are one-shot, so a connection
// lives for exactly one request/response exchange.
func (a *Adapter) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create finger listener on %s: %w", addr, err)
	}

	a.listener = listener
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		a.boundPort.Store(int32(tcpAddr.Port))
	}

	// Stop may have run before the listener existed; initiateShutdown
	// then had nothing to close, so close it here instead of entering
	// the accept loop.
	select {
	case <-a.shutdown:
		listener.Close()
		return a.gracefulShutdown()
	default:
	}

	logger.Info("Finger server listening on %s", listener.Addr())
	logger.Debug("Finger config: max_connections=%d max_line_length=%d read_timeout=%v write_timeout=%v",
		a.config.MaxConnections, a.config.MaxLineLength, a.config.ReadTimeout, a.config.WriteTimeout)

	go func() {
		<-ctx.Done()
		logger.Info("Finger shutdown signal received: %v", ctx.Err())
		a.initiateShutdown()
	}()

	for {
		// Bound concurrency before accepting: at MaxConnections the
		// accept stalls until a session finishes.
		if a.connSemaphore != nil {
			select {
			case a.connSemaphore <- struct{}{}:
			case <-a.shutdown:
				return a.gracefulShutdown()
			}
		}

		tcpConn, err := a.listener.Accept()
		if err != nil {
			if a.connSemaphore != nil {
				<-a.connSemaphore
			}

			select {
			case <-a.shutdown:
				return a.gracefulShutdown()
			default:
				logger.Debug("Error accepting finger connection: %v", err)
				continue
			}
		}

		a.activeConns.Add(1)
		a.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		a.activeConnections.Store(connAddr, tcpConn)

		a.metrics.RecordConnectionAccepted()
		a.metrics.SetActiveConnections(a.connCount.Load())

		logger.Debug("Finger connection accepted from %s (active: %d)",
			connAddr, a.connCount.Load())

		conn := newConnection(a, tcpConn)
		go func(addr string) {
			defer func() {
				a.activeConnections.Delete(addr)
				a.activeConns.Done()
				a.connCount.Add(-1)
				if a.connSemaphore != nil {
					<-a.connSemaphore
				}

				a.metrics.RecordConnectionClosed()
				a.metrics.SetActiveConnections(a.connCount.Load())
			}()

			conn.serve(a.shutdownCtx)
		}(connAddr)
	}
}

// initiateShutdown begins graceful shutdown: stop accepting, cancel
// in-flight sessions. Safe to call multiple times.
func (a *Adapter) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		logger.Debug("Finger shutdown initiated")

		close(a.shutdown)

		if a.listener != nil {
			if err := a.listener.Close(); err != nil {
				logger.Debug("Error closing finger listener: %v", err)
			}
		}

		a.cancelRequests()
	})
}

// gracefulShutdown waits for active connections up to ShutdownTimeout,
// then force-closes the rest.
func (a *Adapter) gracefulShutdown() error {
	activeCount := a.connCount.Load()
	logger.Info("Finger graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, a.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		a.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Finger graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(a.config.ShutdownTimeout):
		remaining := a.connCount.Load()
		logger.Warn("Finger shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, a.config.ShutdownTimeout)

		a.forceCloseConnections()
		return fmt.Errorf("finger shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes every tracked TCP connection, failing
// any in-flight reads and writes so their handlers exit.
func (a *Adapter) forceCloseConnections() {
	closed := 0
	a.activeConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %v: %v", key, err)
		} else {
			closed++
		}
		return true
	})

	if closed > 0 {
		logger.Info("Force-closed %d finger connection(s)", closed)
	}
}

// Stop initiates graceful shutdown and waits for connections to finish
// or ctx to expire. Safe to call multiple times and concurrently with
// Serve.
func (a *Adapter) Stop(ctx context.Context) error {
	a.initiateShutdown()

	if ctx == nil {
		return a.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		a.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.forceCloseConnections()
		return ctx.Err()
	}
}

// Port returns the actual listen port once Serve has bound the
// listener, or the configured port before that. Lets tests run on an
// ephemeral port.
func (a *Adapter) Port() int {
	if p := a.boundPort.Load(); p != 0 {
		return int(p)
	}
	return a.config.Port
}

// Protocol returns "finger", for logging.
func (a *Adapter) Protocol() string {
	return "finger"
}

// ActiveConnections returns the number of in-flight connections.
func (a *Adapter) ActiveConnections() int32 {
	return a.connCount.Load()
}
