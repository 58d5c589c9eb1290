package finger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/thumbplan/fingerd/internal/logger"
	protocol "github.com/thumbplan/fingerd/internal/protocol/finger"
	"github.com/thumbplan/fingerd/pkg/planstore"
)

// errLineTooLong marks a request line exceeding MaxLineLength.
var errLineTooLong = errors.New("request line too long")

// connection handles exactly one finger session: read the request
// line, rate-check, parse, resolve, fetch, respond, close. Any failure
// at any stage skips straight to the response; the connection never
// loops back for a second request.
type connection struct {
	adapter *Adapter
	conn    net.Conn
}

func newConnection(adapter *Adapter, conn net.Conn) *connection {
	return &connection{adapter: adapter, conn: conn}
}

// serve runs the session. Panics are contained so one misbehaving
// session cannot take the server down.
func (c *connection) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in finger session from %s: %v",
				c.conn.RemoteAddr(), r)
		}
		_ = c.conn.Close()
	}()

	select {
	case <-ctx.Done():
		return
	default:
	}

	start := time.Now()

	line, err := c.readRequestLine()
	if err != nil {
		if errors.Is(err, errLineTooLong) {
			// Oversized line is a malformed request: answer with the
			// fixed invalid-request line, then close. The unread rest
			// of the line is drained first so closing with data in the
			// receive buffer cannot reset the connection under the
			// response.
			c.respond([]byte(msgInvalid))
			c.drain()
			c.adapter.metrics.RecordRequest("none", "malformed", time.Since(start))
			logger.Debug("Oversized request line from %s", c.conn.RemoteAddr())
			return
		}
		if err != io.EOF {
			logger.Debug("Error reading request from %s: %v", c.conn.RemoteAddr(), err)
		}
		return
	}

	response, kind, outcome := c.handle(line)
	c.respond(response)
	c.adapter.metrics.RecordRequest(kind, outcome, time.Since(start))

	logger.Debug("Finger request %q from %s: %s (%v)",
		line, c.conn.RemoteAddr(), outcome, time.Since(start))
}

// handle runs admission, parsing, resolution and formatting for one
// request line, returning the response body plus the metrics kind and
// outcome labels.
func (c *connection) handle(line string) (response []byte, kind, outcome string) {
	client := clientHost(c.conn.RemoteAddr())

	// Global throttle first: cheapest check, protects everything
	// downstream.
	if !c.adapter.global.Allow() {
		logger.Warn("Global rate limit exceeded (client %s)", client)
		return []byte(msgUnavailable), "none", "rate_limited"
	}

	// Per-client sliding window. The refusal is deliberately the same
	// generic line as an I/O failure, so probing clients cannot tell
	// quota from outage.
	if !c.adapter.clients.Admit(client) {
		c.adapter.metrics.RecordRateLimited()
		logger.Warn("Rate limit exceeded for client %s", client)
		return []byte(msgUnavailable), "none", "rate_limited"
	}

	req := protocol.Parse(line)
	if req.IsList() {
		return c.handleList(req.Long)
	}
	return c.handleFile(req)
}

// handleFile serves a single plan file.
func (c *connection) handleFile(req protocol.Request) (response []byte, kind, outcome string) {
	target, err := c.adapter.store.Resolve(req.Target)
	if err != nil {
		switch {
		case errors.Is(err, planstore.ErrInvalidPath):
			logger.Warn("Rejected path from %s: %v", c.conn.RemoteAddr(), err)
			return []byte(msgInvalid), "file", "invalid"
		case errors.Is(err, planstore.ErrNotFound):
			return []byte(msgNotFound(req.Target)), "file", "not_found"
		default:
			logger.Error("Resolve failed: %v", err)
			return []byte(msgUnavailable), "file", "unavailable"
		}
	}

	// A whitespace-only target resolves to the list target.
	if target.List {
		return c.handleList(req.Long)
	}

	content, modified, err := c.adapter.cache.GetOrLoad(target)
	if err != nil {
		logger.Error("Fetch failed for %s: %v", target.Rel, err)
		return []byte(msgUnavailable), "file", "unavailable"
	}

	if !req.Long {
		return content, "file", "ok"
	}

	// Header metadata comes from the same observation as the body; a
	// second stat here could describe a newer write than the bytes
	// being served.
	entry := planstore.Entry{
		Rel:      target.Rel,
		Size:     int64(len(content)),
		Modified: modified,
	}
	return formatFileLong(entry, content), "file", "ok"
}

// handleList serves the full listing. Listings always re-enumerate the
// tree; they are never cached.
func (c *connection) handleList(long bool) (response []byte, kind, outcome string) {
	entries, err := c.adapter.store.List()
	if err != nil {
		logger.Error("Listing failed: %v", err)
		return []byte(msgUnavailable), "list", "unavailable"
	}

	if !long {
		return formatListing(entries), "list", "ok"
	}
	return formatListingLong(entries, c.adapter.store.Root()), "list", "ok"
}

// respond writes the response with a single best-effort attempt. A
// failed or partial write ends the session; nothing is retried.
func (c *connection) respond(body []byte) {
	if c.adapter.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.adapter.config.WriteTimeout)); err != nil {
			logger.Debug("Failed to set write deadline for %s: %v", c.conn.RemoteAddr(), err)
		}
	}

	n, err := c.conn.Write(body)
	c.adapter.metrics.RecordBytesWritten(int64(n))
	if err != nil {
		logger.Debug("Error writing response to %s: %v", c.conn.RemoteAddr(), err)
	}
}

// drain discards a bounded amount of remaining client input. Best
// effort with a short deadline; errors just end the drain.
func (c *connection) drain() {
	if err := c.conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond)); err != nil {
		return
	}
	_, _ = io.CopyN(io.Discard, c.conn, 4096)
}

// readRequestLine reads until the line terminator or the configured
// length bound. A client that closes the connection without sending a
// terminator still gets its partial line served (classic finger
// clients vary in framing).
func (c *connection) readRequestLine() (string, error) {
	if c.adapter.config.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.adapter.config.ReadTimeout)); err != nil {
			return "", err
		}
	}

	max := c.adapter.config.MaxLineLength

	// Room for the line plus a CRLF terminator.
	buf := make([]byte, max+2)
	total := 0

	for {
		if total == len(buf) {
			return "", errLineTooLong
		}

		n, err := c.conn.Read(buf[total:])
		if n > 0 {
			if i := bytes.IndexByte(buf[total:total+n], '\n'); i >= 0 {
				return trimLine(buf[:total+i], max)
			}
			total += n
		}
		if err != nil {
			if err == io.EOF && total > 0 {
				return trimLine(buf[:total], max)
			}
			return "", err
		}
	}
}

// trimLine strips the CR left over from CRLF framing and enforces the
// length bound on what remains.
func trimLine(raw []byte, max int) (string, error) {
	line := strings.TrimSuffix(string(raw), "\r")
	if len(line) > max {
		return "", errLineTooLong
	}
	return line, nil
}

// clientHost extracts the host portion of a remote address, which keys
// the per-client rate limiter (every connection has a fresh source
// port; limiting must be per host).
func clientHost(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
