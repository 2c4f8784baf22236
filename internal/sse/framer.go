// Package sse frames a stream of events as Server-Sent Events over an
// http.ResponseWriter: one JSON-encoded data line per event, flushed
// immediately, with a wall-clock timeout and a guarantee that exactly one
// terminal event reaches the client even if the producer stops short.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/streamforge/chatcore/pkg/streamevent"
)

// DefaultTimeout is the wall-clock budget for an entire stream, from the
// first byte written to the terminal event, absent server.stream_timeout
// configuration.
const DefaultTimeout = 300 * time.Second

// Framer writes a sequence of streamevent.Events to an http.ResponseWriter
// as Server-Sent Events.
type Framer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger
	timeout time.Duration
}

// NewFramer prepares w for SSE: sets framing headers, echoes requestID if
// non-empty, and returns an error if w doesn't support flushing (required
// for incremental delivery).
func NewFramer(w http.ResponseWriter, requestID string, timeout time.Duration, logger *slog.Logger) (*Framer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if requestID != "" {
		h.Set("X-Request-ID", requestID)
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Framer{w: w, flusher: flusher, logger: logger, timeout: timeout}, nil
}

// Run consumes events from in and writes each as a "data: <json>\n\n" line,
// flushing after every event. It stops at the first terminal event (finish
// or error), at the producer closing the channel, at the client
// disconnecting, or at the wall-clock timeout. On a closed channel or a
// timeout it writes a synthesized error event as the terminator; on a
// disconnect or cancelled context it writes nothing more.
func (f *Framer) Run(ctx context.Context, in <-chan streamevent.Event) {
	deadline := time.NewTimer(f.timeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				// Producer closed without a terminal event: the channel
				// contract promises one, but a misbehaving producer (e.g.
				// a panic recovered upstream) must not hang the client.
				f.writeEvent(streamevent.ErrorEvent("stream ended without terminator"))
				return
			}
			f.writeEvent(ev)
			if ev.IsTerminal() {
				return
			}

		case <-ctx.Done():
			// Client disconnected or request context was cancelled. No
			// further writes are attempted — the connection is already
			// gone from the client's side.
			if f.logger != nil {
				f.logger.Debug("sse stream context cancelled", "error", ctx.Err())
			}
			return

		case <-deadline.C:
			f.writeEvent(streamevent.ErrorEvent("stream exceeded timeout"))
			return
		}
	}
}

func (f *Framer) writeEvent(ev streamevent.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		if f.logger != nil {
			f.logger.Error("sse event marshal failed", "error", err)
		}
		return
	}
	if _, err := fmt.Fprintf(f.w, "data: %s\n\n", data); err != nil {
		if f.logger != nil {
			f.logger.Debug("sse write failed", "error", err)
		}
		return
	}
	f.flusher.Flush()
}
