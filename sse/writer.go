// Package sse writes a server-sent-event response stream to one client.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Writer streams events to a single HTTP response. Events are flushed as
// they are sent; nothing is buffered across events, so the write path
// respects the client socket's backpressure.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter wraps a response writer for event streaming. Returns an error if
// the underlying writer cannot flush, since unflushed SSE is useless.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported by response writer")
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// Prepare writes the event-stream headers and flushes them immediately so
// the client's HTTP layer does not sit buffering while waiting for a body.
// The write deadline is cleared: sessions outlive the server's WriteTimeout.
func (s *Writer) Prepare() {
	rc := http.NewResponseController(s.w)
	_ = rc.SetWriteDeadline(time.Time{})

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

// Send marshals v and writes it as one "data: <JSON>" event, flushing
// before returning.
func (s *Writer) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line, used for keep-alives.
func (s *Writer) Comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("write comment: %w", err)
	}
	s.flusher.Flush()
	return nil
}
