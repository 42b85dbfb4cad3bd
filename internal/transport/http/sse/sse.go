package sse

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrStreamUnsupported is returned by NewWriter when the underlying
// ResponseWriter cannot flush.
var ErrStreamUnsupported = errors.New("streaming unsupported by response writer")

// Writer frames server-sent events over an HTTP response. Once the
// headers are committed, every outcome on the connection is an event;
// a Writer emits at most one terminal event (done or error) and drops
// anything sent after it.
type Writer struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	finished bool
}

// NewWriter commits SSE headers on w and returns a Writer over it.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// Chunk emits one content fragment. Embedded newlines become multiple
// data lines of the same event so the payload round-trips intact.
func (s *Writer) Chunk(text string) error {
	if s.finished {
		return nil
	}
	var b strings.Builder
	b.WriteString("event: chunk\n")
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return s.emit(b.String())
}

// Done emits the terminal completion event with a JSON payload.
func (s *Writer) Done(payload any) error {
	if s.finished {
		return nil
	}
	s.finished = true
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.emit("event: done\ndata: " + string(data) + "\n\n")
}

// Error emits the terminal error event carrying a detail message.
func (s *Writer) Error(detail string) error {
	if s.finished {
		return nil
	}
	s.finished = true
	data, err := json.Marshal(map[string]string{"detail": detail})
	if err != nil {
		return err
	}
	return s.emit("event: error\ndata: " + string(data) + "\n\n")
}

func (s *Writer) emit(frame string) error {
	if _, err := s.w.Write([]byte(frame)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
