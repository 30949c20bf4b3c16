package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Writer emits SSE events to a client. Every event is flushed immediately
// when the underlying writer supports it (bufio.Writer, http.Flusher).
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w for SSE output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Data writes a single event with the given payload. Multi-line payloads are
// split across several "data:" fields so readers join them back with "\n".
func (w *Writer) Data(data string) error {
	var b strings.Builder
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	return w.write(b.String())
}

// JSON marshals v and writes it as a single event.
func (w *Writer) JSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding sse event: %w", err)
	}
	return w.Data(string(payload))
}

// Done writes the terminal sentinel event.
func (w *Writer) Done() error {
	return w.Data(Done)
}

// Comment writes an SSE comment line, used as a keep-alive.
func (w *Writer) Comment(text string) error {
	return w.write(": " + text + "\n\n")
}

func (w *Writer) write(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := io.WriteString(w.w, s); err != nil {
		return err
	}

	switch f := w.w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}
