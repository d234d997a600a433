package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Writer emits event-stream frames to an HTTP response, flushing after each one.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter sets the event-stream headers on w and returns a Writer for it.
// It fails when the response cannot be flushed incrementally.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteData marshals v and sends it as a single data frame.
func (s *Writer) WriteData(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	return s.writeRaw(DataPrefix + string(payload) + "\n\n")
}

// WriteDelta sends a minimal chunk frame carrying one text fragment.
func (s *Writer) WriteDelta(content string) error {
	frame := map[string]interface{}{
		"object": "chat.completion.chunk",
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]string{"content": content}},
		},
	}
	return s.WriteData(frame)
}

// WriteDone sends the end-of-stream sentinel.
func (s *Writer) WriteDone() error {
	return s.writeRaw(DataPrefix + DoneSentinel + "\n\n")
}

// WriteComment sends a comment frame, used as a keepalive.
func (s *Writer) WriteComment(text string) error {
	return s.writeRaw(": " + text + "\n\n")
}

func (s *Writer) writeRaw(frame string) error {
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
