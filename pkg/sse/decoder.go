// Package sse decodes and writes the server-sent event frames exchanged between
// the chat widget and the relay server.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
)

const (
	// DataPrefix starts every payload line.
	DataPrefix = "data: "
	// DoneSentinel ends a streamed response.
	DoneSentinel = "[DONE]"

	readChunkSize = 4096
)

// chunkFrame is the subset of a chat.completion.chunk the widget cares about.
type chunkFrame struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder turns raw event-stream bytes into text deltas. It tolerates arbitrary
// chunk boundaries, including splits inside a UTF-8 sequence or a JSON object.
// A Decoder is single-use and not safe for concurrent use.
type Decoder struct {
	buf  []byte
	held string // single-slot lookahead for a line that failed to parse
	done bool
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *Decoder) Done() bool {
	return d.done
}

// Feed appends chunk to the buffer and returns the deltas of every complete
// line it can parse. A trailing partial line stays buffered for the next call.
func (d *Decoder) Feed(chunk []byte) []string {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var out []string
	for !d.done {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]

		delta, ok := d.processLine(line)
		if !ok {
			// Rolled back: wait for more bytes before parsing anything else.
			break
		}
		if delta != "" {
			out = append(out, delta)
		}
	}
	return out
}

// Flush processes whatever is left once the underlying stream has ended,
// including a final line that was never terminated by a newline.
func (d *Decoder) Flush() []string {
	if d.done {
		return nil
	}
	var out []string
	rest := d.buf
	d.buf = nil
	for _, raw := range strings.Split(string(rest), "\n") {
		if d.done {
			break
		}
		delta, ok := d.processLine(raw)
		if ok && delta != "" {
			out = append(out, delta)
		}
	}
	// A frame still held at end of stream never completed.
	d.held = ""
	return out
}

// processLine handles one complete line. It returns ok=false when the line
// was held back because its payload is not (yet) valid JSON.
func (d *Decoder) processLine(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")

	if d.held != "" {
		if line == "" || strings.HasPrefix(line, DataPrefix) || strings.HasPrefix(line, ":") {
			// The held frame never completed; drop it and treat this line on its own.
			d.held = ""
		} else {
			line = d.held + "\n" + line
			d.held = ""
		}
	}

	if line == "" || strings.HasPrefix(line, ":") {
		return "", true
	}
	if !strings.HasPrefix(line, DataPrefix) {
		return "", true
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, DataPrefix))
	if payload == DoneSentinel {
		d.done = true
		d.buf = nil
		return "", true
	}

	var frame chunkFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		d.held = line
		return "", false
	}

	if len(frame.Choices) == 0 || frame.Choices[0].Delta.Content == nil {
		return "", true
	}
	return *frame.Choices[0].Delta.Content, true
}

// Deltas reads r to completion (or until [DONE]) and yields each non-empty
// text delta. The sequence is lazy and one-shot. It stops with ctx.Err() when
// ctx is cancelled and with the read error when r fails. The caller owns r and
// is responsible for closing it.
func Deltas(ctx context.Context, r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		dec := NewDecoder()
		chunk := make([]byte, readChunkSize)

		emit := func(deltas []string) bool {
			for _, delta := range deltas {
				if err := ctx.Err(); err != nil {
					yield("", err)
					return false
				}
				if !yield(delta, nil) {
					return false
				}
			}
			return true
		}

		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			n, err := r.Read(chunk)
			if n > 0 {
				if !emit(dec.Feed(chunk[:n])) {
					return
				}
				if dec.Done() {
					return
				}
			}

			if errors.Is(err, io.EOF) {
				emit(dec.Flush())
				return
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				yield("", err)
				return
			}
		}
	}
}
