// ABOUTME: Incremental decoder turning a chunked text/event-stream body into Frames
// ABOUTME: Keeps one residual buffer across reads so output is independent of chunk boundaries

package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/tidwall/gjson"
)

const readChunkSize = 4096

// Decoder reads `data: <payload>` lines from an io.Reader and yields Frames
// on demand. It is single-pass: once Next returns io.EOF or an error the
// decoder is exhausted and a new one is needed for a new stream.
type Decoder struct {
	r        io.Reader
	chunk    []byte
	residual []byte

	eof     bool
	readErr error
	done    bool

	warnings []error
	logger   *slog.Logger
}

// NewDecoder creates a decoder over r. Pass nil logger for default.
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		r:      r,
		chunk:  make([]byte, readChunkSize),
		logger: logger.With("component", "sse"),
	}
}

// Next returns the next frame. It returns io.EOF when the stream is
// exhausted: after a terminal frame, or when the reader hits end of input.
// A read failure is returned wrapped; the decoder is exhausted afterwards.
func (d *Decoder) Next() (Frame, error) {
	for {
		if d.done {
			return Frame{}, io.EOF
		}

		// Drain complete lines before asking the reader for more
		if i := bytes.IndexByte(d.residual, '\n'); i >= 0 {
			line := d.residual[:i]
			d.residual = d.residual[i+1:]

			frame, ok := d.decodeLine(line)
			if !ok {
				continue
			}
			if frame.Terminal() {
				d.finish()
			}
			return frame, nil
		}

		if d.readErr != nil {
			d.finish()
			return Frame{}, fmt.Errorf("reading stream: %w", d.readErr)
		}
		if d.eof {
			if len(d.residual) > 0 {
				d.logger.Debug("discarding unterminated line at end of stream", "bytes", len(d.residual))
			}
			d.finish()
			return Frame{}, io.EOF
		}

		n, err := d.r.Read(d.chunk)
		d.residual = append(d.residual, d.chunk[:n]...)
		if errors.Is(err, io.EOF) {
			d.eof = true
		} else if err != nil {
			d.readErr = err
		}
	}
}

// Frames returns a single-use iterator over the remaining frames. Iteration
// stops at end of stream; a read failure is yielded once as the final pair.
func (d *Decoder) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for {
			frame, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(frame, err) || err != nil {
				return
			}
		}
	}
}

// Warnings returns the decode warnings recorded so far.
func (d *Decoder) Warnings() []error {
	return d.warnings
}

// finish marks the decoder exhausted and drops buffered input.
func (d *Decoder) finish() {
	d.done = true
	d.residual = nil
}

// decodeLine turns one complete line into a frame.
// ok is false for noise lines, malformed payloads and unknown frame types.
func (d *Decoder) decodeLine(line []byte) (Frame, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(DataPrefix)) {
		return Frame{}, false
	}

	payload := string(bytes.TrimSpace(line[len(DataPrefix):]))
	if payload == DoneSentinel {
		return Frame{Type: FrameComplete}, true
	}

	if !gjson.Valid(payload) {
		d.warn(fmt.Errorf("%w: payload is not valid JSON: %q", ErrDecodeWarning, truncate(payload, 80)))
		return Frame{}, false
	}
	parsed := gjson.Parse(payload)
	if !parsed.IsObject() {
		d.warn(fmt.Errorf("%w: payload is not an object: %q", ErrDecodeWarning, truncate(payload, 80)))
		return Frame{}, false
	}

	switch FrameType(parsed.Get("type").String()) {
	case FrameContent:
		content := parsed.Get("content")
		if content.Type != gjson.String || content.Str == "" {
			return Frame{}, false
		}
		return Frame{
			Type:      FrameContent,
			Content:   content.Str,
			Timestamp: parsed.Get("timestamp").String(),
		}, true

	case FrameError:
		reason := parsed.Get("error").String()
		if reason == "" {
			reason = DefaultErrorReason
		}
		return Frame{Type: FrameError, Reason: reason}, true

	case FrameComplete:
		return Frame{Type: FrameComplete}, true

	case FrameStart:
		return Frame{Type: FrameStart, Timestamp: parsed.Get("timestamp").String()}, true

	default:
		// Unknown types are dropped silently
		return Frame{}, false
	}
}

func (d *Decoder) warn(err error) {
	d.warnings = append(d.warnings, err)
	d.logger.Warn("skipping malformed frame", "error", err)
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
