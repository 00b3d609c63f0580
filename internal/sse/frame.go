// ABOUTME: Frame types produced by the stream decoder
// ABOUTME: A frame is one decoded protocol event: start, content, complete or error

package sse

import "errors"

// FrameType discriminates decoded frames
type FrameType string

// Frame types
const (
	FrameStart    FrameType = "start"
	FrameContent  FrameType = "content"
	FrameComplete FrameType = "complete"
	FrameError    FrameType = "error"
)

// Protocol constants
const (
	// DataPrefix marks a candidate frame line.
	DataPrefix = "data: "
	// DoneSentinel is the payload that terminates a stream normally.
	DoneSentinel = "[DONE]"
	// DefaultErrorReason is used when an error frame carries no reason.
	DefaultErrorReason = "unknown error"
)

// ErrDecodeWarning marks a single frame line that could not be decoded.
// Warnings are recorded and logged; they never end the stream.
var ErrDecodeWarning = errors.New("decode warning")

// Frame is a single decoded protocol event
type Frame struct {
	Type FrameType

	// Content is the text fragment of a content frame.
	Content string

	// Reason is the server-supplied cause of an error frame.
	Reason string

	// Timestamp is copied from the payload when the server sent one.
	Timestamp string
}

// Terminal reports whether no further frames follow this one.
func (f Frame) Terminal() bool {
	return f.Type == FrameComplete || f.Type == FrameError
}
