// Package eventstream incrementally decodes a server-sent-event byte stream
// into discrete frames. Input arrives in arbitrary pieces from network reads,
// so a record separator may straddle two reads; the decoder buffers the
// unterminated tail between feeds and produces identical frames regardless of
// how the bytes were split.
package eventstream

import "strings"

// doneSentinel marks end of stream in the provider protocol. It signals
// completion, not content, and is never surfaced as a frame.
const doneSentinel = "[DONE]"

// Frame is one decoded event record.
type Frame struct {
	// Event is the event type (from "event:" lines). Empty for data-only frames.
	Event string
	// Data is the payload (from "data:" lines). Multi-line data is joined
	// with newlines.
	Data string
}

// Decoder accumulates stream bytes and emits complete frames.
type Decoder struct {
	remainder string
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends p to the buffered remainder and returns every frame completed
// by it. Frames with no data payload (heartbeats, comments) and the
// end-of-stream sentinel are dropped.
func (d *Decoder) Feed(p []byte) []Frame {
	// Normalizing after the append handles a "\r\n" pair split across two
	// feeds; re-normalizing the remainder is idempotent.
	buf := strings.ReplaceAll(d.remainder+string(p), "\r\n", "\n")

	segments := strings.Split(buf, "\n\n")
	d.remainder = segments[len(segments)-1]

	var frames []Frame
	for _, seg := range segments[:len(segments)-1] {
		if frame, ok := parseSegment(seg); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Remainder returns the buffered unterminated tail. Useful for diagnostics
// when a stream ends mid-frame.
func (d *Decoder) Remainder() string {
	return d.remainder
}

// parseSegment parses one complete record. ok is false for records that
// carry no data payload or carry the end-of-stream sentinel.
func parseSegment(seg string) (Frame, bool) {
	var frame Frame
	var data []string

	for _, line := range strings.Split(seg, "\n") {
		switch {
		case strings.HasPrefix(line, ":"):
			// Comment line, used for keep-alives.
		case strings.HasPrefix(line, "event:"):
			frame.Event = trimFieldValue(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = append(data, trimFieldValue(line[len("data:"):]))
		}
	}

	if len(data) == 0 {
		return Frame{}, false
	}
	frame.Data = strings.Join(data, "\n")
	if frame.Data == doneSentinel {
		return Frame{}, false
	}
	return frame, true
}

// trimFieldValue strips the single optional space after the field colon.
func trimFieldValue(v string) string {
	if len(v) > 0 && v[0] == ' ' {
		return v[1:]
	}
	return v
}
