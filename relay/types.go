// Package relay orchestrates one audio chunk's lifecycle: admission, the
// upstream streaming call, frame-by-frame translation of the provider's
// event stream into the client-facing vocabulary, cancellation wiring, and
// usage accounting.
package relay

// ChunkRequest is one inbound unit of work: a ~1.25 s slice of an utterance.
// Created when a chunk arrives, consumed synchronously by one session, never
// persisted.
type ChunkRequest struct {
	UserID   string
	Language string
	Audio    []byte
	// AudioDurationSeconds is the client-declared chunk duration. Usage is
	// committed from this value, not wall-clock processing time, so provider
	// slowness never inflates a user's quota consumption.
	AudioDurationSeconds float64
	// IsFinal marks the last chunk of an utterance.
	IsFinal   bool
	RequestID string
	// FileName and ContentType describe the uploaded audio part.
	FileName    string
	ContentType string
}

// Client event vocabulary (egress).

const (
	// EventTypeTranscription is the type of every transcript event.
	EventTypeTranscription = "transcription"
	// EventTypeError is the type of the single error event a failed
	// session forwards.
	EventTypeError = "error"
)

// TranscriptionEvent is a client-facing transcript event. Non-final events
// carry only the incremental delta; the final event carries the full text.
type TranscriptionEvent struct {
	Type      string `json:"type"`
	Delta     string `json:"delta,omitempty"`
	Text      string `json:"text,omitempty"`
	IsFinal   bool   `json:"isFinal"`
	RequestID string `json:"requestId"`
}

// ErrorEvent is the client-facing error event.
type ErrorEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// Provider event vocabulary (ingress from upstream).

const (
	// providerEventDelta carries an incremental transcript fragment.
	providerEventDelta = "transcript.text.delta"
	// providerEventDone carries the complete transcript and ends the stream.
	providerEventDone = "transcript.text.done"
)

// providerEvent is the JSON payload of one upstream frame.
type providerEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Text  string `json:"text"`
}
