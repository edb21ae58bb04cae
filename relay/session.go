package relay

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/skillsenselab/voicerelay/eventstream"
	"github.com/skillsenselab/voicerelay/logger"
	"github.com/skillsenselab/voicerelay/metrics"
	"github.com/skillsenselab/voicerelay/sse"
	"github.com/skillsenselab/voicerelay/upstream"
)

// session relays one admitted chunk. Owned exclusively by the handler that
// created it; the only state shared with other goroutines is the context.
type session struct {
	chunk    ChunkRequest
	provider upstream.Client
	out      *sse.Writer
	log      *logger.Logger

	// transcript accumulates forwarded deltas so a final provider event
	// with an empty text still yields the assembled transcript.
	transcript strings.Builder
}

// run opens the upstream stream and forwards translated events until a final
// event, a clean upstream end, a failure, or cancellation.
//
// clientCtx is the inbound request's context: it is done when the client
// disconnects, and a disconnected client must see no further writes.
// streamCtx is clientCtx plus the defensive session timeout; it is the
// cancellation signal handed to upstream I/O.
func (s *session) run(clientCtx, streamCtx context.Context) {
	stream, err := s.provider.Open(streamCtx, upstream.Request{
		Audio:       s.chunk.Audio,
		FileName:    s.chunk.FileName,
		ContentType: s.chunk.ContentType,
		Language:    s.chunk.Language,
	})
	if err != nil {
		s.fail(clientCtx, "transcription failed", err)
		return
	}
	// Closing the body tears the provider connection down rather than
	// draining it; load-bearing for cleanup under client disconnects.
	defer stream.Close()

	dec := eventstream.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				done, writeErr := s.forward(frame)
				if writeErr != nil {
					// The client socket failed mid-write; nothing sensible
					// left to send.
					s.log.Debug("Client write failed, ending session", map[string]interface{}{
						"error": writeErr.Error(),
					})
					return
				}
				if done {
					// First final event wins; stop reading even if the
					// upstream connection stays open.
					return
				}
			}
		}
		if err == io.EOF {
			// Clean upstream end with no final event observed: no
			// synthetic event beyond what was already forwarded.
			return
		}
		if err != nil {
			s.fail(clientCtx, "transcription stream interrupted", err)
			return
		}
	}
}

// forward translates one upstream frame into the client vocabulary. done is
// true once the final event has been sent.
func (s *session) forward(frame eventstream.Frame) (done bool, err error) {
	var ev providerEvent
	if jsonErr := json.Unmarshal([]byte(frame.Data), &ev); jsonErr != nil {
		// One malformed frame must not lose the rest of the session.
		metrics.FramesDropped.WithLabelValues("malformed").Inc()
		s.log.Warn("Skipping malformed upstream frame", map[string]interface{}{
			"error": jsonErr.Error(),
			"data":  truncate(frame.Data, 256),
		})
		return false, nil
	}

	eventType := ev.Type
	if eventType == "" {
		eventType = frame.Event
	}

	switch eventType {
	case providerEventDelta:
		// Forward only the incremental delta; forwarding cumulative text as
		// a delta would duplicate content on the client.
		s.transcript.WriteString(ev.Delta)
		return false, s.out.Send(TranscriptionEvent{
			Type:      EventTypeTranscription,
			Delta:     ev.Delta,
			IsFinal:   false,
			RequestID: s.chunk.RequestID,
		})

	case providerEventDone:
		text := ev.Text
		if text == "" {
			text = s.transcript.String()
		}
		return true, s.out.Send(TranscriptionEvent{
			Type:      EventTypeTranscription,
			Text:      text,
			IsFinal:   true,
			RequestID: s.chunk.RequestID,
		})

	default:
		metrics.FramesDropped.WithLabelValues("unknown_type").Inc()
		return false, nil
	}
}

// fail forwards the single client-visible error event, unless the client is
// already gone: cancellation is an expected outcome of user navigation, not
// a reportable fault, and writing to a dead socket helps no one.
func (s *session) fail(clientCtx context.Context, message string, cause error) {
	if clientCtx.Err() != nil {
		s.log.Debug("Session canceled by client", map[string]interface{}{
			"cause": cause.Error(),
		})
		return
	}

	metrics.UpstreamErrors.Inc()
	s.log.Error("Relay session failed", map[string]interface{}{
		"error": cause.Error(),
	})
	_ = s.out.Send(ErrorEvent{
		Type:      EventTypeError,
		Message:   message,
		RequestID: s.chunk.RequestID,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
