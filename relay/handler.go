package relay

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillsenselab/voicerelay/admission"
	apperrors "github.com/skillsenselab/voicerelay/errors"
	"github.com/skillsenselab/voicerelay/logger"
	"github.com/skillsenselab/voicerelay/metrics"
	"github.com/skillsenselab/voicerelay/quota"
	"github.com/skillsenselab/voicerelay/server"
	"github.com/skillsenselab/voicerelay/server/middleware"
	"github.com/skillsenselab/voicerelay/sse"
	"github.com/skillsenselab/voicerelay/upstream"
)

// Handler serves the streaming transcription endpoint.
type Handler struct {
	cfg      Config
	admitter *admission.Controller
	ledger   quota.Ledger
	provider upstream.Client
	log      *logger.Logger
}

// NewHandler wires the relay endpoint's collaborators.
func NewHandler(cfg Config, admitter *admission.Controller, ledger quota.Ledger,
	provider upstream.Client, log *logger.Logger) *Handler {
	cfg.ApplyDefaults()
	return &Handler{
		cfg:      cfg,
		admitter: admitter,
		ledger:   ledger,
		provider: provider,
		log:      log.WithComponent("relay"),
	}
}

// Register mounts the relay routes on the engine.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/v1/transcribe/stream", h.Stream)
}

// Stream handles one chunk: admission, the upstream call, and the translated
// event stream back to the client.
func (h *Handler) Stream(c *gin.Context) {
	chunk, err := h.parseChunk(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	log := h.log.WithFields(map[string]interface{}{
		logger.FieldRequestID: chunk.RequestID,
		logger.FieldUserID:    chunk.UserID,
	})

	decision, err := h.admitter.Admit(c.Request.Context(), chunk.UserID, chunk.RequestID, chunk.IsFinal)
	if err != nil {
		log.Error("Admission check failed", map[string]interface{}{"error": err.Error()})
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}
	metrics.ChunksTotal.WithLabelValues(decision.Verdict.String()).Inc()

	switch decision.Verdict {
	case admission.RejectQuota:
		log.Warn("Chunk rejected: daily quota exhausted", map[string]interface{}{
			"used_minutes":  decision.UsedMinutes,
			"limit_minutes": decision.LimitMinutes,
		})
		server.RespondWithError(c, apperrors.QuotaExceeded(decision.LimitMinutes, decision.UsedMinutes))
		return

	case admission.DropBackpressure:
		log.Debug("Chunk dropped: concurrency ceiling reached")
		server.RespondAccepted(c, gin.H{
			"dropped":   true,
			"reason":    "backpressure",
			"requestId": chunk.RequestID,
		})
		return
	}

	h.runAccepted(c, chunk, log)
}

// runAccepted executes the accepted chunk's session. The deferred block is
// the one place the session's registration is released and usage committed,
// so every exit path (success, error, cancellation, panic) passes through it.
func (h *Handler) runAccepted(c *gin.Context, chunk ChunkRequest, log *logger.Logger) {
	startedAt := time.Now()
	metrics.ActiveSessions.Inc()

	defer func() {
		// The request context may already be canceled; cleanup must not be.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.admitter.Release(cleanupCtx, chunk.UserID, chunk.RequestID); err != nil {
			log.Error("Failed to release session", map[string]interface{}{"error": err.Error()})
		}
		// Usage reflects audio consumed, not server latency.
		if err := h.ledger.Commit(cleanupCtx, chunk.UserID, chunk.AudioDurationSeconds); err != nil {
			log.Error("Failed to commit usage", map[string]interface{}{"error": err.Error()})
		}
		metrics.AudioSecondsTotal.Add(chunk.AudioDurationSeconds)
		metrics.ActiveSessions.Dec()
		metrics.SessionDuration.Observe(time.Since(startedAt).Seconds())
	}()

	out, err := sse.NewWriter(c.Writer)
	if err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}
	out.Prepare()

	// clientCtx is done on client disconnect; streamCtx adds the defensive
	// per-session ceiling so a hung upstream cannot hold a slot forever.
	clientCtx := c.Request.Context()
	streamCtx, cancel := context.WithTimeout(clientCtx, h.cfg.sessionTimeout())
	defer cancel()

	s := &session{
		chunk:    chunk,
		provider: h.provider,
		out:      out,
		log:      log,
	}
	s.run(clientCtx, streamCtx)
}

// parseChunk validates the multipart form and builds the ChunkRequest.
func (h *Handler) parseChunk(c *gin.Context) (ChunkRequest, error) {
	userID := c.PostForm("userId")
	if userID == "" {
		return ChunkRequest{}, apperrors.MissingField("userId")
	}

	language := c.PostForm("language")
	if language == "" {
		language = h.cfg.DefaultLanguage
	}

	isFinal := c.PostForm("final") == "true"

	var durationSeconds float64
	if raw := c.PostForm("chunkDurationMs"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			return ChunkRequest{}, apperrors.InvalidInput("chunkDurationMs", "must be a non-negative integer")
		}
		durationSeconds = float64(ms) / 1000
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return ChunkRequest{}, apperrors.MissingField("audio")
	}
	if h.cfg.MaxAudioBytes > 0 && fileHeader.Size > h.cfg.MaxAudioBytes {
		return ChunkRequest{}, apperrors.InvalidInput("audio",
			fmt.Sprintf("audio exceeds %d bytes", h.cfg.MaxAudioBytes))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ChunkRequest{}, apperrors.InvalidInput("audio", "could not read audio part")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return ChunkRequest{}, apperrors.InvalidInput("audio", "could not read audio part")
	}

	requestID := c.GetString(middleware.ContextKeyRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	return ChunkRequest{
		UserID:               userID,
		Language:             language,
		Audio:                audio,
		AudioDurationSeconds: durationSeconds,
		IsFinal:              isFinal,
		RequestID:            requestID,
		FileName:             fileHeader.Filename,
		ContentType:          fileHeader.Header.Get("Content-Type"),
	}, nil
}
