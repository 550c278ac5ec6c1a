package api

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisper-server/audio"
	"github.com/kbukum/whisper-server/engine"
	"github.com/kbukum/whisper-server/errors"
	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/server"
	"github.com/kbukum/whisper-server/transcription"
	"github.com/kbukum/whisper-server/validation"
)

// Handler serves the API routes.
type Handler struct {
	pipeline *transcription.Pipeline
	cache    *engine.Cache
	gate     *audio.Gatekeeper
	log      *logger.Logger
}

// NewHandler creates a Handler. log may be nil.
func NewHandler(p *transcription.Pipeline, cache *engine.Cache, gate *audio.Gatekeeper, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{pipeline: p, cache: cache, gate: gate, log: log.WithComponent("api")}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/audio/transcriptions", h.Transcribe)
	v1.POST("/chat/completions", h.Transcribe)
	v1.GET("/models", h.ListModels)

	r.POST("/debug/audio-info", h.AudioInfo)

	admin := r.Group("/admin")
	admin.GET("/cache", h.CacheInfo)
	admin.DELETE("/cache", h.ClearCache)
}

// Transcribe handles POST /v1/audio/transcriptions and its chat alias.
func (h *Handler) Transcribe(c *gin.Context) {
	var req transcription.Request
	if err := bindRequest(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	out, err := h.pipeline.Transcribe(c.Request.Context(), &req)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, out)
}

// bindRequest decodes and validates a JSON body. A body cut off by the
// server's size limit becomes 413.
func bindRequest(c *gin.Context, req *transcription.Request) error {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.PayloadTooLarge(tooLarge.Limit)
		case stderrors.Is(err, io.EOF):
			return errors.InvalidInput("body", "request body must be a JSON object")
		default:
			return errors.InvalidInput("body", "malformed JSON").WithCause(err)
		}
	}
	return validation.Validate(req)
}
