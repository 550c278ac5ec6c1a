package api

import (
	"bytes"

	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/server"
	"github.com/kbukum/whisper-server/transcription"
)

// AudioInfo describes a payload without transcribing it.
type AudioInfo struct {
	SizeBytes    int     `json:"audio_size_bytes"`
	SizeMB       float64 `json:"audio_size_mb"`
	Size         string  `json:"audio_size"`
	Base64Length int     `json:"base64_length"`
	Format       string  `json:"format"`
	Identified   bool    `json:"format_identified"`
	// Container and TagFormat come from metadata parsing and are empty when
	// the clip carries no readable tags.
	Container string `json:"container,omitempty"`
	TagFormat string `json:"tag_format,omitempty"`
	Model     string `json:"model"`
	Language  string `json:"language"`
}

// AudioInfo handles POST /debug/audio-info. It runs the same extraction and
// validation as a transcription and stops there.
func (h *Handler) AudioInfo(c *gin.Context) {
	var req transcription.Request
	if err := bindRequest(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	payload, err := req.ExtractAudio()
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	verdict, clip := h.gate.Validate(payload)
	if !verdict.Accepted {
		server.RespondWithError(c, verdict.Err())
		return
	}

	language := req.Language
	if language == "" {
		language = "auto"
	}
	info := AudioInfo{
		SizeBytes:    clip.Size(),
		SizeMB:       float64(clip.Size()) / (1024 * 1024),
		Size:         humanize.Bytes(uint64(clip.Size())),
		Base64Length: len(payload),
		Format:       string(clip.Format),
		Identified:   clip.Identified,
		Model:        h.pipeline.ResolveModel(&req),
		Language:     language,
	}

	if format, fileType, err := tag.Identify(bytes.NewReader(clip.Data)); err == nil {
		info.Container = string(fileType)
		info.TagFormat = string(format)
	} else {
		h.log.WithContext(c.Request.Context()).Debug("no container metadata", logger.Fields(
			logger.FieldFormat, string(clip.Format),
			logger.FieldError, err.Error(),
		))
	}

	server.RespondOK(c, info)
}
