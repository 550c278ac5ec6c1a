package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/whisper-server/audio"
	"github.com/kbukum/whisper-server/engine"
	"github.com/kbukum/whisper-server/errors"
	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/normalize"
	"github.com/kbukum/whisper-server/observability"
	"github.com/kbukum/whisper-server/scratch"
)

// Outcome is the result of one transcription.
type Outcome struct {
	Text string
	// Elapsed covers the engine call only.
	Elapsed time.Duration
	// Model echoes the requested identifier.
	Model  string
	Format audio.Format
}

// MarshalJSON renders Elapsed as fractional seconds under processing_time.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text           string  `json:"text"`
		ProcessingTime float64 `json:"processing_time"`
		Model          string  `json:"model"`
		Format         string  `json:"format"`
	}{o.Text, o.Elapsed.Seconds(), o.Model, string(o.Format)})
}

// Deps are the collaborators of a Pipeline. Metrics and Logger may be nil.
type Deps struct {
	Gatekeeper *audio.Gatekeeper
	Scratch    *scratch.Store
	Normalizer normalize.Normalizer
	Cache      *engine.Cache
	Metrics    *observability.Metrics
	Logger     *logger.Logger
}

// Options tune a Pipeline.
type Options struct {
	// DefaultModel is used when a request names no model.
	DefaultModel string
}

// Pipeline runs transcription requests. It is safe for concurrent use.
type Pipeline struct {
	gate    *audio.Gatekeeper
	store   *scratch.Store
	norm    normalize.Normalizer
	cache   *engine.Cache
	metrics *observability.Metrics
	log     *logger.Logger
	opts    Options
}

// NewPipeline creates a pipeline. A nil Normalizer means no normalization.
func NewPipeline(deps Deps, opts Options) *Pipeline {
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.None{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Pipeline{
		gate:    deps.Gatekeeper,
		store:   deps.Scratch,
		norm:    deps.Normalizer,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		log:     deps.Logger.WithComponent("pipeline"),
		opts:    opts,
	}
}

// ResolveModel returns the identifier a request is served with: its model
// exactly as sent, or the default when it sent none.
func (p *Pipeline) ResolveModel(req *Request) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return p.opts.DefaultModel
}

// Transcribe runs one request to completion. Validation failures return
// client errors before anything touches the filesystem. Every scratch file
// created on the way is removed before Transcribe returns.
func (p *Pipeline) Transcribe(ctx context.Context, req *Request) (*Outcome, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanTranscribe)
	defer span.End()

	out, err := p.run(ctx, req)
	if err != nil {
		observability.SetSpanError(ctx, err)
		p.metrics.Transcription(outcomeLabel(err))
		if appErr, ok := errors.AsAppError(err); ok && appErr.IsClientError() {
			p.log.WithContext(ctx).Debug("request rejected", logger.Fields(
				"code", string(appErr.Code),
				"reason", appErr.Message,
			))
		}
		return nil, err
	}
	p.metrics.Transcription("ok")
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, req *Request) (*Outcome, error) {
	payload, err := req.ExtractAudio()
	if err != nil {
		return nil, err
	}

	verdict, clip := p.gate.Validate(payload)
	if !verdict.Accepted {
		return nil, verdict.Err()
	}
	p.metrics.AudioPayload(clip.Size())
	observability.SetSpanAttribute(ctx, observability.AttrAudioBytes, clip.Size())
	observability.SetSpanAttribute(ctx, observability.AttrFormat, string(clip.Format))

	session := p.store.Session()
	defer session.Release()

	path, err := session.Write(clip.Data, clip.Format.Extension())
	if err != nil {
		return nil, errors.ScratchWriteFailed(err)
	}

	input := p.normalize(ctx, session, path)

	model := p.ResolveModel(req)
	observability.SetSpanAttribute(ctx, observability.AttrModel, model)
	h, err := p.cache.Acquire(ctx, model)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	res, err := p.infer(ctx, h, input, engine.DeterministicParams(req.Language, h.Spec().CostHint))
	if err != nil {
		return nil, err
	}

	p.log.WithContext(ctx).Info("transcription complete", logger.Fields(
		logger.FieldModel, model,
		logger.FieldFormat, string(clip.Format),
		logger.FieldSize, logger.Size(clip.Size()),
		logger.FieldDuration, res.Elapsed.Milliseconds(),
	))
	return &Outcome{
		Text:    res.Text,
		Elapsed: res.Elapsed,
		Model:   model,
		Format:  clip.Format,
	}, nil
}

// normalize returns the file to run inference on. Any failure, including a
// panic in the normalizer, falls back to the original file.
func (p *Pipeline) normalize(ctx context.Context, session *scratch.Session, path string) string {
	ctx, span := observability.StartSpan(ctx, observability.SpanNormalize)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrNormalizer, p.norm.Name())

	out, ok := p.safeNormalize(ctx, path)
	// A normalizer that failed midway may still have left its output behind.
	session.Track(normalize.OutputPath(path))
	session.Track(out)

	if !ok || out == "" {
		p.metrics.NormalizationFallback()
		observability.SetSpanAttribute(ctx, observability.AttrFallback, true)
		p.log.WithContext(ctx).Warn("normalization failed, using original audio", logger.Fields(
			"normalizer", p.norm.Name(),
			logger.FieldPath, path,
		))
		return path
	}
	return out
}

func (p *Pipeline) safeNormalize(ctx context.Context, path string) (out string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithContext(ctx).Error("normalizer panicked", logger.Fields(
				"normalizer", p.norm.Name(),
				logger.FieldError, fmt.Sprint(r),
			))
			out, ok = "", false
		}
	}()
	return p.norm.Normalize(ctx, path)
}

// infer runs the engine. The returned Result's Elapsed excludes the wait for
// a free engine slot.
func (p *Pipeline) infer(ctx context.Context, h *engine.Handle, path string, params engine.Params) (*engine.Result, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanInference)
	defer span.End()

	res, err := h.Transcribe(ctx, path, params)
	if err != nil {
		if _, ok := errors.AsAppError(err); ok {
			return nil, err
		}
		p.log.WithContext(ctx).Error("transcription failed",
			logger.MergeWithError(logger.Fields(logger.FieldModel, h.ID()), err))
		return nil, errors.TranscriptionFailed(err).WithDetail("model", h.ID())
	}
	p.metrics.Inference(h.ID(), res.Elapsed)
	return res, nil
}

func outcomeLabel(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return strings.ToLower(string(appErr.Code))
	}
	return "error"
}
