// Package whisper builds engines backed by a faster-whisper HTTP sidecar.
// The sidecar keeps one loaded model per Load call; the engine cache decides
// how many stay resident by unloading evicted ones.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/engine"
	apperrors "github.com/kbukum/whisper-server/errors"
	"github.com/kbukum/whisper-server/httpclient"
	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/provider"
	"github.com/kbukum/whisper-server/resilience"
)

const (
	// ProviderName is the registered name for the sidecar backend.
	ProviderName = "whisper"

	defaultBaseURL = "http://localhost:8387"
	defaultTimeout = 120 * time.Second
)

// Config holds configuration for the sidecar backend.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// LoadTimeout bounds the sidecar's model load call.
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	// HealthAttempts is how often Init polls /health before giving up.
	HealthAttempts int `mapstructure:"health_attempts"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 10 * time.Minute
	}
	if c.HealthAttempts <= 0 {
		c.HealthAttempts = 3
	}
}

// Backend talks to the sidecar. Several identifiers may share one sidecar
// model, so loads are counted per model and the model is unloaded only when
// its last engine closes.
type Backend struct {
	cfg    Config
	client *httpclient.Client
	fs     afero.Fs
	log    *logger.Logger

	mu   sync.Mutex
	refs map[string]int
}

var (
	_ engine.Backend         = (*Backend)(nil)
	_ provider.Initializable = (*Backend)(nil)
	_ provider.Closeable     = (*Backend)(nil)
)

// NewBackend creates a sidecar backend. Audio files are read from fs.
func NewBackend(cfg Config, fs afero.Fs, log *logger.Logger) *Backend {
	cfg.ApplyDefaults()
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.Nop()
	}
	// Per-call deadlines come from the context; the client bound only
	// has to cover the longest of them.
	client := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: max(cfg.LoadTimeout, cfg.Timeout),
		Headers: map[string]string{"User-Agent": "whisper-server"},
	})
	return &Backend{
		cfg:    cfg,
		client: client,
		fs:     fs,
		log:    log.WithComponent("whisper-backend"),
		refs:   make(map[string]int),
	}
}

// Factory returns a provider.Factory that creates sidecar backends from a
// raw config section.
func Factory(fs afero.Fs, log *logger.Logger) provider.Factory[engine.Backend] {
	return func(raw map[string]any) (engine.Backend, error) {
		var cfg Config
		if err := provider.DecodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		return NewBackend(cfg, fs, log), nil
	}
}

// Name returns the provider name.
func (b *Backend) Name() string { return ProviderName }

// IsAvailable checks if the sidecar answers its health check.
func (b *Backend) IsAvailable(ctx context.Context) bool {
	return b.checkHealth(ctx) == nil
}

// Init waits for the sidecar to come up.
func (b *Backend) Init(ctx context.Context) error {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = b.cfg.HealthAttempts
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		b.log.Warn("sidecar not ready", logger.Fields(
			"attempt", attempt,
			logger.FieldError, err.Error(),
			"backoff", backoff.String(),
		))
	}
	if err := resilience.RetryFunc(ctx, cfg, func() error { return b.checkHealth(ctx) }); err != nil {
		return fmt.Errorf("whisper sidecar at %s: %w", b.cfg.BaseURL, err)
	}
	return nil
}

// Close drops idle sidecar connections.
func (b *Backend) Close(ctx context.Context) error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *Backend) checkHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := b.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err
}

type loadRequest struct {
	Model       string `json:"model"`
	Device      string `json:"device"`
	ComputeType string `json:"compute_type"`
}

// Load asks the sidecar to load spec.Model on spec.Device.
func (b *Backend) Load(ctx context.Context, spec engine.Spec) (engine.Engine, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.LoadTimeout)
	defer cancel()

	body := loadRequest{
		Model:       spec.Model,
		Device:      string(spec.Device),
		ComputeType: spec.ComputeType,
	}
	if err := b.postJSON(ctx, "/load", body); err != nil {
		return nil, fmt.Errorf("load %s: %w", spec.Model, err)
	}

	b.mu.Lock()
	b.refs[spec.Model]++
	b.mu.Unlock()
	return &Engine{backend: b, spec: spec}, nil
}

// unref drops one engine's claim on model and reports whether it was the
// last one.
func (b *Backend) unref(model string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs[model]--
	if b.refs[model] > 0 {
		return false
	}
	delete(b.refs, model)
	return true
}

func (b *Backend) postJSON(ctx context.Context, path string, body any) error {
	_, err := b.client.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: path, Body: body})
	return err
}

// Engine is one identifier served by a model loaded in the sidecar.
type Engine struct {
	backend *Backend
	spec    engine.Spec
	closed  sync.Once
}

// Transcribe uploads the file at path and returns the sidecar's transcript.
func (e *Engine) Transcribe(ctx context.Context, path string, params engine.Params) (*engine.Result, error) {
	audio, err := afero.ReadFile(e.backend.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	fields := map[string]string{
		"model":       e.spec.Model,
		"temperature": strconv.FormatFloat(params.Temperature, 'f', -1, 64),
		"beam_size":   strconv.Itoa(params.BeamSize),
		"batch_size":  strconv.Itoa(params.BatchSize),
		"do_sample":   strconv.FormatBool(params.DoSample),
	}
	if params.Language != "" {
		fields["language"] = params.Language
	}

	ctx, cancel := context.WithTimeout(ctx, e.backend.cfg.Timeout)
	defer cancel()
	var out sidecarResponse
	err = e.backend.client.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body: &httpclient.MultipartBody{
			Fields: fields,
			Files:  []httpclient.FileField{{FieldName: "file", FileName: filepath.Base(path), Data: audio}},
		},
	}, &out)
	if err != nil {
		return nil, sidecarError(err)
	}
	return out.result(), nil
}

// sidecarError maps transport failures to client-visible errors. Anything
// else stays a plain error and surfaces as a transcription failure.
func sidecarError(err error) error {
	var hErr *httpclient.Error
	if !errors.As(err, &hErr) {
		return fmt.Errorf("whisper request: %w", err)
	}
	switch {
	case hErr.Code == httpclient.ErrCodeConnection:
		return apperrors.ConnectionFailed("whisper sidecar").WithCause(err)
	case httpclient.IsTimeout(err):
		return apperrors.Timeout("whisper transcription").WithCause(err)
	case httpclient.IsRetryable(err):
		return apperrors.ExternalServiceError("whisper sidecar", err)
	}
	return fmt.Errorf("whisper request: %w", err)
}

// Close unloads the model from the sidecar unless another engine still
// uses it.
func (e *Engine) Close() error {
	var err error
	e.closed.Do(func() {
		if !e.backend.unref(e.spec.Model) {
			e.backend.log.Debug("model still in use, unload skipped", logger.Fields(
				logger.FieldModel, e.spec.ID,
				"model_ref", e.spec.Model,
			))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err = e.backend.postJSON(ctx, "/unload", map[string]string{"model": e.spec.Model})
	})
	return err
}

type sidecarResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []engine.Segment `json:"segments"`
}

func (r *sidecarResponse) result() *engine.Result {
	res := &engine.Result{
		Text:     strings.TrimSpace(r.Text),
		Language: r.Language,
		Duration: r.Duration,
		Segments: r.Segments,
	}
	if res.Duration == 0 && len(r.Segments) > 0 {
		res.Duration = r.Segments[len(r.Segments)-1].End
	}
	return res
}
