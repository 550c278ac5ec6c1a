// Package openai builds engines that forward audio to an OpenAI compatible
// transcription endpoint.
package openai

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/engine"
	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/provider"
	"github.com/kbukum/whisper-server/util"
)

// ProviderName is the registered name for the OpenAI backend.
const ProviderName = "openai"

// Config holds configuration for the OpenAI backend.
type Config struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// Model overrides the remote model name. Empty sends the client-facing
	// identifier.
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Backend is an OpenAI compatible transcription API. Load does not allocate
// anything remote; the engines it returns are thin request builders.
type Backend struct {
	cfg    Config
	client *goopenai.Client
	fs     afero.Fs
	log    *logger.Logger
}

var _ engine.Backend = (*Backend)(nil)

// NewBackend creates an OpenAI backend. Audio files are read from fs.
func NewBackend(cfg Config, fs afero.Fs, log *logger.Logger) *Backend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("openai-backend")
	log.Debug("backend configured", logger.Fields(
		"base_url", clientCfg.BaseURL,
		"api_key", util.MaskSecret(cfg.APIKey, 3),
	))
	return &Backend{
		cfg:    cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
		fs:     fs,
		log:    log,
	}
}

// Factory returns a provider.Factory that creates OpenAI backends from a raw
// config section.
func Factory(fs afero.Fs, log *logger.Logger) provider.Factory[engine.Backend] {
	return func(raw map[string]any) (engine.Backend, error) {
		var cfg Config
		if err := provider.DecodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		return NewBackend(cfg, fs, log), nil
	}
}

func (b *Backend) Name() string { return ProviderName }

// IsAvailable reports whether the backend has credentials.
func (b *Backend) IsAvailable(ctx context.Context) bool {
	return b.cfg.APIKey != ""
}

// Load returns an engine sending spec's identifier, or the configured model
// override, to the remote API.
func (b *Backend) Load(ctx context.Context, spec engine.Spec) (engine.Engine, error) {
	if b.cfg.APIKey == "" {
		return nil, fmt.Errorf("openai backend: api_key is not configured")
	}
	model := util.FirstNonEmpty(b.cfg.Model, spec.ID)
	b.log.Debug("remote engine ready", logger.Fields(logger.FieldModel, spec.ID, "remote_model", model))
	return &Engine{backend: b, model: model}, nil
}

// Engine sends one file per call to the remote API.
type Engine struct {
	backend *Backend
	model   string
}

func (e *Engine) Transcribe(ctx context.Context, path string, params engine.Params) (*engine.Result, error) {
	f, err := e.backend.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, e.backend.cfg.Timeout)
	defer cancel()

	resp, err := e.backend.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:       e.model,
		FilePath:    filepath.Base(path),
		Reader:      f,
		Language:    params.Language,
		Temperature: float32(params.Temperature),
		Format:      goopenai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	res := &engine.Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
	}
	for _, s := range resp.Segments {
		res.Segments = append(res.Segments, engine.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return res, nil
}

// Close is a no-op; nothing is held remotely.
func (e *Engine) Close() error { return nil }
