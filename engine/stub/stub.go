// Package stub provides an in-process backend that returns a fixed
// transcript. It lets the server run end to end without a model runtime.
package stub

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/engine"
	"github.com/kbukum/whisper-server/provider"
)

// ProviderName is the registered name for the stub backend.
const ProviderName = "stub"

// Config holds configuration for the stub backend.
type Config struct {
	Text        string        `mapstructure:"text"`
	LoadLatency time.Duration `mapstructure:"load_latency"`
	Latency     time.Duration `mapstructure:"latency"`
	// FailModels lists model references whose Load fails.
	FailModels []string `mapstructure:"fail_models"`
}

// Backend builds stub engines.
type Backend struct {
	cfg   Config
	fs    afero.Fs
	loads atomic.Int64
	open  atomic.Int64
}

var _ engine.Backend = (*Backend)(nil)

// NewBackend creates a stub backend. fs is used to check that the audio file
// handed to Transcribe exists.
func NewBackend(cfg Config, fs afero.Fs) *Backend {
	if cfg.Text == "" {
		cfg.Text = "stub transcription"
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Backend{cfg: cfg, fs: fs}
}

// Factory returns a provider.Factory for stub backends.
func Factory(fs afero.Fs) provider.Factory[engine.Backend] {
	return func(raw map[string]any) (engine.Backend, error) {
		var cfg Config
		if err := provider.DecodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		return NewBackend(cfg, fs), nil
	}
}

func (b *Backend) Name() string                         { return ProviderName }
func (b *Backend) IsAvailable(ctx context.Context) bool { return true }

// Loads returns the number of engines built so far.
func (b *Backend) Loads() int64 { return b.loads.Load() }

// Open returns the number of engines built and not yet closed.
func (b *Backend) Open() int64 { return b.open.Load() }

func (b *Backend) Load(ctx context.Context, spec engine.Spec) (engine.Engine, error) {
	b.loads.Add(1)
	if err := sleep(ctx, b.cfg.LoadLatency); err != nil {
		return nil, err
	}
	if slices.Contains(b.cfg.FailModels, spec.Model) {
		return nil, fmt.Errorf("stub: model %s failed to load", spec.Model)
	}
	b.open.Add(1)
	return &Engine{backend: b, spec: spec}, nil
}

// Engine returns the configured text for every file.
type Engine struct {
	backend *Backend
	spec    engine.Spec
	closed  atomic.Bool
}

func (e *Engine) Transcribe(ctx context.Context, path string, params engine.Params) (*engine.Result, error) {
	if e.closed.Load() {
		return nil, fmt.Errorf("stub: engine %s is closed", e.spec.ID)
	}
	if ok, err := afero.Exists(e.backend.fs, path); err != nil || !ok {
		return nil, fmt.Errorf("stub: audio file %s not found", path)
	}
	if err := sleep(ctx, e.backend.cfg.Latency); err != nil {
		return nil, err
	}
	return &engine.Result{Text: e.backend.cfg.Text, Language: params.Language}, nil
}

func (e *Engine) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.backend.open.Add(-1)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
