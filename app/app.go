package app

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/api"
	"github.com/kbukum/whisper-server/audio"
	"github.com/kbukum/whisper-server/bootstrap"
	"github.com/kbukum/whisper-server/engine"
	"github.com/kbukum/whisper-server/engine/openai"
	"github.com/kbukum/whisper-server/engine/stub"
	"github.com/kbukum/whisper-server/engine/whisper"
	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/normalize"
	"github.com/kbukum/whisper-server/observability"
	"github.com/kbukum/whisper-server/provider"
	"github.com/kbukum/whisper-server/scratch"
	"github.com/kbukum/whisper-server/server"
	"github.com/kbukum/whisper-server/transcription"
)

// BackendAuto initializes every backend that comes up and serves from the
// first available one in BackendPriority.
const BackendAuto = "auto"

// BackendPriority is the order BackendAuto tries backends in.
var BackendPriority = []string{whisper.ProviderName, openai.ProviderName, stub.ProviderName}

// Service holds the wired collaborators of a running server.
type Service struct {
	Backends *provider.Manager[engine.Backend]
	Backend  engine.Backend
	Metrics  *observability.Metrics
	Tracing  *observability.Tracing
	Scratch  *scratch.Store
	Cache    *engine.Cache
	Pipeline *transcription.Pipeline
	Server   *server.Server
}

// NewBackends returns a manager that knows every engine backend. Audio
// files are read from fs.
func NewBackends(fs afero.Fs, log *logger.Logger) *provider.Manager[engine.Backend] {
	sel := &provider.PrioritySelector[engine.Backend]{Priority: BackendPriority}
	m := provider.NewManager(provider.NewRegistry[engine.Backend](), sel, log)
	m.Register(whisper.ProviderName, whisper.Factory(fs, log))
	m.Register(openai.ProviderName, openai.Factory(fs, log))
	m.Register(stub.ProviderName, stub.Factory(fs))
	return m
}

// Build initializes the configured backend and wires the pipeline, the API
// and the HTTP server. Nothing is started.
func Build(ctx context.Context, cfg *Config, fs afero.Fs, log *logger.Logger) (*Service, error) {
	backends := NewBackends(fs, log)
	backend, err := initBackend(ctx, backends, cfg.Engine, log)
	if err != nil {
		return nil, err
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("engine catalog: %w", err)
	}
	norm, err := normalize.New(cfg.Normalize, fs, log)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	cache := engine.NewCache(catalog, backend.Load, cfg.CacheOptions(), log, metrics)
	store := scratch.NewStore(fs, cfg.Scratch.Dir, log)
	gate := audio.NewGatekeeper(cfg.Audio.MaxFileSizeMB, log)

	pipeline := transcription.NewPipeline(transcription.Deps{
		Gatekeeper: gate,
		Scratch:    store,
		Normalizer: norm,
		Cache:      cache,
		Metrics:    metrics,
		Logger:     log,
	}, transcription.Options{DefaultModel: cfg.Engine.DefaultModel})

	srv := server.New(cfg.Server, log, metrics)
	api.NewHandler(pipeline, cache, gate, log).Register(srv.GinEngine())

	log.Info("service wired", logger.Fields(
		"backend", backend.Name(),
		"normalizer", norm.Name(),
		"device", string(cache.Device()),
		"models", catalog.IDs(),
	))

	return &Service{
		Backends: backends,
		Backend:  backend,
		Metrics:  metrics,
		Tracing:  observability.NewTracing(cfg.Tracing, log),
		Scratch:  store,
		Cache:    cache,
		Pipeline: pipeline,
		Server:   srv,
	}, nil
}

func initBackend(ctx context.Context, m *provider.Manager[engine.Backend], ec EngineConfig, log *logger.Logger) (engine.Backend, error) {
	if ec.Backend != BackendAuto {
		if err := m.Initialize(ctx, ec.Backend, ec.Backends[ec.Backend]); err != nil {
			return nil, err
		}
		if err := m.SetDefault(ec.Backend); err != nil {
			return nil, err
		}
		return m.Get(ctx)
	}

	for _, name := range BackendPriority {
		raw, configured := ec.Backends[name]
		if !configured && name != stub.ProviderName {
			continue
		}
		if err := m.Initialize(ctx, name, raw); err != nil {
			log.WithError(err).Warn("backend skipped", logger.Fields("backend", name))
		}
	}
	return m.Get(ctx)
}

// Register adds the service's components to a in start order, mounts the
// default endpoints and closes the backends on shutdown.
func (s *Service) Register(a *bootstrap.App[*Config]) error {
	if err := a.RegisterComponent(s.Tracing); err != nil {
		return err
	}
	if err := a.RegisterComponent(s.Scratch); err != nil {
		return err
	}
	if err := a.RegisterComponent(s.Cache); err != nil {
		return err
	}
	sc := server.NewComponent(s.Server)
	if err := a.RegisterComponent(sc); err != nil {
		return err
	}

	s.Server.RegisterDefaultEndpoints(a.Name, a.Components.HealthAll)
	a.OnStop(s.Backends.CloseAll)
	return nil
}

// New builds the app around an already loaded cfg. Nothing is started until
// Run. fs is where scratch files live.
func New(ctx context.Context, cfg *Config, fs afero.Fs, opts ...bootstrap.Option) (*bootstrap.App[*Config], *Service, error) {
	a, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	svc, err := Build(ctx, cfg, fs, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire service: %w", err)
	}
	if err := svc.Register(a); err != nil {
		return nil, nil, err
	}
	return a, svc, nil
}
