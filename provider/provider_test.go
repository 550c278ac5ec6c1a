package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// testProvider implements the Provider interface for testing.
type testProvider struct {
	name      string
	available bool
	initErr   error
	inited    bool
	closed    bool
}

func (p *testProvider) Name() string                         { return p.name }
func (p *testProvider) IsAvailable(ctx context.Context) bool { return p.available }
func (p *testProvider) Init(ctx context.Context) error {
	p.inited = true
	return p.initErr
}
func (p *testProvider) Close(ctx context.Context) error {
	p.closed = true
	return nil
}

func factoryFor(p *testProvider) Factory[*testProvider] {
	return func(cfg map[string]any) (*testProvider, error) { return p, nil }
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	reg := NewRegistry[*testProvider]()
	reg.RegisterFactory("test", factoryFor(&testProvider{name: "test", available: true}))

	if !reg.Has("test") {
		t.Fatal("expected factory to be registered")
	}
	p, err := reg.Create("test", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Name() != "test" {
		t.Errorf("expected name 'test', got %q", p.Name())
	}
}

func TestRegistryCreateUnregistered(t *testing.T) {
	reg := NewRegistry[*testProvider]()
	_, err := reg.Create("missing", nil)
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Errorf("expected 'not registered' error, got %v", err)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry[*testProvider]()
	reg.RegisterFactory("beta", factoryFor(&testProvider{name: "beta"}))
	reg.RegisterFactory("alpha", factoryFor(&testProvider{name: "alpha"}))

	names := reg.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("expected sorted [alpha beta], got %v", names)
	}
}

func TestManagerInitializeCallsInit(t *testing.T) {
	p := &testProvider{name: "whisper", available: true}
	mgr := NewManager(NewRegistry[*testProvider](), nil, nil)
	mgr.Register("whisper", factoryFor(p))

	if err := mgr.Initialize(context.Background(), "whisper", nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !p.inited {
		t.Error("expected Init to be called")
	}
	got, err := mgr.GetByName("whisper")
	if err != nil || got != p {
		t.Errorf("GetByName = %v, %v", got, err)
	}
}

func TestManagerInitializeUnknownListsKnown(t *testing.T) {
	mgr := NewManager(NewRegistry[*testProvider](), nil, nil)
	mgr.Register("stub", factoryFor(&testProvider{name: "stub"}))
	mgr.Register("whisper", factoryFor(&testProvider{name: "whisper"}))

	err := mgr.Initialize(context.Background(), "whisper.cpp", nil)
	if err == nil || !strings.Contains(err.Error(), "not registered") || !strings.Contains(err.Error(), "[stub whisper]") {
		t.Errorf("expected error naming the registered providers, got %v", err)
	}
}

func TestManagerInitializeInitFailure(t *testing.T) {
	mgr := NewManager(NewRegistry[*testProvider](), nil, nil)
	mgr.Register("bad", factoryFor(&testProvider{name: "bad", initErr: errors.New("sidecar down")}))

	err := mgr.Initialize(context.Background(), "bad", nil)
	if err == nil || !strings.Contains(err.Error(), "sidecar down") {
		t.Fatalf("expected init error, got %v", err)
	}
	if len(mgr.Available()) != 0 {
		t.Error("failed provider should not be stored")
	}
}

func TestManagerDefaultWins(t *testing.T) {
	mgr := NewManager(NewRegistry[*testProvider](), nil, nil)
	mgr.Register("a", factoryFor(&testProvider{name: "a", available: true}))
	mgr.Register("b", factoryFor(&testProvider{name: "b", available: true}))
	_ = mgr.Initialize(context.Background(), "a", nil)
	_ = mgr.Initialize(context.Background(), "b", nil)

	if err := mgr.SetDefault("b"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	p, err := mgr.Get(context.Background())
	if err != nil || p.Name() != "b" {
		t.Errorf("expected default b, got %v, %v", p, err)
	}
	if err := mgr.SetDefault("missing"); err == nil {
		t.Error("expected error for uninitialized default")
	}
}

func TestPrioritySelector(t *testing.T) {
	providers := map[string]*testProvider{
		"whisper": {name: "whisper", available: false},
		"openai":  {name: "openai", available: true},
		"stub":    {name: "stub", available: true},
	}

	sel := &PrioritySelector[*testProvider]{Priority: []string{"whisper", "openai", "stub"}}
	p, err := sel.Select(context.Background(), providers)
	if err != nil || p.Name() != "openai" {
		t.Errorf("expected openai, got %v, %v", p, err)
	}

	none := &PrioritySelector[*testProvider]{Priority: []string{"whisper"}}
	if _, err := none.Select(context.Background(), providers); err == nil {
		t.Error("expected error when nothing in priority list is available")
	}
}

func TestManagerWithoutSelectorNeedsDefault(t *testing.T) {
	mgr := NewManager(NewRegistry[*testProvider](), nil, nil)
	mgr.Register("stub", factoryFor(&testProvider{name: "stub", available: true}))
	_ = mgr.Initialize(context.Background(), "stub", nil)

	if _, err := mgr.Get(context.Background()); err == nil {
		t.Error("expected an error without default or selector")
	}
}

func TestManagerSelectorFallback(t *testing.T) {
	sel := &PrioritySelector[*testProvider]{Priority: []string{"whisper", "stub"}}
	mgr := NewManager(NewRegistry[*testProvider](), sel, nil)
	mgr.Register("whisper", factoryFor(&testProvider{name: "whisper", available: false}))
	mgr.Register("stub", factoryFor(&testProvider{name: "stub", available: true}))
	_ = mgr.Initialize(context.Background(), "whisper", nil)
	_ = mgr.Initialize(context.Background(), "stub", nil)

	p, err := mgr.Get(context.Background())
	if err != nil || p.Name() != "stub" {
		t.Errorf("expected stub, got %v, %v", p, err)
	}
}

func TestManagerCloseAll(t *testing.T) {
	p := &testProvider{name: "whisper", available: true}
	mgr := NewManager(NewRegistry[*testProvider](), nil, nil)
	mgr.Register("whisper", factoryFor(p))
	_ = mgr.Initialize(context.Background(), "whisper", nil)

	if err := mgr.CloseAll(context.Background()); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if !p.closed {
		t.Error("expected Close to be called")
	}
	if len(mgr.Available()) != 0 {
		t.Error("expected providers to be forgotten")
	}
}

func TestDecodeConfig(t *testing.T) {
	type sidecar struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
		Retries int           `mapstructure:"retries"`
		Models  []string      `mapstructure:"models"`
	}

	var cfg sidecar
	err := DecodeConfig(map[string]any{
		"base_url": "http://localhost:9000",
		"timeout":  "45s",
		"retries":  "2",
		"models":   "tiny,small",
	}, &cfg)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Timeout != 45*time.Second || cfg.Retries != 2 || len(cfg.Models) != 2 {
		t.Errorf("unexpected decoded config %+v", cfg)
	}

	if err := DecodeConfig(map[string]any{"base_ur": "typo"}, &cfg); err == nil {
		t.Error("expected unknown key to be rejected")
	}
}
