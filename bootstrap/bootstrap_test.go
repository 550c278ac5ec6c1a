package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/whisper-server/component"
	"github.com/kbukum/whisper-server/config"
	"github.com/kbukum/whisper-server/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	m.stopped = true
	return m.stopErr
}
func (m *mockComponent) Health(context.Context) component.Health {
	if m.health.Name == "" {
		return component.Health{Name: m.name, Status: component.StatusHealthy}
	}
	return m.health
}

type describedComponent struct {
	mockComponent
	routes []component.Route
}

func (d *describedComponent) Describe() component.Description {
	return component.Description{Type: "server", Details: "127.0.0.1:8089", Port: 8089}
}

func (d *describedComponent) Routes() []component.Route { return d.routes }

func newTestApp(t *testing.T, opts ...Option) (*App[*testConfig], *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "whisper-server", Version: "1.0.0"}}
	opts = append([]Option{WithLogger(logger.Nop()), WithSummaryOutput(&out)}, opts...)
	app, err := NewApp(cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app, &out
}

func cancelled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestNewApp(t *testing.T) {
	app, _ := newTestApp(t)
	if app.Name != "whisper-server" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %s %s", app.Name, app.Version)
	}
	if app.Components == nil || app.Logger == nil || app.Summary == nil {
		t.Fatal("expected registry, logger and summary")
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected defaults applied, got %q", app.Cfg.Environment)
	}
	if app.gracefulTimeout != 30*time.Second {
		t.Errorf("expected default graceful timeout, got %v", app.gracefulTimeout)
	}
}

func TestNewAppValidation(t *testing.T) {
	_, err := NewApp(&testConfig{}, WithLogger(logger.Nop()))
	if err == nil {
		t.Error("expected error for missing name")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app, _ := newTestApp(t, WithGracefulTimeout(5*time.Second))
	if app.gracefulTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", app.gracefulTimeout)
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app, _ := newTestApp(t)
	if err := app.RegisterComponent(&mockComponent{name: "engine-cache"}); err != nil {
		t.Fatal(err)
	}
	if err := app.RegisterComponent(&mockComponent{name: "engine-cache"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRunLifecycleOrder(t *testing.T) {
	app, _ := newTestApp(t)
	comp := &mockComponent{name: "engine-cache"}
	_ = app.RegisterComponent(comp)

	var order []string
	record := func(name string) Hook {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	app.OnStart(record("start"))
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		if !comp.started {
			t.Error("components should start before configure")
		}
		order = append(order, "configure")
		return nil
	})
	app.OnReady(record("ready"))
	app.OnStop(func(context.Context) error {
		if comp.stopped {
			t.Error("stop hooks should run before components stop")
		}
		order = append(order, "stop")
		return nil
	})

	if err := app.Run(cancelled()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(order, ","); got != "start,configure,ready,stop" {
		t.Errorf("unexpected order %s", got)
	}
	if !comp.stopped {
		t.Error("expected component to be stopped")
	}
}

func TestRunStartFailureStopsStarted(t *testing.T) {
	app, _ := newTestApp(t)
	first := &mockComponent{name: "tracing"}
	second := &mockComponent{name: "http-server", startErr: errors.New("address in use")}
	_ = app.RegisterComponent(first)
	_ = app.RegisterComponent(second)

	err := app.Run(cancelled())
	if err == nil || !strings.Contains(err.Error(), "address in use") {
		t.Fatalf("expected start error, got %v", err)
	}
	if !first.stopped {
		t.Error("started component should be stopped after a failed startup")
	}
	if second.stopped {
		t.Error("component that failed to start should not be stopped")
	}
}

func TestHookErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(a *App[*testConfig])
		want  string
	}{
		{"start", func(a *App[*testConfig]) { a.OnStart(func(context.Context) error { return boom }) }, "onStart"},
		{"configure", func(a *App[*testConfig]) {
			a.OnConfigure(func(context.Context, *App[*testConfig]) error { return boom })
		}, "configuration"},
		{"ready", func(a *App[*testConfig]) { a.OnReady(func(context.Context) error { return boom }) }, "onReady"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t)
			tt.setup(app)
			err := app.Run(cancelled())
			if !errors.Is(err, boom) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %s error wrapping boom, got %v", tt.want, err)
			}
		})
	}
}

func TestHookErrorStopsExecution(t *testing.T) {
	second := false
	err := runHooks(context.Background(), []Hook{
		func(context.Context) error { return errors.New("first") },
		func(context.Context) error { second = true; return nil },
	})
	if err == nil || second {
		t.Errorf("expected first error to stop execution, err=%v second=%v", err, second)
	}
}

func TestShutdownReportsHookErrorFirst(t *testing.T) {
	app, _ := newTestApp(t)
	hookErr := errors.New("hook")
	app.OnStop(func(context.Context) error { return hookErr })
	_ = app.RegisterComponent(&mockComponent{name: "a", stopErr: errors.New("stop")})
	_ = app.Components.StartAll(context.Background())

	if err := app.Shutdown(); !errors.Is(err, hookErr) {
		t.Errorf("expected hook error to be reported first, got %v", err)
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  component.HealthStatus
		wantErr bool
	}{
		{"healthy", component.StatusHealthy, false},
		{"degraded", component.StatusDegraded, false},
		{"unhealthy", component.StatusUnhealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t)
			_ = app.RegisterComponent(&mockComponent{
				name:   "engine-cache",
				health: component.Health{Name: "engine-cache", Status: tt.status, Message: "sidecar down"},
			})
			err := app.ReadyCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("ReadyCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), "sidecar down") {
				t.Errorf("expected message in error, got %v", err)
			}
		})
	}
}

func TestWaitForSignalContextCancellation(t *testing.T) {
	app, _ := newTestApp(t)
	if sig := app.WaitForSignal(cancelled()); sig != nil {
		t.Errorf("expected nil signal on cancellation, got %v", sig)
	}
}

func TestSummaryCollectFromRegistry(t *testing.T) {
	app, out := newTestApp(t)
	app.Summary.DisableColor()
	_ = app.RegisterComponent(&describedComponent{
		mockComponent: mockComponent{name: "http-server"},
		routes: []component.Route{
			{Method: "POST", Path: "/v1/audio/transcriptions", Handler: "Handler.Transcribe"},
			{Method: "GET", Path: "/health", Handler: "health (system)"},
		},
	})
	_ = app.RegisterComponent(&mockComponent{
		name:   "engine-cache",
		health: component.Health{Name: "engine-cache", Status: component.StatusDegraded, Message: "no engines loaded"},
	})

	if err := app.Run(cancelled()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := out.String()
	for _, want := range []string{
		"whisper-server v1.0.0",
		"http-server [server]: 127.0.0.1:8089",
		"Routes (2)",
		"POST   /v1/audio/transcriptions → Handler.Transcribe",
		"engine-cache: degraded - no engines loaded",
		"1/2 healthy",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestSummaryNilRegistry(t *testing.T) {
	var out bytes.Buffer
	s := NewSummary("svc", "dev", &out)
	s.Display(context.Background(), nil)
	if !strings.Contains(out.String(), "svc vdev") {
		t.Errorf("expected header, got %q", out.String())
	}
}

func TestTreePrefix(t *testing.T) {
	if treePrefix(0, 2) != "├──" || treePrefix(1, 2) != "└──" {
		t.Error("unexpected tree prefixes")
	}
}

func TestMethodColor(t *testing.T) {
	if methodColor("GET") == methodColor("DELETE") {
		t.Error("GET and DELETE should differ")
	}
	s := NewSummary("svc", "1", &bytes.Buffer{})
	if !strings.Contains(s.method("POST"), "\033[") {
		t.Error("expected ANSI color by default")
	}
	s.DisableColor()
	if s.method("POST") != "POST  " {
		t.Errorf("expected padded plain method, got %q", s.method("POST"))
	}
}
