package component

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
	stopCtx    context.Context
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	m.stopCtx = ctx
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health { return m.health }

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&mockComponent{name: "engine-cache"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(&mockComponent{name: "engine-cache"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry(nil)
	c := &mockComponent{name: "http-server"}
	_ = r.Register(c)
	if r.Get("http-server") != c {
		t.Error("expected registered component")
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unknown component")
	}
}

func TestStartAllOrderAndStopReverse(t *testing.T) {
	var started, stopped []string
	r := NewRegistry(nil)
	for _, name := range []string{"tracing", "engine-cache", "http-server"} {
		_ = r.Register(&mockComponent{name: name, startOrder: &started, stopOrder: &stopped})
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if strings.Join(started, ",") != "tracing,engine-cache,http-server" {
		t.Errorf("unexpected start order %v", started)
	}

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	if strings.Join(stopped, ",") != "http-server,engine-cache,tracing" {
		t.Errorf("unexpected stop order %v", stopped)
	}
}

func TestStartAllStopsAtFailure(t *testing.T) {
	var started, stopped []string
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "a", startOrder: &started, stopOrder: &stopped})
	_ = r.Register(&mockComponent{name: "b", startErr: errors.New("port in use"), startOrder: &started, stopOrder: &stopped})
	_ = r.Register(&mockComponent{name: "c", startOrder: &started, stopOrder: &stopped})

	err := r.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "port in use") {
		t.Fatalf("expected start failure, got %v", err)
	}
	if len(started) != 2 {
		t.Errorf("expected c not to start, started=%v", started)
	}

	_ = r.StopAll(context.Background())
	if strings.Join(stopped, ",") != "a" {
		t.Errorf("only started components should stop, got %v", stopped)
	}
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := NewRegistry(nil)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	_ = r.Register(&mockComponent{name: "a", stopErr: errA})
	_ = r.Register(&mockComponent{name: "b", stopErr: errB})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected both stop errors, got %v", err)
	}
}

func TestStopAllAppliesTimeout(t *testing.T) {
	r := NewRegistry(nil)
	r.SetStopTimeout(time.Second)
	c := &mockComponent{name: "a"}
	_ = r.Register(c)
	_ = r.StartAll(context.Background())
	_ = r.StopAll(context.Background())

	if _, ok := c.stopCtx.Deadline(); !ok {
		t.Error("expected stop context to carry a deadline")
	}
}

func TestHealthAllAndAggregate(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "a", health: Health{Name: "a", Status: StatusHealthy}})
	_ = r.Register(&mockComponent{name: "b", health: Health{Name: "b", Status: StatusDegraded}})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if got := Aggregate(results); got != StatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}

	results = append(results, Health{Name: "c", Status: StatusUnhealthy})
	if got := Aggregate(results); got != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", got)
	}
	if got := Aggregate(nil); got != StatusHealthy {
		t.Errorf("expected healthy for no components, got %s", got)
	}
}
