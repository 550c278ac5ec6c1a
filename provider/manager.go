package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/whisper-server/logger"
)

// Manager provides the main API for working with providers,
// combining a Registry for storage and a Selector for choosing providers.
type Manager[T Provider] struct {
	mu          sync.RWMutex
	registry    *Registry[T]
	selector    Selector[T]
	providers   map[string]T
	defaultName string
	log         *logger.Logger
}

// NewManager creates a Manager backed by the given registry. selector may be
// nil when a default is always set.
func NewManager[T Provider](registry *Registry[T], selector Selector[T], log *logger.Logger) *Manager[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager[T]{
		registry:  registry,
		selector:  selector,
		providers: make(map[string]T),
		log:       log.WithComponent("provider"),
	}
}

// Register adds a factory to the underlying registry.
func (m *Manager[T]) Register(name string, factory Factory[T]) {
	if m.registry.Has(name) {
		m.log.Warn("factory replaced", logger.Fields("provider", name))
	}
	m.registry.RegisterFactory(name, factory)
	m.log.Debug("factory registered", logger.Fields("provider", name))
}

// Initialize creates a provider from its factory, runs Init when the
// provider implements Initializable, and stores it for use.
func (m *Manager[T]) Initialize(ctx context.Context, name string, cfg map[string]any) error {
	if !m.registry.Has(name) {
		return fmt.Errorf("initialize provider %q: not registered (known: %v)", name, m.registry.List())
	}
	instance, err := m.registry.Create(name, cfg)
	if err != nil {
		return fmt.Errorf("initialize provider %q: %w", name, err)
	}
	if init, ok := any(instance).(Initializable); ok {
		if err := init.Init(ctx); err != nil {
			return fmt.Errorf("initialize provider %q: %w", name, err)
		}
	}
	m.mu.Lock()
	m.providers[name] = instance
	m.mu.Unlock()
	m.registry.Set(name, instance)
	m.log.Info("provider initialized", logger.Fields("provider", name))
	return nil
}

// Get returns the default provider if set, otherwise one chosen by the selector.
func (m *Manager[T]) Get(ctx context.Context) (T, error) {
	m.mu.RLock()
	defaultName := m.defaultName
	providers := m.snapshotLocked()
	m.mu.RUnlock()

	if defaultName != "" {
		if p, ok := providers[defaultName]; ok {
			return p, nil
		}
		var zero T
		return zero, fmt.Errorf("default provider %q not found", defaultName)
	}
	if m.selector == nil {
		var zero T
		return zero, fmt.Errorf("no default provider set")
	}
	return m.selector.Select(ctx, providers)
}

// GetByName returns a specific provider by name.
func (m *Manager[T]) GetByName(name string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.providers[name]; ok {
		return p, nil
	}
	var zero T
	return zero, fmt.Errorf("provider %q not found", name)
}

// SetDefault sets the default provider by name.
func (m *Manager[T]) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("provider %q not initialized", name)
	}
	m.defaultName = name
	m.log.Info("default provider set", logger.Fields("provider", name))
	return nil
}

// Available returns the sorted names of all initialized providers.
func (m *Manager[T]) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every initialized provider that implements Closeable and
// forgets them all.
func (m *Manager[T]) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	providers := m.providers
	m.providers = make(map[string]T)
	m.defaultName = ""
	m.mu.Unlock()

	var errs []error
	for name, p := range providers {
		m.registry.Delete(name)
		c, ok := any(p).(Closeable)
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close provider %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// snapshotLocked returns a shallow copy of the providers map.
// Must be called while holding at least a read lock.
func (m *Manager[T]) snapshotLocked() map[string]T {
	cp := make(map[string]T, len(m.providers))
	for k, v := range m.providers {
		cp[k] = v
	}
	return cp
}
