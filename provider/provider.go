package provider

import "context"

// Provider is the base interface all providers must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from its raw configuration section.
type Factory[T Provider] func(cfg map[string]any) (T, error)

// Initializable is optionally implemented by providers that need setup
// before handling requests, such as probing a sidecar or checking a binary.
// The Manager calls Init after creating the provider.
type Initializable interface {
	Init(ctx context.Context) error
}

// Closeable is optionally implemented by providers that hold resources.
// The Manager calls Close during shutdown.
type Closeable interface {
	Close(ctx context.Context) error
}
