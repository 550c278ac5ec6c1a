package provider

import (
	"context"
	"fmt"
)

// Selector picks one of the initialized providers when no default is set.
type Selector[T Provider] interface {
	Select(ctx context.Context, providers map[string]T) (T, error)
}

// PrioritySelector returns the first provider in Priority that is
// initialized and reports itself available.
type PrioritySelector[T Provider] struct {
	Priority []string
}

func (s *PrioritySelector[T]) Select(ctx context.Context, providers map[string]T) (T, error) {
	for _, name := range s.Priority {
		if p, ok := providers[name]; ok && p.IsAvailable(ctx) {
			return p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("no available provider among %v", s.Priority)
}
