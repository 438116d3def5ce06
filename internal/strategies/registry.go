package strategies

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/potooio/herald/internal/types"
)

// ErrUnknownKind is returned when no strategy is registered for an entity kind.
var ErrUnknownKind = errors.New("no strategy registered for entity kind")

// Registry maps entity kinds to their change-detection and event-resolution strategy.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies map[types.EntityKind]types.Strategy
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[types.EntityKind]types.Strategy),
	}
}

// Register adds a strategy. Returns an error if its kind is already registered.
func (r *Registry) Register(s types.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := s.Kind()
	if kind == "" {
		return fmt.Errorf("strategy has empty kind")
	}
	if _, exists := r.strategies[kind]; exists {
		return fmt.Errorf("strategy for kind %q already registered", kind)
	}
	r.strategies[kind] = s
	return nil
}

// ForKind returns the strategy registered for kind, or nil if none.
func (r *Registry) ForKind(kind types.EntityKind) types.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategies[kind]
}

// Kinds returns all registered kinds in sorted order.
func (r *Registry) Kinds() []types.EntityKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]types.EntityKind, 0, len(r.strategies))
	for k := range r.strategies {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Evaluate runs change detection and event resolution for one update.
// An empty change set yields no events.
func (r *Registry) Evaluate(u types.Update) (types.ChangeSet, []types.NotificationEvent, error) {
	s := r.ForKind(u.Kind)
	if s == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, u.Kind)
	}
	if u.Patch.Kind != "" && u.Patch.Kind != u.Kind {
		return nil, nil, fmt.Errorf("%w: update is %q, patch is %q", types.ErrKindMismatch, u.Kind, u.Patch.Kind)
	}
	if u.After.Entity.Kind != u.Kind {
		return nil, nil, fmt.Errorf("%w: update is %q, snapshot is %q", types.ErrKindMismatch, u.Kind, u.After.Entity.Kind)
	}

	cs, err := s.Detect(u.Before, u.Patch)
	if err != nil {
		return nil, nil, fmt.Errorf("detect %s changes: %w", u.Kind, err)
	}
	if cs.Empty() {
		return cs, nil, nil
	}
	return cs, s.Resolve(cs, u.After), nil
}
