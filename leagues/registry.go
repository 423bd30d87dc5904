package leagues

import (
	"fmt"
	"sync"
)

// League describes one competition the engine evaluates.
type League struct {
	// Key is the odds-provider sport key (e.g. "soccer_epl").
	Key string
	// Name is the human-readable competition name.
	Name string
	// ProviderID is the fixtures-provider league id.
	ProviderID int
	// TierMultiplier scales the daily-selection quality proxy. Recognized
	// top competitions score above 1.0, minor ones below.
	TierMultiplier float64
	// Premium marks competitions with the best data quality; the
	// confidence scorer awards these a league-quality bonus.
	Premium bool
	// Active controls whether the engine polls this league.
	Active bool
}

// Registry manages known leagues, keyed by odds-provider sport key.
type Registry struct {
	leagues map[string]League
	mu      sync.RWMutex
}

// NewRegistry creates an empty league registry.
func NewRegistry() *Registry {
	return &Registry{leagues: make(map[string]League)}
}

// Register adds a league to the registry.
func (r *Registry) Register(l League) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.leagues[l.Key]; exists {
		return fmt.Errorf("league %s is already registered", l.Key)
	}
	r.leagues[l.Key] = l
	return nil
}

// Get retrieves a league by sport key.
func (r *Registry) Get(key string) (League, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.leagues[key]
	return l, ok
}

// Active returns all active leagues.
func (r *Registry) Active() []League {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]League, 0, len(r.leagues))
	for _, l := range r.leagues {
		if l.Active {
			out = append(out, l)
		}
	}
	return out
}

// Count returns the number of registered leagues.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.leagues)
}

// TierMultiplier returns the quality multiplier for a sport key,
// defaulting to 1.0 for unknown competitions.
func (r *Registry) TierMultiplier(key string) float64 {
	if l, ok := r.Get(key); ok && l.TierMultiplier > 0 {
		return l.TierMultiplier
	}
	return 1.0
}

// ByProviderID looks a league up by its fixtures-provider id.
func (r *Registry) ByProviderID(id int) (League, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.leagues {
		if l.ProviderID == id {
			return l, true
		}
	}
	return League{}, false
}

// IsPremium reports whether a sport key is a recognized top competition.
func (r *Registry) IsPremium(key string) bool {
	l, ok := r.Get(key)
	return ok && l.Premium
}
