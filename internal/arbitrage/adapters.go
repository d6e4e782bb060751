// internal/arbitrage/adapters.go
package arbitrage

import (
	"fmt"
	"sort"
	"sync"
)

// AdapterSet holds exactly one ExchangeAdapter per venue.
type AdapterSet struct {
	mu       sync.RWMutex
	adapters map[Venue]ExchangeAdapter
}

// NewAdapterSet registers the given adapters; a duplicate venue is an error.
func NewAdapterSet(adapters ...ExchangeAdapter) (*AdapterSet, error) {
	s := &AdapterSet{adapters: make(map[Venue]ExchangeAdapter, len(adapters))}
	for _, a := range adapters {
		if err := s.Register(a); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds an adapter for its venue.
func (s *AdapterSet) Register(a ExchangeAdapter) error {
	if a == nil {
		return fmt.Errorf("adapter cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adapters == nil {
		s.adapters = make(map[Venue]ExchangeAdapter)
	}
	v := a.Venue()
	if _, exists := s.adapters[v]; exists {
		return fmt.Errorf("adapter for venue %s already registered", v)
	}
	s.adapters[v] = a
	return nil
}

// Lookup returns the adapter registered for v.
func (s *AdapterSet) Lookup(v Venue) (ExchangeAdapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[v]
	return a, ok
}

// Venues returns the registered venues in name order.
func (s *AdapterSet) Venues() []Venue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Venue, 0, len(s.adapters))
	for v := range s.adapters {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
