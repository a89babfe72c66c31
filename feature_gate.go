package couchboot

import "sync"

// featureGate memoizes the capability probe per store handle for the lifetime
// of one factory. A store that cannot report capabilities is treated as having
// none.
type featureGate struct {
	mu    sync.Mutex
	cache map[Store]FeatureAvailability
}

func newFeatureGate() *featureGate {
	return &featureGate{cache: make(map[Store]FeatureAvailability)}
}

func (g *featureGate) availability(store Store) FeatureAvailability {
	g.mu.Lock()
	defer g.mu.Unlock()

	if features, ok := g.cache[store]; ok {
		return features
	}

	features, err := store.Capabilities()
	if err != nil {
		features = FeatureAvailability{}
	}
	g.cache[store] = features
	return features
}

func (g *featureGate) isN1QLAvailable(store Store) bool {
	return g.availability(store).N1QL
}
