package couchboot

import (
	"fmt"
	"reflect"
	"sync"
)

// RepositoryFactory builds repositories bound to one store handle. Capability
// probing and index provisioning are shared and memoized across the
// repositories one factory creates.
type RepositoryFactory struct {
	store       Store
	converter   Converter
	consistency ScanConsistency
	gate        *featureGate
	indexes     *indexManager

	mu           sync.RWMutex
	namedQueries map[string]string
}

func NewRepositoryFactory(store Store) *RepositoryFactory {
	return &RepositoryFactory{
		store:        store,
		converter:    JSONConverter{},
		consistency:  ConsistencyStrong,
		gate:         newFeatureGate(),
		indexes:      newIndexManager(store),
		namedQueries: make(map[string]string),
	}
}

func (f *RepositoryFactory) WithConverter(converter Converter) *RepositoryFactory {
	f.converter = converter
	return f
}

func (f *RepositoryFactory) WithConsistency(consistency ScanConsistency) *RepositoryFactory {
	f.consistency = consistency
	return f
}

// RegisterNamedQuery stores a query template under a symbolic key. Methods
// with a bare query marker resolve against this registry.
func (f *RepositoryFactory) RegisterNamedQuery(name, statement string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namedQueries[name] = statement
}

func (f *RepositoryFactory) namedQuerySnapshot() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snapshot := make(map[string]string, len(f.namedQueries))
	for k, v := range f.namedQueries {
		snapshot[k] = v
	}
	return snapshot
}

// RepositoryConfig describes one repository interface: its declared query
// methods, index requirements, paging support, and consistency override.
type RepositoryConfig struct {
	// DesignDocument backing the default operations; defaults to the
	// collection name. The view named "all" must emit every document key.
	DesignDocument string
	Paging         bool
	Consistency    *ScanConsistency
	Indexes        []IndexSpec
	Methods        []QueryMethod
}

// NewRepository constructs a repository for T: the feature gate is consulted,
// required indexes are provisioned, entity metadata is resolved, and every
// declared method is classified into its execution strategy. All failures
// happen here, never at first invocation.
func NewRepository[T Document](f *RepositoryFactory, cfg RepositoryConfig) (*Repository[T], error) {
	var doc T
	collection := collectionNameOf(doc)

	features := f.gate.availability(f.store)
	if needsAdvancedQueries(cfg.Paging, cfg.Indexes, cfg.Methods) && !features.N1QL {
		return nil, &UnsupportedFeatureError{
			Capability: "N1QL",
			Detail:     fmt.Sprintf("repository for %s requires the declarative query backend", collection),
		}
	}

	if err := f.indexes.ensureIndexes(cfg.Indexes); err != nil {
		return nil, err
	}

	meta, err := resolveEntityMetadata(reflect.TypeOf(doc), collection)
	if err != nil {
		return nil, err
	}

	consistency := f.consistency
	if cfg.Consistency != nil {
		consistency = *cfg.Consistency
	}

	namedQueries := f.namedQuerySnapshot()
	methods := make(map[string]*methodDescriptor, len(cfg.Methods))
	for _, m := range cfg.Methods {
		if _, exists := methods[m.Name]; exists {
			return nil, &QueryClassificationError{Method: m.Name, Reason: "declared twice"}
		}
		d, err := classifyMethod(m, meta, f.store.Keyspace(), namedQueries, consistency)
		if err != nil {
			return nil, err
		}
		methods[m.Name] = d
	}

	designDocument := cfg.DesignDocument
	if designDocument == "" {
		designDocument = collection
	}

	return &Repository[T]{
		store:          f.store,
		converter:      f.converter,
		meta:           meta,
		features:       features,
		consistency:    consistency,
		designDocument: designDocument,
		allView:        "all",
		methods:        methods,
	}, nil
}
