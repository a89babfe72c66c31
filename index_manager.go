package couchboot

import (
	"log"
	"sync"
)

// indexManager provisions the indexes a repository declares before any method
// resolution completes. Provisioning is idempotent within one factory: a spec
// that was created successfully is never submitted again.
type indexManager struct {
	store Store

	mu          sync.Mutex
	provisioned map[string]bool
}

func newIndexManager(store Store) *indexManager {
	return &indexManager{
		store:       store,
		provisioned: make(map[string]bool),
	}
}

// ensureIndexes creates every missing index. A failure on a required index
// aborts construction with IndexProvisioningError; best-effort failures are
// logged and retried on the next repository using the same spec.
func (im *indexManager) ensureIndexes(specs []IndexSpec) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	for _, spec := range specs {
		key := spec.key()
		if im.provisioned[key] {
			continue
		}

		if err := im.store.CreateIndex(spec); err != nil {
			if spec.required() {
				return &IndexProvisioningError{Index: spec.Name, Err: err}
			}
			log.Printf("couchboot: could not create %s index %s: %v", spec.Kind, spec.Name, err)
			continue
		}
		im.provisioned[key] = true
	}
	return nil
}
