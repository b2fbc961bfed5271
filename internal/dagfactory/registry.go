package dagfactory

import (
	"sync"
)

// Registry is the namespace compiled DAGs are published into for a host
// scheduler to discover.
type Registry struct {
	mu   sync.RWMutex
	dags map[string]*DAG
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{dags: make(map[string]*DAG)}
}

// Generate registers every DAG in set, replacing any previous DAG with the
// same id. It returns the ids whose fingerprint changed or were new.
func (r *Registry) Generate(set *Set) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []string
	for _, id := range set.IDs() {
		dag := set.DAGs[id]
		if prev, ok := r.dags[id]; !ok || prev.Fingerprint != dag.Fingerprint {
			changed = append(changed, id)
		}
		r.dags[id] = dag
	}
	return changed
}

// Clean removes registered DAGs that came from the same source files as set
// but are no longer defined there. It returns the removed ids.
func (r *Registry) Clean(set *Set) []string {
	sources := make(map[string]struct{})
	for _, dag := range set.DAGs {
		sources[dag.Source] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, id := range sortedMapKeys(r.dags) {
		if _, ok := sources[r.dags[id].Source]; !ok {
			continue
		}
		if _, ok := set.DAGs[id]; !ok {
			removed = append(removed, id)
			delete(r.dags, id)
		}
	}
	return removed
}

// Get returns the DAG registered under id.
func (r *Registry) Get(id string) (*DAG, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dag, ok := r.dags[id]
	return dag, ok
}

// IDs returns the registered DAG ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedMapKeys(r.dags)
}

// Len returns the number of registered DAGs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dags)
}
