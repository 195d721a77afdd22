package service

import (
	"slices"
	"sync"
)

// Registry is the set of active job identifiers. Presence means the job is
// still wanted by its caller, removal is how cancellation is signaled.
//
// Every entry carries a channel closed on removal, so a running job observes
// cancellation without polling. The lock is held for the map operation only.
type Registry struct {
	mx   sync.Mutex
	jobs map[string]chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]chan struct{}),
	}
}

// Register inserts id. It is idempotent: registering an active id returns the
// channel of the existing entry and added is false. The returned channel is
// closed once id is unregistered.
func (r *Registry) Register(id string) (gone <-chan struct{}, added bool) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if ch, ok := r.jobs[id]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	r.jobs[id] = ch
	return ch, true
}

func (r *Registry) IsActive(id string) bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	_, ok := r.jobs[id]
	return ok
}

// Unregister removes id and reports whether this call removed it. Unknown
// ids are a no-op.
func (r *Registry) Unregister(id string) bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	ch, ok := r.jobs[id]
	if !ok {
		return false
	}
	delete(r.jobs, id)
	close(ch)
	return true
}

func (r *Registry) Len() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.jobs)
}

// List returns sorted snapshot of active ids.
func (r *Registry) List() []string {
	r.mx.Lock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	r.mx.Unlock()
	slices.Sort(ids)
	return ids
}
