package region

import "sync"

// Registry is the process-wide, reference-counted map of live regions
// that replaces the original Server::GetInstance()->GetStoreMetaManager()
// singleton lookup (Design Notes §9): callers that need many regions
// hold an explicit *Registry value; background tasks hold a WeakHandle
// and resolve it before use, dropping work silently if the region was
// removed in the meantime.
type Registry struct {
	mu      sync.Mutex
	regions map[uint64]*entry
}

type entry struct {
	region *Region
	refs   int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{regions: make(map[uint64]*entry)}
}

// Put registers r, replacing any prior region with the same id.
func (reg *Registry) Put(r *Region) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.regions[r.ID()] = &entry{region: r}
}

// Get returns the region for id and increments its reference count;
// callers must call Release when done holding the strong reference.
func (reg *Registry) Get(id uint64) (*Region, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	e, ok := reg.regions[id]
	if !ok {
		return nil, false
	}
	e.refs++
	return e.region, true
}

// Release decrements the reference count acquired by Get. It does not
// evict the region at zero (eviction is explicit via Remove) — refs
// here only track outstanding borrowers for diagnostics and orderly
// shutdown, not lifetime.
func (reg *Registry) Release(id uint64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if e, ok := reg.regions[id]; ok && e.refs > 0 {
		e.refs--
	}
}

// Remove evicts a region from the registry, e.g. once it reaches
// TOMBSTONE. Returns false if the region was not present.
func (reg *Registry) Remove(id uint64) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.regions[id]; !ok {
		return false
	}
	delete(reg.regions, id)
	return true
}

// WeakHandle refers to a region by id only, without keeping it alive.
// Background tasks (the raft snapshot worker, the split checker)
// should hold a WeakHandle and call Upgrade immediately before use.
type WeakHandle struct {
	ID uint64
}

// Upgrade resolves the weak handle against reg, returning the live
// region or false if it is gone. Callers that get false must drop the
// pending work silently, per Design Notes §9.
func (w WeakHandle) Upgrade(reg *Registry) (*Region, bool) {
	return reg.Get(w.ID)
}
