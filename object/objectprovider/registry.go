package objectprovider

import (
	"sync"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/object/objectapi"
)

// AnyProvider is the type-erased provider surface the registry and the farm
// task receiver work against.
type AnyProvider interface {
	ObjectType() string
	TypeInfo() *objectapi.TypeInfo
	// ClearCache drops the whole per-type cache. logTasks additionally
	// broadcasts the invalidation to other farm nodes.
	ClearCache(logTasks bool)
	// ApplyFarmTask replays an inbound cross node task against the local cache
	ApplyFarmTask(task component.FarmTask) error
	// Invalidate marks the instance dead after a registry swap; subsequent
	// writes fail
	Invalidate()
}

// Registry maps object type names to their provider singletons. Explicit and
// injectable; create one per process at startup and pass it where needed.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]AnyProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]AnyProvider{}}
}

// Register is an idempotent upsert. Registering an empty object type is a
// no-op.
func (r *Registry) Register(p AnyProvider) {
	if p == nil {
		return
	}
	key := objectapi.NormalizeObjectType(p.ObjectType())
	if key == "" {
		return
	}
	r.mu.Lock()
	r.providers[key] = p
	r.mu.Unlock()
}

// Get returns the registered provider or nil. Never creates, never fails.
func (r *Registry) Get(objectType string) AnyProvider {
	key := objectapi.NormalizeObjectType(objectType)
	if key == "" {
		return nil
	}
	r.mu.RLock()
	p := r.providers[key]
	r.mu.RUnlock()
	return p
}

// Swap replaces the provider for next.ObjectType(), invalidating and returning
// the outgoing instance. Used by tests and custom provider overrides.
func (r *Registry) Swap(next AnyProvider) AnyProvider {
	if next == nil {
		return nil
	}
	key := objectapi.NormalizeObjectType(next.ObjectType())
	if key == "" {
		return nil
	}
	r.mu.Lock()
	old := r.providers[key]
	r.providers[key] = next
	r.mu.Unlock()
	if old != nil {
		old.Invalidate()
	}
	return old
}

// ClearHashtables is the inbound invalidation entry point: clear the local
// cache of one object type. Unknown types are ignored so nodes running older
// type sets stay compatible.
func (r *Registry) ClearHashtables(objectType string, logTasks bool) {
	if p := r.Get(objectType); p != nil {
		p.ClearCache(logTasks)
	}
}

// ApplyTask dispatches an inbound farm task to the owning provider.
func (r *Registry) ApplyTask(task component.FarmTask) error {
	p := r.Get(task.ObjectType)
	if p == nil {
		return nil
	}
	return p.ApplyFarmTask(task)
}

var _ component.FarmTaskSink = new(Registry)
