package objectprovider

import (
	"errors"
	"fmt"
	"log"
	"reflect"
	"strconv"
	"sync/atomic"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/object/objectapi"
)

var (
	ErrNilTypeInfo = errors.New("type info is required")
	ErrNilStore    = errors.New("object store is required")
	ErrNilNewFunc  = errors.New("object factory is required")
)

// QueryStrategy is the query construction extension point. Decorate receives
// the key conditions of a provider query and may append type specific terms.
type QueryStrategy interface {
	Decorate(t *objectapi.TypeInfo, cond []objectapi.Condition) []objectapi.Condition
}

type passthroughQuery struct{}

func (passthroughQuery) Decorate(_ *objectapi.TypeInfo, cond []objectapi.Condition) []objectapi.Condition {
	return cond
}

// DependencyToucher receives dependency cache keys touched by writes, so
// dependent cached views elsewhere in the application can be invalidated.
type DependencyToucher interface {
	Touch(keys ...string)
}

// ProviderOptions configure one provider instance.
type ProviderOptions[T objectapi.Info] struct {
	Store component.ObjectStore
	// New constructs an empty object ready for LoadColumns
	New func() T

	Settings HashtableSettings
	Flags    *GlobalFlags

	Farm    component.FarmNotifier
	Metrics CacheMetrics
	Query   QueryStrategy
	Toucher DependencyToucher
}

// Provider is the generic mediator for one object type: it resolves cache hits
// and misses, falls back to single-row store queries, performs validated CRUD
// and keeps the per-type cache and the rest of the farm consistent.
type Provider[T objectapi.Info] struct {
	typeInfo *objectapi.TypeInfo
	store    component.ObjectStore
	settings HashtableSettings
	dicts    *dictionaries[T]
	newFn    func() T
	query    QueryStrategy
	farm     component.FarmNotifier
	metrics  CacheMetrics
	toucher  DependencyToucher

	invalidated atomic.Bool
}

func NewProvider[T objectapi.Info](t *objectapi.TypeInfo, opt ProviderOptions[T]) (*Provider[T], error) {
	if t == nil {
		return nil, ErrNilTypeInfo
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("register %q: %w", t.ObjectType, err)
	}
	if opt.Store == nil {
		return nil, ErrNilStore
	}
	if opt.New == nil {
		return nil, ErrNilNewFunc
	}
	flags := DefaultGlobalFlags()
	if opt.Flags != nil {
		flags = *opt.Flags
	}
	base := opt.Settings
	if base == (HashtableSettings{}) {
		base = DefaultHashtableSettings()
	}
	settings := ResolveHashtableSettings(base, flags, t)
	metrics := opt.Metrics
	if metrics == nil {
		metrics = NopMetrics
	}
	query := opt.Query
	if query == nil {
		query = passthroughQuery{}
	}
	return &Provider[T]{
		typeInfo: t,
		store:    opt.Store,
		settings: settings,
		dicts:    newDictionaries[T](t, settings),
		newFn:    opt.New,
		query:    query,
		farm:     opt.Farm,
		metrics:  metrics,
		toucher:  opt.Toucher,
	}, nil
}

func (p *Provider[T]) ObjectType() string {
	return p.typeInfo.ObjectType
}

func (p *Provider[T]) TypeInfo() *objectapi.TypeInfo {
	return p.typeInfo
}

func (p *Provider[T]) Settings() HashtableSettings {
	return p.settings
}

// Invalidate marks this instance dead after a registry swap.
func (p *Provider[T]) Invalidate() {
	p.invalidated.Store(true)
	p.dicts.clear()
}

// ClearCache drops the whole per-type cache, starting a new generation. With
// logTasks the invalidation is broadcast to the other farm nodes.
func (p *Provider[T]) ClearCache(logTasks bool) {
	p.dicts.clear()
	p.metrics.CacheClear(p.typeInfo.ObjectType)
	if logTasks {
		p.notifyFarm(component.FarmTaskClearCache, 0)
	}
}

// RegisterObject fills obj into the loaded cache generation. Pure read-through
// fill: no cross node propagation is implied.
func (p *Provider[T]) RegisterObject(obj T) {
	if isNilInfo(obj) {
		return
	}
	p.dicts.register(obj)
}

// UpdateObject registers obj like RegisterObject and additionally propagates
// the change to the other farm nodes.
func (p *Provider[T]) UpdateObject(obj T) {
	if isNilInfo(obj) {
		return
	}
	p.dicts.register(obj)
	p.notifyFarm(component.FarmTaskUpdateObject, obj.ObjectID())
}

// ApplyFarmTask replays one inbound cross node task against the local cache.
// Unknown task kinds fail hard; silently dropping them would hide divergence.
func (p *Provider[T]) ApplyFarmTask(task component.FarmTask) error {
	switch task.Type {
	case component.FarmTaskClearCache:
		p.ClearCache(false)
		return nil
	case component.FarmTaskUpdateObject:
		return p.refreshCachedObject(task.ObjectID)
	case component.FarmTaskDeleteObject:
		p.dropCachedObject(task.ObjectID)
		return nil
	default:
		return fmt.Errorf("%w: farm task kind %q for %s", objectapi.ErrUnsupportedOperation, task.Type, p.typeInfo.ObjectType)
	}
}

// refreshCachedObject re-fetches one row and replaces its cache entries. A
// missing row means the object disappeared on the originating node.
func (p *Provider[T]) refreshCachedObject(id int64) error {
	if p.dicts.loaded() == nil {
		// nothing cached locally, next read goes to the store anyway
		return nil
	}
	row, err := p.store.QueryOne(p.typeInfo, p.conds(objectapi.Eq(p.typeInfo.IDColumn, id)), nil)
	if err != nil {
		return err
	}
	if row == nil {
		p.dropCachedObject(id)
		return nil
	}
	obj, err := p.materialize(row)
	if err != nil {
		return err
	}
	p.dicts.register(obj)
	return nil
}

func (p *Provider[T]) dropCachedObject(id int64) {
	set := p.dicts.loaded()
	if set == nil {
		return
	}
	if obj, state := p.dicts.lookup(set, indexID, idKey(id)); state == LookupHit {
		p.dicts.remove(obj)
		return
	}
	p.dicts.removeKey(indexID, idKey(id))
}

func (p *Provider[T]) ensureCache() (*dictSet[T], error) {
	set, loadedNow, err := p.dicts.ensure(p.loadAllRows)
	if err != nil {
		return nil, err
	}
	if loadedNow {
		p.metrics.CacheLoad(p.typeInfo.ObjectType)
	}
	return set, nil
}

func (p *Provider[T]) loadAllRows() ([]T, error) {
	rows, err := p.store.QueryAll(p.typeInfo)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		obj, err := p.materialize(row)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (p *Provider[T]) materialize(row map[string]any) (T, error) {
	obj := p.newFn()
	if err := obj.LoadColumns(row); err != nil {
		var zero T
		return zero, fmt.Errorf("materialize %s: %w", p.typeInfo.ObjectType, err)
	}
	return obj, nil
}

func (p *Provider[T]) conds(cond ...objectapi.Condition) []objectapi.Condition {
	return p.query.Decorate(p.typeInfo, cond)
}

func (p *Provider[T]) notifyFarm(tt component.FarmTaskType, objectID int64) {
	if p.farm == nil {
		return
	}
	if err := p.farm.NotifyTask(tt, p.typeInfo.ObjectType, objectID); err != nil {
		// best effort broadcast, the local state is already consistent
		log.Println("[ERROR] farm notify failed:", p.typeInfo.ObjectType, err)
	}
}

func (p *Provider[T]) touchDependencies(obj T) {
	if p.toucher == nil || !p.typeInfo.TouchCacheDependencies {
		return
	}
	keys := make([]string, 0, len(p.typeInfo.CacheDependencies)+2)
	keys = append(keys, p.typeInfo.CacheDependencies...)
	keys = append(keys, p.typeInfo.ObjectType+"|byid|"+strconv.FormatInt(obj.ObjectID(), 10))
	if obj.ObjectCodeName() != "" {
		keys = append(keys, p.typeInfo.ObjectType+"|byname|"+obj.ObjectCodeName())
	}
	p.toucher.Touch(keys...)
}

func isNilInfo(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map:
		return rv.IsNil()
	default:
		return false
	}
}

var _ AnyProvider = (*Provider[objectapi.Info])(nil)
