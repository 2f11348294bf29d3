package objectprovider

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cachemesh/objprovider/object/objectapi"
)

// LookupState is the tri-state outcome of a cache lookup.
type LookupState int

const (
	// LookupMiss means the cache holds nothing for the key and the store must be
	// queried
	LookupMiss LookupState = iota
	// LookupHit means a materialized object was found
	LookupHit
	// LookupNegative means the key was previously confirmed absent
	LookupNegative
)

type dictIndex int

const (
	indexID dictIndex = iota
	indexName
	indexGUID
	indexFullName
)

func (i dictIndex) String() string {
	switch i {
	case indexID:
		return "id"
	case indexName:
		return "codename"
	case indexGUID:
		return "guid"
	case indexFullName:
		return "fullname"
	default:
		return "unknown"
	}
}

type dictEntry[T any] struct {
	value    T
	negative bool
}

// kvdict is one keyed index. Plain map plus RWMutex, or a bounded LRU in weak
// mode where entries may be evicted at any time.
type kvdict[T any] struct {
	mu  sync.RWMutex
	m   map[string]dictEntry[T]
	lru *lru.Cache[string, dictEntry[T]]
}

func newKvdict[T any](weakLimit int) *kvdict[T] {
	if weakLimit > 0 {
		c, err := lru.New[string, dictEntry[T]](weakLimit)
		if err == nil {
			return &kvdict[T]{lru: c}
		}
		// invalid limit, fall back to the unbounded map
	}
	return &kvdict[T]{m: map[string]dictEntry[T]{}}
}

func (d *kvdict[T]) get(key string) (dictEntry[T], bool) {
	if d.lru != nil {
		return d.lru.Get(key)
	}
	d.mu.RLock()
	e, ok := d.m[key]
	d.mu.RUnlock()
	return e, ok
}

func (d *kvdict[T]) put(key string, e dictEntry[T]) {
	if d.lru != nil {
		d.lru.Add(key, e)
		return
	}
	d.mu.Lock()
	d.m[key] = e
	d.mu.Unlock()
}

func (d *kvdict[T]) del(key string) {
	if d.lru != nil {
		d.lru.Remove(key)
		return
	}
	d.mu.Lock()
	delete(d.m, key)
	d.mu.Unlock()
}

// dictSet is one loaded cache generation: the enabled indexes of one object
// type, kept mutually consistent by the registration code below.
type dictSet[T objectapi.Info] struct {
	byID       *kvdict[T]
	byName     *kvdict[T]
	byGUID     *kvdict[T]
	byFullName *kvdict[T]
}

func newDictSet[T objectapi.Info](s HashtableSettings) *dictSet[T] {
	limit := 0
	if s.UseWeakReferences {
		limit = s.WeakEntryLimit
	}
	set := &dictSet[T]{}
	if s.UseIDHashtable {
		set.byID = newKvdict[T](limit)
	}
	if s.UseNameHashtable {
		set.byName = newKvdict[T](limit)
	}
	if s.UseGUIDHashtable {
		set.byGUID = newKvdict[T](limit)
	}
	if s.UseFullNameHashtable {
		set.byFullName = newKvdict[T](limit)
	}
	return set
}

func (s *dictSet[T]) dict(idx dictIndex) *kvdict[T] {
	switch idx {
	case indexID:
		return s.byID
	case indexName:
		return s.byName
	case indexGUID:
		return s.byGUID
	case indexFullName:
		return s.byFullName
	default:
		return nil
	}
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func nameKey(name string, siteID, groupID int64) string {
	return strings.ToLower(name) + "|" + strconv.FormatInt(siteID, 10) + "|" + strconv.FormatInt(groupID, 10)
}

func guidKey(g uuid.UUID, siteID int64, includeSite bool) string {
	if !includeSite {
		return g.String()
	}
	return g.String() + "|" + strconv.FormatInt(siteID, 10)
}

// guidKeys returns every guid index key an object lives under. A site carrying
// type always gets the site scoped alias in addition to its configured key, so
// site scoped lookups stay isolated per site and never share entries (or
// negative sentinels) with other scopes.
func (d *dictionaries[T]) guidKeys(g uuid.UUID, siteID int64) []string {
	keys := []string{guidKey(g, siteID, d.settings.GUIDIncludesSite)}
	if !d.settings.GUIDIncludesSite && d.typeInfo.HasSiteID() {
		keys = append(keys, guidKey(g, siteID, true))
	}
	return keys
}

func fullNameKey(name string) string {
	return strings.ToLower(name)
}

// dictionaries owns the cache generations of one object type.
//
// State machine: unloaded (nil pointer) -> loaded (published dictSet). The
// per-type mutex plus the double check below guarantee exactly one physical
// population per generation; a failed load leaves the pointer nil for retry.
// clear() drops the pointer and starts a new generation.
type dictionaries[T objectapi.Info] struct {
	typeInfo *objectapi.TypeInfo
	settings HashtableSettings

	mu  sync.Mutex
	cur atomic.Pointer[dictSet[T]]
}

func newDictionaries[T objectapi.Info](t *objectapi.TypeInfo, s HashtableSettings) *dictionaries[T] {
	return &dictionaries[T]{typeInfo: t, settings: s}
}

// ensure returns the current generation, populating it first if needed. The
// bool result reports whether this call performed the population. A partially
// built generation is never published: the pointer is stored only after every
// row registered successfully.
func (d *dictionaries[T]) ensure(load func() ([]T, error)) (*dictSet[T], bool, error) {
	if s := d.cur.Load(); s != nil {
		return s, false, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if s := d.cur.Load(); s != nil {
		return s, false, nil
	}
	set := newDictSet[T](d.settings)
	if d.settings.LoadAll && load != nil {
		items, err := load()
		if err != nil {
			return nil, false, err
		}
		for _, obj := range items {
			d.registerInto(set, obj)
		}
	}
	d.cur.Store(set)
	return set, d.settings.LoadAll, nil
}

// loaded returns the current generation without triggering population.
func (d *dictionaries[T]) loaded() *dictSet[T] {
	return d.cur.Load()
}

// clear drops the whole generation. Returns whether a generation existed.
func (d *dictionaries[T]) clear() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	had := d.cur.Load() != nil
	d.cur.Store(nil)
	return had
}

func (d *dictionaries[T]) lookup(set *dictSet[T], idx dictIndex, key string) (T, LookupState) {
	var zero T
	dict := set.dict(idx)
	if dict == nil {
		return zero, LookupMiss
	}
	e, ok := dict.get(key)
	if !ok {
		return zero, LookupMiss
	}
	if e.negative {
		return zero, LookupNegative
	}
	return e.value, LookupHit
}

// register inserts obj into every enabled index of the current generation by
// its own key values. A no-op while unloaded.
func (d *dictionaries[T]) register(obj T) {
	if set := d.cur.Load(); set != nil {
		d.registerInto(set, obj)
	}
}

func (d *dictionaries[T]) registerInto(set *dictSet[T], obj T) {
	// drop stale secondary entries when a unique key value changed since the
	// previous registration of the same id
	if set.byID != nil {
		if old, ok := set.byID.get(idKey(obj.ObjectID())); ok && !old.negative {
			d.removeSecondary(set, old.value, obj)
		}
	}
	e := dictEntry[T]{value: obj}
	if set.byID != nil {
		set.byID.put(idKey(obj.ObjectID()), e)
	}
	if set.byName != nil && obj.ObjectCodeName() != "" {
		set.byName.put(nameKey(obj.ObjectCodeName(), obj.ObjectSiteID(), obj.ObjectGroupID()), e)
	}
	if set.byGUID != nil && obj.ObjectGUID() != uuid.Nil {
		for _, k := range d.guidKeys(obj.ObjectGUID(), obj.ObjectSiteID()) {
			set.byGUID.put(k, e)
		}
	}
	if set.byFullName != nil && obj.ObjectFullName() != "" {
		set.byFullName.put(fullNameKey(obj.ObjectFullName()), e)
	}
}

func (d *dictionaries[T]) removeSecondary(set *dictSet[T], old, next T) {
	if set.byName != nil && old.ObjectCodeName() != "" {
		oldKey := nameKey(old.ObjectCodeName(), old.ObjectSiteID(), old.ObjectGroupID())
		if oldKey != nameKey(next.ObjectCodeName(), next.ObjectSiteID(), next.ObjectGroupID()) {
			set.byName.del(oldKey)
		}
	}
	if set.byGUID != nil && old.ObjectGUID() != uuid.Nil {
		var nextKeys []string
		if next.ObjectGUID() != uuid.Nil {
			nextKeys = d.guidKeys(next.ObjectGUID(), next.ObjectSiteID())
		}
		for _, oldKey := range d.guidKeys(old.ObjectGUID(), old.ObjectSiteID()) {
			if !slices.Contains(nextKeys, oldKey) {
				set.byGUID.del(oldKey)
			}
		}
	}
	if set.byFullName != nil && old.ObjectFullName() != "" {
		oldKey := fullNameKey(old.ObjectFullName())
		if oldKey != fullNameKey(next.ObjectFullName()) {
			set.byFullName.del(oldKey)
		}
	}
}

// registerEmpty records a negative sentinel for one index key. Only effective
// when negative caching is enabled and the generation is loaded.
func (d *dictionaries[T]) registerEmpty(idx dictIndex, key string) {
	if !d.settings.CacheNegative {
		return
	}
	set := d.cur.Load()
	if set == nil {
		return
	}
	dict := set.dict(idx)
	if dict == nil {
		return
	}
	dict.put(key, dictEntry[T]{negative: true})
}

// removeKey drops a single index entry, e.g. the original code name of a
// renamed object.
func (d *dictionaries[T]) removeKey(idx dictIndex, key string) {
	set := d.cur.Load()
	if set == nil {
		return
	}
	if dict := set.dict(idx); dict != nil {
		dict.del(key)
	}
}

// remove drops obj from every enabled index by its current key values.
func (d *dictionaries[T]) remove(obj T) {
	set := d.cur.Load()
	if set == nil {
		return
	}
	if set.byID != nil {
		set.byID.del(idKey(obj.ObjectID()))
	}
	if set.byName != nil && obj.ObjectCodeName() != "" {
		set.byName.del(nameKey(obj.ObjectCodeName(), obj.ObjectSiteID(), obj.ObjectGroupID()))
	}
	if set.byGUID != nil && obj.ObjectGUID() != uuid.Nil {
		for _, k := range d.guidKeys(obj.ObjectGUID(), obj.ObjectSiteID()) {
			set.byGUID.del(k)
		}
	}
	if set.byFullName != nil && obj.ObjectFullName() != "" {
		set.byFullName.del(fullNameKey(obj.ObjectFullName()))
	}
}
