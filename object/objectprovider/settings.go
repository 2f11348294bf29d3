package objectprovider

import (
	"github.com/cachemesh/objprovider/object/objectapi"
)

const defaultWeakEntryLimit = 10000

// HashtableSettings control which in-memory indexes a provider materializes and
// how entries behave. Resolved once per provider; never mutated afterwards.
type HashtableSettings struct {
	UseIDHashtable       bool
	UseNameHashtable     bool
	UseGUIDHashtable     bool
	UseFullNameHashtable bool

	// CacheNegative records "confirmed absent" sentinels for missing keys
	CacheNegative bool
	// UseWeakReferences makes cached entries advisory: each index is a bounded
	// LRU and entries may silently vanish. A vanished entry reads as a miss,
	// never as a negative hit.
	UseWeakReferences bool
	// WeakEntryLimit bounds each index in weak mode. Zero picks the default.
	WeakEntryLimit int

	// LoadAll populates the cache with a full table scan on first access.
	// When false the cache starts empty and fills read-through.
	LoadAll bool

	// GUIDIncludesSite scopes the guid index by site id
	GUIDIncludesSite bool
}

// GlobalFlags are the process-wide feature switches applied on top of the
// per-type defaults.
type GlobalFlags struct {
	// UseHashtables disables all in-memory indexes when false
	UseHashtables bool
	// LoadOnDemand forces read-through filling instead of eager population
	LoadOnDemand bool
}

func DefaultGlobalFlags() GlobalFlags {
	return GlobalFlags{UseHashtables: true}
}

func DefaultHashtableSettings() HashtableSettings {
	return HashtableSettings{
		UseIDHashtable:       true,
		UseNameHashtable:     true,
		UseGUIDHashtable:     true,
		UseFullNameHashtable: true,
		CacheNegative:        true,
		LoadAll:              true,
	}
}

// ResolveHashtableSettings combines caller defaults, global flags and the type
// descriptor. An index is only kept when the descriptor actually carries the
// relevant column.
func ResolveHashtableSettings(def HashtableSettings, flags GlobalFlags, t *objectapi.TypeInfo) HashtableSettings {
	s := def
	if !flags.UseHashtables {
		s.UseIDHashtable = false
		s.UseNameHashtable = false
		s.UseGUIDHashtable = false
		s.UseFullNameHashtable = false
	}
	if flags.LoadOnDemand {
		s.LoadAll = false
	}
	if !t.HasCodeName() {
		s.UseNameHashtable = false
	}
	if !t.HasGUID() {
		s.UseGUIDHashtable = false
	}
	if !t.HasFullName() {
		s.UseFullNameHashtable = false
	}
	if !t.HasSiteID() {
		s.GUIDIncludesSite = false
	}
	if s.UseWeakReferences && s.WeakEntryLimit <= 0 {
		s.WeakEntryLimit = defaultWeakEntryLimit
	}
	return s
}

func (s HashtableSettings) anyIndex() bool {
	return s.UseIDHashtable || s.UseNameHashtable || s.UseGUIDHashtable || s.UseFullNameHashtable
}
