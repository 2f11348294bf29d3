package objectprovider

import (
	"strings"

	"github.com/google/uuid"

	"github.com/cachemesh/objprovider/object/objectapi"
)

// Read path. Every getter validates its key first: a malformed key (zero id,
// empty name, nil guid) means "no match possible" and returns the zero value
// without touching cache or store.

func (p *Provider[T]) GetByID(id int64) (T, error) {
	var zero T
	if id <= 0 {
		return zero, nil
	}
	obj, _, err := p.getByIndex(indexID, p.settings.UseIDHashtable, idKey(id),
		p.conds(objectapi.Eq(p.typeInfo.IDColumn, id)), nil)
	if err != nil {
		return zero, err
	}
	return obj, nil
}

// GetByCodeName resolves a code name within the given site and group scope.
// With searchGlobal, a site scoped miss retries in the global scope (site 0)
// before giving up.
func (p *Provider[T]) GetByCodeName(name string, siteID, groupID int64, searchGlobal bool) (T, error) {
	var zero T
	name = strings.TrimSpace(name)
	if name == "" {
		return zero, nil
	}
	obj, found, err := p.getByIndex(indexName, p.settings.UseNameHashtable, nameKey(name, siteID, groupID),
		p.nameConds(name, siteID, groupID), nil)
	if err != nil {
		return zero, err
	}
	if found {
		return obj, nil
	}
	if searchGlobal && siteID != 0 {
		return p.GetByCodeName(name, 0, groupID, false)
	}
	return zero, nil
}

// GetByGUID resolves a guid, optionally scoped by site. When no site is given
// and rows with the same guid exist in both a site and the global scope, the
// site specific row wins (ordered by site id descending).
func (p *Provider[T]) GetByGUID(g uuid.UUID, siteID int64) (T, error) {
	var zero T
	if g == uuid.Nil {
		return zero, nil
	}
	cond := []objectapi.Condition{objectapi.Eq(p.typeInfo.GUIDColumn, g.String())}
	var order []objectapi.Order
	scoped := false
	if p.typeInfo.HasSiteID() {
		if siteID > 0 {
			cond = append(cond, objectapi.Eq(p.typeInfo.SiteIDColumn, siteID))
			scoped = true
		} else {
			order = []objectapi.Order{{Column: p.typeInfo.SiteIDColumn, Desc: true}}
		}
	}
	// the cache key must mirror the query scope: a site scoped lookup reads and
	// writes the site scoped alias, never the unscoped entry
	obj, _, err := p.getByIndex(indexGUID, p.settings.UseGUIDHashtable,
		guidKey(g, siteID, scoped || p.settings.GUIDIncludesSite), p.conds(cond...), order)
	if err != nil {
		return zero, err
	}
	return obj, nil
}

func (p *Provider[T]) GetByFullName(fullName string) (T, error) {
	var zero T
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return zero, nil
	}
	if !p.typeInfo.HasFullName() {
		return zero, nil
	}
	obj, _, err := p.getByIndex(indexFullName, p.settings.UseFullNameHashtable, fullNameKey(fullName),
		p.conds(objectapi.Eq(p.typeInfo.FullNameColumn, fullName)), nil)
	if err != nil {
		return zero, err
	}
	return obj, nil
}

func (p *Provider[T]) nameConds(name string, siteID, groupID int64) []objectapi.Condition {
	cond := []objectapi.Condition{objectapi.Eq(p.typeInfo.CodeNameColumn, name)}
	if p.typeInfo.HasSiteID() {
		cond = append(cond, objectapi.Eq(p.typeInfo.SiteIDColumn, siteID))
	}
	if p.typeInfo.HasGroupID() {
		cond = append(cond, objectapi.Eq(p.typeInfo.GroupIDColumn, groupID))
	}
	return p.conds(cond...)
}

// getByIndex is the shared read flow: cache lookup when the index is enabled,
// single-row store query on miss, read-through registration of the result or a
// negative sentinel.
func (p *Provider[T]) getByIndex(idx dictIndex, indexEnabled bool, key string, cond []objectapi.Condition, order []objectapi.Order) (T, bool, error) {
	var zero T
	objectType := p.typeInfo.ObjectType

	if !indexEnabled {
		row, err := p.store.QueryOne(p.typeInfo, cond, order)
		if err != nil {
			return zero, false, err
		}
		if row == nil {
			return zero, false, nil
		}
		obj, err := p.materialize(row)
		if err != nil {
			return zero, false, err
		}
		return obj, true, nil
	}

	set, err := p.ensureCache()
	if err != nil {
		return zero, false, err
	}
	obj, state := p.dicts.lookup(set, idx, key)
	switch state {
	case LookupHit:
		p.metrics.CacheHit(objectType, idx.String())
		return obj, true, nil
	case LookupNegative:
		p.metrics.NegativeHit(objectType, idx.String())
		return zero, false, nil
	}

	p.metrics.CacheMiss(objectType, idx.String())
	row, err := p.store.QueryOne(p.typeInfo, cond, order)
	if err != nil {
		return zero, false, err
	}
	if row == nil {
		p.dicts.registerEmpty(idx, key)
		return zero, false, nil
	}
	obj, err = p.materialize(row)
	if err != nil {
		return zero, false, err
	}
	p.dicts.register(obj)
	return obj, true, nil
}
