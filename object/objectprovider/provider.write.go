package objectprovider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/object/objectapi"
	"github.com/cachemesh/objprovider/utility/codename"
)

// Set persists obj: update when it carries a positive id, otherwise upsert or
// insert depending on the type. Code name validation and the uniqueness check
// run inside one store transaction with the write, so two writers racing for
// the same name are resolved by the store and the loser fails with
// ErrCodeNameNotUnique.
func (p *Provider[T]) Set(obj T) error {
	if isNilInfo(obj) {
		return objectapi.ErrNilInfo
	}
	if err := p.checkWritable(obj); err != nil {
		return err
	}
	t := p.typeInfo
	if t.HasGUID() && obj.ObjectGUID() == uuid.Nil {
		obj.SetObjectGUID(uuid.New())
	}

	// binding rows have composite identity and no code name to validate
	if t.IsBinding {
		if err := p.store.InTransaction(func(tx component.ObjectStore) error {
			return p.persistRow(tx, obj)
		}); err != nil {
			return err
		}
		p.UpdateObject(obj)
		p.touchDependencies(obj)
		return nil
	}

	// normalize once on the object, so the persisted row, the uniqueness check
	// and the cache key all agree on the same value
	name := strings.TrimSpace(obj.ObjectCodeName())
	if t.HasCodeName() && name != obj.ObjectCodeName() {
		obj.SetObjectCodeName(name)
	}
	if t.HasCodeName() && t.ValidateCodeName && !codename.IsValid(name) {
		return fmt.Errorf("%w: %q (%s)", objectapi.ErrInvalidCodeName, name, t.ObjectType)
	}

	var oldName string
	var renamed bool
	err := p.store.InTransaction(func(tx component.ObjectStore) error {
		id := obj.ObjectID()
		if id > 0 && t.HasCodeName() {
			cur, err := tx.QueryOne(t, p.conds(objectapi.Eq(t.IDColumn, id)), nil)
			if err != nil {
				return err
			}
			if cur != nil {
				oldName = objectapi.StringColumn(cur, t.CodeNameColumn)
				renamed = !strings.EqualFold(oldName, name)
			}
		}
		if t.HasCodeName() && t.CheckCodeNameUnique && (id == 0 || renamed) {
			cond := []objectapi.Condition{objectapi.Eq(t.CodeNameColumn, name)}
			if t.HasSiteID() {
				cond = append(cond, objectapi.Eq(t.SiteIDColumn, obj.ObjectSiteID()))
			}
			if t.HasGroupID() {
				cond = append(cond, objectapi.Eq(t.GroupIDColumn, obj.ObjectGroupID()))
			}
			if id > 0 {
				cond = append(cond, objectapi.Neq(t.IDColumn, id))
			}
			n, err := tx.Count(t, p.conds(cond...))
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %q (%s)", objectapi.ErrCodeNameNotUnique, name, t.ObjectType)
			}
		}
		return p.persistRow(tx, obj)
	})
	if err != nil {
		return err
	}

	// the original name mapping must go before the new one is published,
	// otherwise a stale name->object entry survives the rename
	if renamed && oldName != "" {
		p.dicts.removeKey(indexName, nameKey(oldName, obj.ObjectSiteID(), obj.ObjectGroupID()))
	}
	p.UpdateObject(obj)
	p.touchDependencies(obj)
	return nil
}

// Delete removes obj from the store and the cache. Nil objects are a no-op. A
// binding row without an assigned surrogate id is resolved by its composite
// values first.
func (p *Provider[T]) Delete(obj T) error {
	if isNilInfo(obj) {
		return nil
	}
	if err := p.checkWritable(obj); err != nil {
		return err
	}
	t := p.typeInfo
	if obj.ObjectID() <= 0 {
		if !t.IsBinding {
			// never persisted, nothing to delete
			return nil
		}
		row, err := p.store.QueryOne(t, p.bindingConds(obj), nil)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		obj.SetObjectID(objectapi.Int64Column(row, t.IDColumn))
	}
	if err := p.store.InTransaction(func(tx component.ObjectStore) error {
		return tx.DeleteByID(t, obj.ObjectID())
	}); err != nil {
		return err
	}
	p.dicts.remove(obj)
	p.notifyFarm(component.FarmTaskDeleteObject, obj.ObjectID())
	p.touchDependencies(obj)
	return nil
}

// BulkDelete issues one set-based delete for all rows matching cond, after an
// optional dependency removal pass. The per-type cache cannot know which rows
// the statement touched, so it is cleared wholesale and the clear broadcast.
func (p *Provider[T]) BulkDelete(cond []objectapi.Condition, deps func(tx component.ObjectStore) error) (int64, error) {
	if p.invalidated.Load() {
		return 0, objectapi.ErrProviderInvalidated
	}
	var affected int64
	err := p.store.InTransaction(func(tx component.ObjectStore) error {
		if deps != nil {
			if err := deps(tx); err != nil {
				return err
			}
		}
		n, err := tx.DeleteWhere(p.typeInfo, cond)
		affected = n
		return err
	})
	if err != nil {
		return 0, err
	}
	p.ClearCache(true)
	return affected, nil
}

// BulkInsert transfers objs to the store in one operation, bypassing per-row
// validation. Callers own any pre-validation. The cache is cleared afterwards.
func (p *Provider[T]) BulkInsert(objs []T) error {
	if p.invalidated.Load() {
		return objectapi.ErrProviderInvalidated
	}
	rows := make([]map[string]any, 0, len(objs))
	for _, obj := range objs {
		if isNilInfo(obj) {
			return objectapi.ErrNilInfo
		}
		if obj.TypeInfo() != p.typeInfo {
			return fmt.Errorf("%w: %s into %s", objectapi.ErrProviderMismatch, obj.TypeInfo().ObjectType, p.typeInfo.ObjectType)
		}
		values := obj.ColumnValues()
		if obj.ObjectID() <= 0 {
			delete(values, p.typeInfo.IDColumn)
		}
		rows = append(rows, values)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := p.store.BulkInsert(p.typeInfo, rows); err != nil {
		return err
	}
	p.ClearCache(true)
	return nil
}

// EnsureUniqueCodeName mutates nothing: it returns the first free variant of
// base within the given scope, probing the provider itself.
func (p *Provider[T]) EnsureUniqueCodeName(base string, siteID, groupID int64) (string, error) {
	var probeErr error
	result := codename.Unique(base, func(name string) bool {
		obj, err := p.GetByCodeName(name, siteID, groupID, false)
		if err != nil {
			probeErr = err
			return false
		}
		return !isNilInfo(obj)
	})
	return result, probeErr
}

func (p *Provider[T]) checkWritable(obj T) error {
	if p.invalidated.Load() {
		return objectapi.ErrProviderInvalidated
	}
	if obj.TypeInfo() != p.typeInfo {
		return fmt.Errorf("%w: %s handled by %s provider", objectapi.ErrProviderMismatch, obj.TypeInfo().ObjectType, p.typeInfo.ObjectType)
	}
	return nil
}

func (p *Provider[T]) persistRow(tx component.ObjectStore, obj T) error {
	t := p.typeInfo
	values := obj.ColumnValues()
	id := obj.ObjectID()
	if id > 0 {
		delete(values, t.IDColumn)
		return tx.Update(t, id, values)
	}
	if t.SupportsUpsert {
		newID, err := tx.Upsert(t, values)
		if err != nil {
			return err
		}
		obj.SetObjectID(newID)
		return nil
	}
	delete(values, t.IDColumn)
	newID, err := tx.Insert(t, values)
	if err != nil {
		return err
	}
	obj.SetObjectID(newID)
	return nil
}

func (p *Provider[T]) bindingConds(obj T) []objectapi.Condition {
	values := obj.ColumnValues()
	cols := make([]string, 0, len(values))
	for col := range values {
		if col == p.typeInfo.IDColumn || values[col] == nil {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	cond := make([]objectapi.Condition, 0, len(cols))
	for _, col := range cols {
		cond = append(cond, objectapi.Eq(col, values[col]))
	}
	return p.conds(cond...)
}
