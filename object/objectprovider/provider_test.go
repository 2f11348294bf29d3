package objectprovider

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/object/objectapi"
)

var userTypeInfo = &objectapi.TypeInfo{
	ObjectType:     "test.user",
	TableName:      "test_user",
	IDColumn:       "user_id",
	CodeNameColumn: "user_name",
	GUIDColumn:     "user_guid",
	FullNameColumn: "user_full_name",
	SiteIDColumn:   "user_site_id",

	ValidateCodeName:       true,
	CheckCodeNameUnique:    true,
	TouchCacheDependencies: true,
	CacheDependencies:      []string{"test.user|all"},
}

type testUser struct {
	ID       int64
	GUID     uuid.UUID
	Name     string
	FullName string
	SiteID   int64
	Email    string
}

func (u *testUser) TypeInfo() *objectapi.TypeInfo { return userTypeInfo }
func (u *testUser) ObjectID() int64 { return u.ID }
func (u *testUser) SetObjectID(id int64) { u.ID = id }
func (u *testUser) ObjectGUID() uuid.UUID { return u.GUID }
func (u *testUser) SetObjectGUID(g uuid.UUID) { u.GUID = g }
func (u *testUser) ObjectCodeName() string { return u.Name }
func (u *testUser) SetObjectCodeName(name string) { u.Name = name }
func (u *testUser) ObjectSiteID() int64 { return u.SiteID }
func (u *testUser) ObjectGroupID() int64 { return 0 }
func (u *testUser) ObjectFullName() string { return u.FullName }

func (u *testUser) ColumnValues() map[string]any {
	return map[string]any{
		"user_id":        u.ID,
		"user_guid":      u.GUID.String(),
		"user_name":      u.Name,
		"user_full_name": u.FullName,
		"user_site_id":   u.SiteID,
		"user_email":     u.Email,
	}
}

func (u *testUser) LoadColumns(values map[string]any) error {
	u.ID = objectapi.Int64Column(values, "user_id")
	u.GUID = objectapi.GUIDColumn(values, "user_guid")
	u.Name = objectapi.StringColumn(values, "user_name")
	u.FullName = objectapi.StringColumn(values, "user_full_name")
	u.SiteID = objectapi.Int64Column(values, "user_site_id")
	u.Email = objectapi.StringColumn(values, "user_email")
	return nil
}

var _ objectapi.Info = new(testUser)

var membershipTypeInfo = &objectapi.TypeInfo{
	ObjectType: "test.membership",
	TableName:  "test_membership",
	IDColumn:   "membership_id",
	IsBinding:  true,
}

type testMembership struct {
	ID     int64
	UserID int64
	RoleID int64
}

func (m *testMembership) TypeInfo() *objectapi.TypeInfo { return membershipTypeInfo }
func (m *testMembership) ObjectID() int64 { return m.ID }
func (m *testMembership) SetObjectID(id int64) { m.ID = id }
func (m *testMembership) ObjectGUID() uuid.UUID { return uuid.Nil }
func (m *testMembership) SetObjectGUID(g uuid.UUID) {}
func (m *testMembership) ObjectCodeName() string { return "" }
func (m *testMembership) SetObjectCodeName(name string) {}
func (m *testMembership) ObjectSiteID() int64 { return 0 }
func (m *testMembership) ObjectGroupID() int64 { return 0 }
func (m *testMembership) ObjectFullName() string { return "" }

func (m *testMembership) ColumnValues() map[string]any {
	return map[string]any{
		"membership_id": m.ID,
		"user_id":       m.UserID,
		"role_id":       m.RoleID,
	}
}

func (m *testMembership) LoadColumns(values map[string]any) error {
	m.ID = objectapi.Int64Column(values, "membership_id")
	m.UserID = objectapi.Int64Column(values, "user_id")
	m.RoleID = objectapi.Int64Column(values, "role_id")
	return nil
}

var _ objectapi.Info = new(testMembership)

func newUserProvider(t *testing.T, store component.ObjectStore, opt ProviderOptions[*testUser]) *Provider[*testUser] {
	t.Helper()
	opt.Store = store
	opt.New = func() *testUser { return new(testUser) }
	p, err := NewProvider[*testUser](userTypeInfo, opt)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func userRow(id int64, name string, siteID int64) map[string]any {
	return map[string]any{
		"user_id":        id,
		"user_guid":      uuid.New().String(),
		"user_name":      name,
		"user_full_name": "user." + name,
		"user_site_id":   siteID,
	}
}

func TestGetByID_LoadsExactlyOnce(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "alpha", 0), userRow(2, "beta", 0))
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := p.GetByID(1)
			if err != nil {
				t.Error(err)
				return
			}
			if u == nil || u.Name != "alpha" {
				t.Error("unexpected result")
			}
		}()
	}
	wg.Wait()

	if n := store.queryAllCalls.Load(); n != 1 {
		t.Fatal("expect exactly one physical load, got:", n)
	}
	if n := store.queryOneCalls.Load(); n != 0 {
		t.Fatal("cached reads should not reach the store, got:", n)
	}
}

func TestGetByID_LoadFailureRetries(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "alpha", 0))
	store.failQueryAll = errors.New("store down")
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	if _, err := p.GetByID(1); err == nil {
		t.Fatal("expect load error")
	}

	store.failQueryAll = nil
	u, err := p.GetByID(1)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Name != "alpha" {
		t.Fatal("retry after failed load did not recover")
	}
	if n := store.queryAllCalls.Load(); n != 2 {
		t.Fatal("expect two physical load attempts, got:", n)
	}
}

func TestGetByID_ZeroID(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	for _, id := range []int64{0, -5} {
		u, err := p.GetByID(id)
		if err != nil {
			t.Fatal(err)
		}
		if u != nil {
			t.Fatal("expect no result for id", id)
		}
	}
	if n := store.queryAllCalls.Load() + store.queryOneCalls.Load(); n != 0 {
		t.Fatal("malformed keys should not reach the store, got:", n)
	}
}

func TestNegativeCache(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "alpha", 0))
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	u, err := p.GetByID(42)
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Fatal("expect no result")
	}
	if n := store.queryOneCalls.Load(); n != 1 {
		t.Fatal("first miss should query the store once, got:", n)
	}

	// confirmed absence is cached, the second read stays in memory
	if u, err := p.GetByID(42); err != nil || u != nil {
		t.Fatal("expect cached negative result", u, err)
	}
	if n := store.queryOneCalls.Load(); n != 1 {
		t.Fatal("negative hit should not reach the store, got:", n)
	}
}

func TestGetByCodeName_CaseInsensitive(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "Alpha", 2))
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	u, err := p.GetByCodeName("ALPHA", 2, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != 1 {
		t.Fatal("case-insensitive code name lookup failed")
	}
	if u, err := p.GetByCodeName("  ", 2, 0, false); err != nil || u != nil {
		t.Fatal("blank name should resolve to nothing", u, err)
	}
}

func TestGetByCodeName_GlobalFallback(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "shared", 0))
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	u, err := p.GetByCodeName("shared", 5, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Fatal("site scoped lookup should miss without fallback")
	}

	u, err = p.GetByCodeName("shared", 5, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.SiteID != 0 {
		t.Fatal("global fallback failed")
	}
}

func TestGetByGUID_SitePrecedence(t *testing.T) {
	store := newFakeStore()
	g := uuid.New()
	global := userRow(1, "one", 0)
	global["user_guid"] = g.String()
	sited := userRow(2, "two", 3)
	sited["user_guid"] = g.String()
	store.seed(userTypeInfo, global, sited)

	// direct store path: the ordering contract is the store's to honor
	p := newUserProvider(t, store, ProviderOptions[*testUser]{Flags: &GlobalFlags{UseHashtables: false}})

	u, err := p.GetByGUID(g, 0)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != 2 {
		t.Fatal("site specific row should win over the global one")
	}

	u, err = p.GetByGUID(g, 3)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != 2 {
		t.Fatal("site scoped guid lookup failed")
	}
}

func TestGetByGUID_SiteScopedCacheIsolation(t *testing.T) {
	store := newFakeStore()
	g := uuid.New()
	row := userRow(1, "one", 3)
	row["user_guid"] = g.String()
	store.seed(userTypeInfo, row)
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	u, err := p.GetByGUID(g, 3)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != 1 {
		t.Fatal("own site guid lookup failed")
	}

	// a lookup scoped to another site must not be answered by the cached row
	u, err = p.GetByGUID(g, 7)
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Fatalf("site 7 lookup answered by the site 3 row (id=%d)", u.ID)
	}

	// the absence at site 7 is cached under the scoped key
	before := store.queryOneCalls.Load()
	if u, err = p.GetByGUID(g, 7); err != nil {
		t.Fatal(err)
	} else if u != nil {
		t.Fatal("repeated scoped lookup returned a row")
	}
	if store.queryOneCalls.Load() != before {
		t.Fatal("scoped negative guid entry was not cached")
	}

	// and never leaks into the unscoped lookup
	u, err = p.GetByGUID(g, 0)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != 1 {
		t.Fatal("unscoped lookup poisoned by a site scoped negative entry")
	}
}

func TestGetByFullName(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "alpha", 0))
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	u, err := p.GetByFullName("USER.ALPHA")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != 1 {
		t.Fatal("full name lookup failed")
	}
}

func TestWeakReferences_EvictionReloads(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "a", 0), userRow(2, "b", 0), userRow(3, "c", 0))
	p := newUserProvider(t, store, ProviderOptions[*testUser]{
		Settings: HashtableSettings{
			UseIDHashtable:    true,
			UseWeakReferences: true,
			WeakEntryLimit:    2,
		},
	})

	for _, id := range []int64{1, 2, 3} {
		if u, err := p.GetByID(id); err != nil || u == nil {
			t.Fatal("read-through failed for id", id, err)
		}
	}
	before := store.queryOneCalls.Load()

	// id 1 was evicted by the bounded index; the read must fall back to the
	// store instead of reporting a negative result
	u, err := p.GetByID(1)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Name != "a" {
		t.Fatal("evicted entry should reload from the store")
	}
	if store.queryOneCalls.Load() != before+1 {
		t.Fatal("evicted entry should cause one more store query")
	}
}

func TestSet_InsertAssignsIDAndGUID(t *testing.T) {
	store := newFakeStore()
	farm := new(recordingFarm)
	toucher := new(recordingToucher)
	p := newUserProvider(t, store, ProviderOptions[*testUser]{Farm: farm, Toucher: toucher})

	u := &testUser{Name: "alpha", FullName: "user.alpha"}
	if err := p.Set(u); err != nil {
		t.Fatal(err)
	}
	if u.ID <= 0 {
		t.Fatal("id not assigned")
	}
	if u.GUID == uuid.Nil {
		t.Fatal("guid not assigned")
	}

	types := farm.taskTypes()
	if len(types) != 1 || types[0] != component.FarmTaskUpdateObject {
		t.Fatal("expect one update broadcast, got:", types)
	}
	found := false
	for _, key := range toucher.keys {
		if key == "test.user|all" {
			found = true
		}
	}
	if !found {
		t.Fatal("static dependency key not touched:", toucher.keys)
	}
}

func TestSet_NilAndForeignObjects(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	if err := p.Set(nil); !errors.Is(err, objectapi.ErrNilInfo) {
		t.Fatal("expect ErrNilInfo, got:", err)
	}

	mp, err := NewProvider[*testMembership](membershipTypeInfo, ProviderOptions[*testMembership]{
		Store: store,
		New:   func() *testMembership { return new(testMembership) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mp.Set(&testMembership{UserID: 1, RoleID: 2}); err != nil {
		t.Fatal(err)
	}
}

func TestSet_ProviderMismatch(t *testing.T) {
	store := newFakeStore()
	otherTypeInfo := &objectapi.TypeInfo{
		ObjectType: "test.other",
		TableName:  "test_other",
		IDColumn:   "other_id",
	}
	p, err := NewProvider[*testUser](otherTypeInfo, ProviderOptions[*testUser]{
		Store: store,
		New:   func() *testUser { return new(testUser) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Set(&testUser{Name: "alpha"}); !errors.Is(err, objectapi.ErrProviderMismatch) {
		t.Fatal("expect ErrProviderMismatch, got:", err)
	}
}

func TestSet_InvalidCodeName(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	if err := p.Set(&testUser{Name: "has space"}); !errors.Is(err, objectapi.ErrInvalidCodeName) {
		t.Fatal("expect ErrInvalidCodeName, got:", err)
	}
}

func TestSet_DuplicateCodeName(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	if err := p.Set(&testUser{Name: "alpha", SiteID: 1}); err != nil {
		t.Fatal(err)
	}
	err := p.Set(&testUser{Name: "alpha", SiteID: 1})
	if !errors.Is(err, objectapi.ErrCodeNameNotUnique) {
		t.Fatal("expect ErrCodeNameNotUnique, got:", err)
	}

	// same name in another site scope is fine
	if err := p.Set(&testUser{Name: "alpha", SiteID: 2}); err != nil {
		t.Fatal(err)
	}
}

func TestSet_NormalizesCodeName(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	u := &testUser{Name: "  gamma  ", FullName: "user.gamma"}
	if err := p.Set(u); err != nil {
		t.Fatal(err)
	}
	if u.Name != "gamma" {
		t.Fatalf("code name not trimmed on the object: %q", u.Name)
	}

	got, err := p.GetByCodeName("gamma", 0, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatal("trimmed code name lookup failed")
	}

	// the persisted row carries the trimmed value as well
	row, err := store.QueryOne(userTypeInfo, []objectapi.Condition{objectapi.Eq("user_id", u.ID)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if objectapi.StringColumn(row, "user_name") != "gamma" {
		t.Fatal("store row kept the padded name:", row["user_name"])
	}
}

func TestSet_RenameEvictsOldName(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	u := &testUser{Name: "alpha", FullName: "user.alpha"}
	if err := p.Set(u); err != nil {
		t.Fatal(err)
	}
	if got, err := p.GetByCodeName("alpha", 0, 0, false); err != nil || got == nil {
		t.Fatal("pre-rename lookup failed", err)
	}

	u.Name = "beta"
	u.FullName = "user.beta"
	if err := p.Set(u); err != nil {
		t.Fatal(err)
	}

	stale, err := p.GetByCodeName("alpha", 0, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if stale != nil {
		t.Fatal("old code name still resolves after rename")
	}
	got, err := p.GetByCodeName("beta", 0, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatal("new code name does not resolve")
	}
}

func TestDelete(t *testing.T) {
	store := newFakeStore()
	farm := new(recordingFarm)
	p := newUserProvider(t, store, ProviderOptions[*testUser]{Farm: farm})

	u := &testUser{Name: "alpha"}
	if err := p.Set(u); err != nil {
		t.Fatal(err)
	}
	if err := p.Delete(u); err != nil {
		t.Fatal(err)
	}

	got, err := p.GetByID(u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("deleted object still resolves")
	}

	types := farm.taskTypes()
	if len(types) != 2 || types[1] != component.FarmTaskDeleteObject {
		t.Fatal("expect delete broadcast, got:", types)
	}

	// nil and never-persisted objects are a no-op
	if err := p.Delete(nil); err != nil {
		t.Fatal(err)
	}
	if err := p.Delete(&testUser{Name: "ghost"}); err != nil {
		t.Fatal(err)
	}
}

func TestDelete_BindingResolvesID(t *testing.T) {
	store := newFakeStore()
	p, err := NewProvider[*testMembership](membershipTypeInfo, ProviderOptions[*testMembership]{
		Store: store,
		New:   func() *testMembership { return new(testMembership) },
	})
	if err != nil {
		t.Fatal(err)
	}

	m := &testMembership{UserID: 7, RoleID: 9}
	if err := p.Set(m); err != nil {
		t.Fatal(err)
	}
	if m.ID <= 0 {
		t.Fatal("binding id not assigned")
	}

	// delete by composite values only
	if err := p.Delete(&testMembership{UserID: 7, RoleID: 9}); err != nil {
		t.Fatal(err)
	}
	n, err := store.Count(membershipTypeInfo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatal("binding row not removed")
	}
}

func TestBulkDelete(t *testing.T) {
	store := newFakeStore()
	farm := new(recordingFarm)
	p := newUserProvider(t, store, ProviderOptions[*testUser]{Farm: farm})

	store.seed(userTypeInfo, userRow(1, "a", 3), userRow(2, "b", 3), userRow(3, "c", 4))
	if u, err := p.GetByID(1); err != nil || u == nil {
		t.Fatal("warm up failed", err)
	}

	affected, err := p.BulkDelete([]objectapi.Condition{objectapi.Eq("user_site_id", 3)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if affected != 2 {
		t.Fatal("expect 2 affected rows, got:", affected)
	}

	// set-based writes clear the whole cache and broadcast the clear
	u, err := p.GetByID(1)
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Fatal("bulk-deleted row still cached")
	}
	types := farm.taskTypes()
	if len(types) == 0 || types[len(types)-1] != component.FarmTaskClearCache {
		t.Fatal("expect clear broadcast, got:", types)
	}
}

func TestBulkDelete_DependencyFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})
	store.seed(userTypeInfo, userRow(1, "a", 3))

	boom := errors.New("dependency removal failed")
	_, err := p.BulkDelete([]objectapi.Condition{objectapi.Eq("user_site_id", 3)},
		func(tx component.ObjectStore) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatal("expect dependency error, got:", err)
	}
	n, err := store.Count(userTypeInfo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatal("rows should survive a failed dependency pass")
	}
}

func TestBulkInsert(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	users := []*testUser{
		{Name: "a", GUID: uuid.New()},
		{Name: "b", GUID: uuid.New()},
	}
	if err := p.BulkInsert(users); err != nil {
		t.Fatal(err)
	}
	n, err := store.Count(userTypeInfo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatal("expect 2 rows, got:", n)
	}

	if err := p.BulkInsert(nil); err != nil {
		t.Fatal("empty bulk insert should be a no-op, got:", err)
	}
}

func TestEnsureUniqueCodeName(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	name, err := p.EnsureUniqueCodeName("alpha", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if name != "alpha" {
		t.Fatal("free name should be returned unchanged, got:", name)
	}

	if err := p.Set(&testUser{Name: "alpha"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Set(&testUser{Name: "alpha_1"}); err != nil {
		t.Fatal(err)
	}
	name, err = p.EnsureUniqueCodeName("alpha", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if name != "alpha_2" {
		t.Fatal("expect alpha_2, got:", name)
	}
}

func TestApplyFarmTask(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "alpha", 0))
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	if u, err := p.GetByID(1); err != nil || u == nil {
		t.Fatal("warm up failed", err)
	}

	// another node updated the row; the store content changed underneath us
	store.mu.Lock()
	store.tables["test_user"][0]["user_name"] = "renamed"
	store.mu.Unlock()

	if err := p.ApplyFarmTask(component.FarmTask{Type: component.FarmTaskUpdateObject, ObjectID: 1}); err != nil {
		t.Fatal(err)
	}
	u, err := p.GetByID(1)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Name != "renamed" {
		t.Fatal("update task did not refresh the cached object")
	}

	if err := p.ApplyFarmTask(component.FarmTask{Type: component.FarmTaskDeleteObject, ObjectID: 1}); err != nil {
		t.Fatal(err)
	}
	before := store.queryOneCalls.Load()
	if u, err := p.GetByID(1); err != nil {
		t.Fatal(err)
	} else if u != nil && store.queryOneCalls.Load() == before {
		t.Fatal("delete task did not drop the cached object")
	}

	if err := p.ApplyFarmTask(component.FarmTask{Type: component.FarmTaskClearCache}); err != nil {
		t.Fatal(err)
	}

	err = p.ApplyFarmTask(component.FarmTask{Type: "rewind"})
	if !errors.Is(err, objectapi.ErrUnsupportedOperation) {
		t.Fatal("expect ErrUnsupportedOperation, got:", err)
	}
}

func TestInvalidatedProviderRejectsWrites(t *testing.T) {
	store := newFakeStore()
	p := newUserProvider(t, store, ProviderOptions[*testUser]{})

	p.Invalidate()

	if err := p.Set(&testUser{Name: "alpha"}); !errors.Is(err, objectapi.ErrProviderInvalidated) {
		t.Fatal("expect ErrProviderInvalidated on Set, got:", err)
	}
	if err := p.Delete(&testUser{ID: 1, Name: "alpha"}); !errors.Is(err, objectapi.ErrProviderInvalidated) {
		t.Fatal("expect ErrProviderInvalidated on Delete, got:", err)
	}
	if _, err := p.BulkDelete(nil, nil); !errors.Is(err, objectapi.ErrProviderInvalidated) {
		t.Fatal("expect ErrProviderInvalidated on BulkDelete, got:", err)
	}
	if err := p.BulkInsert([]*testUser{{Name: "x"}}); !errors.Is(err, objectapi.ErrProviderInvalidated) {
		t.Fatal("expect ErrProviderInvalidated on BulkInsert, got:", err)
	}
}

func TestNewProvider_Validation(t *testing.T) {
	store := newFakeStore()
	if _, err := NewProvider[*testUser](nil, ProviderOptions[*testUser]{Store: store, New: func() *testUser { return new(testUser) }}); !errors.Is(err, ErrNilTypeInfo) {
		t.Fatal("expect ErrNilTypeInfo, got:", err)
	}
	if _, err := NewProvider[*testUser](userTypeInfo, ProviderOptions[*testUser]{New: func() *testUser { return new(testUser) }}); !errors.Is(err, ErrNilStore) {
		t.Fatal("expect ErrNilStore, got:", err)
	}
	if _, err := NewProvider[*testUser](userTypeInfo, ProviderOptions[*testUser]{Store: store}); !errors.Is(err, ErrNilNewFunc) {
		t.Fatal("expect ErrNilNewFunc, got:", err)
	}
}

type siteScopedQuery struct {
	siteID int64
}

func (q siteScopedQuery) Decorate(t *objectapi.TypeInfo, cond []objectapi.Condition) []objectapi.Condition {
	for _, c := range cond {
		if c.Column == t.SiteIDColumn {
			return cond
		}
	}
	return append(cond, objectapi.Eq(t.SiteIDColumn, q.siteID))
}

func TestQueryStrategyDecoratesStoreQueries(t *testing.T) {
	store := newFakeStore()
	store.seed(userTypeInfo, userRow(1, "alpha", 1), userRow(2, "alpha2", 2))
	p := newUserProvider(t, store, ProviderOptions[*testUser]{
		Flags: &GlobalFlags{UseHashtables: false},
		Query: siteScopedQuery{siteID: 2},
	})

	u, err := p.GetByID(1)
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Fatal("row outside the decorated scope should not resolve")
	}
	u, err = p.GetByID(2)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || !strings.EqualFold(u.Name, "alpha2") {
		t.Fatal("row inside the decorated scope should resolve")
	}
}
