package objectprovider

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/object/objectapi"
)

// fakeStore is an in-memory ObjectStore counting physical operations, so tests
// can assert how often the provider actually reaches the store.
type fakeStore struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
	nextID int64

	queryAllCalls atomic.Int32
	queryOneCalls atomic.Int32

	failQueryAll error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tables: map[string][]map[string]any{}}
}

func (s *fakeStore) seed(t *objectapi.TypeInfo, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		id := objectapi.Int64Column(row, t.IDColumn)
		if id > s.nextID {
			s.nextID = id
		}
		s.tables[t.TableName] = append(s.tables[t.TableName], cloneRow(row))
	}
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func matches(row map[string]any, cond []objectapi.Condition) bool {
	for _, c := range cond {
		eq := fmt.Sprint(row[c.Column]) == fmt.Sprint(c.Value)
		switch c.Op {
		case objectapi.OpEqual:
			if !eq {
				return false
			}
		case objectapi.OpNotEqual:
			if eq {
				return false
			}
		}
	}
	return true
}

func (s *fakeStore) QueryOne(t *objectapi.TypeInfo, cond []objectapi.Condition, order []objectapi.Order) (map[string]any, error) {
	s.queryOneCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	var hits []map[string]any
	for _, row := range s.tables[t.TableName] {
		if matches(row, cond) {
			hits = append(hits, row)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}
	if len(order) > 0 {
		sort.SliceStable(hits, func(i, j int) bool {
			o := order[0]
			a := objectapi.Int64Column(hits[i], o.Column)
			b := objectapi.Int64Column(hits[j], o.Column)
			if o.Desc {
				return a > b
			}
			return a < b
		})
	}
	return cloneRow(hits[0]), nil
}

func (s *fakeStore) QueryAll(t *objectapi.TypeInfo) ([]map[string]any, error) {
	s.queryAllCalls.Add(1)
	if s.failQueryAll != nil {
		return nil, s.failQueryAll
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, row := range s.tables[t.TableName] {
		out = append(out, cloneRow(row))
	}
	return out, nil
}

func (s *fakeStore) Count(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.tables[t.TableName] {
		if matches(row, cond) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Insert(t *objectapi.TypeInfo, values map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	row := cloneRow(values)
	row[t.IDColumn] = s.nextID
	s.tables[t.TableName] = append(s.tables[t.TableName], row)
	return s.nextID, nil
}

func (s *fakeStore) Update(t *objectapi.TypeInfo, id int64, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.tables[t.TableName] {
		if objectapi.Int64Column(row, t.IDColumn) == id {
			next := cloneRow(values)
			next[t.IDColumn] = id
			s.tables[t.TableName][i] = next
			return nil
		}
	}
	return nil
}

func (s *fakeStore) Upsert(t *objectapi.TypeInfo, values map[string]any) (int64, error) {
	id := objectapi.Int64Column(values, t.IDColumn)
	if id > 0 {
		if err := s.Update(t, id, values); err != nil {
			return 0, err
		}
		return id, nil
	}
	return s.Insert(t, values)
}

func (s *fakeStore) DeleteByID(t *objectapi.TypeInfo, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[t.TableName]
	for i, row := range rows {
		if objectapi.Int64Column(row, t.IDColumn) == id {
			s.tables[t.TableName] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeStore) DeleteWhere(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []map[string]any
	var affected int64
	for _, row := range s.tables[t.TableName] {
		if matches(row, cond) {
			affected++
			continue
		}
		kept = append(kept, row)
	}
	s.tables[t.TableName] = kept
	return affected, nil
}

func (s *fakeStore) BulkInsert(t *objectapi.TypeInfo, rows []map[string]any) error {
	for _, row := range rows {
		if _, err := s.Insert(t, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) InTransaction(fn func(tx component.ObjectStore) error) error {
	return fn(s)
}

var _ component.ObjectStore = new(fakeStore)

// recordingFarm captures outbound farm notifications.
type recordingFarm struct {
	mu    sync.Mutex
	tasks []component.FarmTask
}

func (f *recordingFarm) NotifyTask(taskType component.FarmTaskType, objectType string, objectID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, component.FarmTask{Type: taskType, ObjectType: objectType, ObjectID: objectID})
	return nil
}

func (f *recordingFarm) taskTypes() []component.FarmTaskType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]component.FarmTaskType, 0, len(f.tasks))
	for _, task := range f.tasks {
		out = append(out, task.Type)
	}
	return out
}

// recordingToucher captures touched dependency keys.
type recordingToucher struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingToucher) Touch(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
}
