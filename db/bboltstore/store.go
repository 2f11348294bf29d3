// Package bboltstore implements the ObjectStore contract on an embedded bbolt
// file for single node deployments. One bucket per object table, rows encoded
// as cbor column maps, surrogate ids from the bucket sequence.
//
// Secondary lookups scan the bucket. That is acceptable for the embedded use
// case; the provider layer caches aggressively on top.
package bboltstore

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/object/objectapi"
)

type StoreConfig struct {
	Path string
}

type Store struct {
	db     *bbolt.DB
	closed atomic.Bool
}

func NewStore(cfg *StoreConfig) (*Store, error) {
	db, err := bbolt.Open(cfg.Path, 0600, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

func (s *Store) guard() error {
	if s.closed.Load() {
		return component.ErrStoreClosed
	}
	return nil
}

func (s *Store) QueryOne(t *objectapi.TypeInfo, cond []objectapi.Condition, order []objectapi.Order) (map[string]any, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var row map[string]any
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		row, err = (&txStore{tx: tx}).QueryOne(t, cond, order)
		return err
	})
	return row, err
}

func (s *Store) QueryAll(t *objectapi.TypeInfo) ([]map[string]any, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var rows []map[string]any
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		rows, err = (&txStore{tx: tx}).QueryAll(t)
		return err
	})
	return rows, err
}

func (s *Store) Count(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		n, err = (&txStore{tx: tx}).Count(t, cond)
		return err
	})
	return n, err
}

func (s *Store) Insert(t *objectapi.TypeInfo, values map[string]any) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = (&txStore{tx: tx}).Insert(t, values)
		return err
	})
	return id, err
}

func (s *Store) Update(t *objectapi.TypeInfo, id int64, values map[string]any) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return (&txStore{tx: tx}).Update(t, id, values)
	})
}

func (s *Store) Upsert(t *objectapi.TypeInfo, values map[string]any) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = (&txStore{tx: tx}).Upsert(t, values)
		return err
	})
	return id, err
}

func (s *Store) DeleteByID(t *objectapi.TypeInfo, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return (&txStore{tx: tx}).DeleteByID(t, id)
	})
}

func (s *Store) DeleteWhere(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		n, err = (&txStore{tx: tx}).DeleteWhere(t, cond)
		return err
	})
	return n, err
}

func (s *Store) BulkInsert(t *objectapi.TypeInfo, rows []map[string]any) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return (&txStore{tx: tx}).BulkInsert(t, rows)
	})
}

func (s *Store) InTransaction(fn func(tx component.ObjectStore) error) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

var _ component.ObjectStore = new(Store)

// txStore serves every contract method from a single bbolt transaction.
type txStore struct {
	tx *bbolt.Tx
}

func (s *txStore) bucket(t *objectapi.TypeInfo, createIfMissing bool) (*bbolt.Bucket, error) {
	name := []byte(t.TableName)
	if b := s.tx.Bucket(name); b != nil {
		return b, nil
	}
	if !createIfMissing || !s.tx.Writable() {
		return nil, nil
	}
	return s.tx.CreateBucketIfNotExists(name)
}

func (s *txStore) scan(t *objectapi.TypeInfo, cond []objectapi.Condition) ([]map[string]any, error) {
	b, err := s.bucket(t, false)
	if err != nil || b == nil {
		return nil, err
	}
	var rows []map[string]any
	err = b.ForEach(func(_, v []byte) error {
		row := map[string]any{}
		if err := cbor.Unmarshal(v, &row); err != nil {
			return err
		}
		if matches(row, cond) {
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

func (s *txStore) QueryOne(t *objectapi.TypeInfo, cond []objectapi.Condition, order []objectapi.Order) (map[string]any, error) {
	rows, err := s.scan(t, cond)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	if len(order) > 0 {
		sortRows(rows, order)
	}
	return rows[0], nil
}

func (s *txStore) QueryAll(t *objectapi.TypeInfo) ([]map[string]any, error) {
	return s.scan(t, nil)
}

func (s *txStore) Count(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error) {
	rows, err := s.scan(t, cond)
	return int64(len(rows)), err
}

func (s *txStore) Insert(t *objectapi.TypeInfo, values map[string]any) (int64, error) {
	b, err := s.bucket(t, true)
	if err != nil {
		return 0, err
	}
	id := objectapi.Int64Column(values, t.IDColumn)
	if id > 0 {
		// an explicit id is insert-only, insert-or-update is Upsert's contract
		if b.Get(idBytes(id)) != nil {
			return 0, fmt.Errorf("%w: %d (%s)", component.ErrDuplicatedObjectById, id, t.ObjectType)
		}
	} else {
		seq, err := b.NextSequence()
		if err != nil {
			return 0, err
		}
		id = int64(seq)
	}
	row := copyRow(values)
	row[t.IDColumn] = id
	data, err := cbor.Marshal(row)
	if err != nil {
		return 0, err
	}
	if err := b.Put(idBytes(id), data); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *txStore) Update(t *objectapi.TypeInfo, id int64, values map[string]any) error {
	b, err := s.bucket(t, false)
	if err != nil || b == nil {
		return err
	}
	cur := b.Get(idBytes(id))
	if cur == nil {
		return nil
	}
	row := map[string]any{}
	if err := cbor.Unmarshal(cur, &row); err != nil {
		return err
	}
	for k, v := range values {
		if k == t.IDColumn {
			continue
		}
		row[k] = v
	}
	data, err := cbor.Marshal(row)
	if err != nil {
		return err
	}
	return b.Put(idBytes(id), data)
}

func (s *txStore) Upsert(t *objectapi.TypeInfo, values map[string]any) (int64, error) {
	if id := objectapi.Int64Column(values, t.IDColumn); id > 0 {
		b, err := s.bucket(t, true)
		if err != nil {
			return 0, err
		}
		if b.Get(idBytes(id)) != nil {
			return id, s.Update(t, id, values)
		}
		data, err := cbor.Marshal(copyRow(values))
		if err != nil {
			return 0, err
		}
		return id, b.Put(idBytes(id), data)
	}
	if t.HasGUID() {
		if guid := objectapi.StringColumn(values, t.GUIDColumn); guid != "" {
			existing, err := s.QueryOne(t, []objectapi.Condition{objectapi.Eq(t.GUIDColumn, guid)}, nil)
			if err != nil {
				return 0, err
			}
			if existing != nil {
				id := objectapi.Int64Column(existing, t.IDColumn)
				return id, s.Update(t, id, values)
			}
		}
	}
	return s.Insert(t, values)
}

func (s *txStore) DeleteByID(t *objectapi.TypeInfo, id int64) error {
	b, err := s.bucket(t, false)
	if err != nil || b == nil {
		return err
	}
	return b.Delete(idBytes(id))
}

func (s *txStore) DeleteWhere(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error) {
	rows, err := s.scan(t, cond)
	if err != nil {
		return 0, err
	}
	b, err := s.bucket(t, false)
	if err != nil || b == nil {
		return 0, err
	}
	for _, row := range rows {
		if err := b.Delete(idBytes(objectapi.Int64Column(row, t.IDColumn))); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

func (s *txStore) BulkInsert(t *objectapi.TypeInfo, rows []map[string]any) error {
	for _, row := range rows {
		if _, err := s.Insert(t, row); err != nil {
			return err
		}
	}
	return nil
}

// InTransaction on an already transactional view just runs fn against itself.
func (s *txStore) InTransaction(fn func(tx component.ObjectStore) error) error {
	return fn(s)
}

var _ component.ObjectStore = new(txStore)

func idBytes(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func copyRow(values map[string]any) map[string]any {
	row := make(map[string]any, len(values))
	for k, v := range values {
		row[k] = v
	}
	return row
}

func matches(row map[string]any, cond []objectapi.Condition) bool {
	for _, c := range cond {
		eq := equalValue(row[c.Column], c.Value)
		if c.Op == objectapi.OpNotEqual {
			eq = !eq
		}
		if !eq {
			return false
		}
	}
	return true
}

// equalValue tolerates the numeric type differences between cbor decoding and
// caller supplied values.
func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func sortRows(rows []map[string]any, order []objectapi.Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			c := compareValue(rows[i][o.Column], rows[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValue(a, b any) int {
	an, aok := asInt64(a)
	bn, bok := asInt64(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
