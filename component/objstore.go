package component

import (
	"errors"

	"github.com/cachemesh/objprovider/object/objectapi"
)

var (
	ErrDuplicatedObjectById = errors.New("duplicated object by id")
	ErrStoreClosed          = errors.New("object store is closed")
)

// ObjectStore is the relational contract consumed by providers. Rows travel as
// column maps; the provider layer owns the typed materialization.
//
// Missing rows are reported as a nil map without error.
type ObjectStore interface {
	// QueryOne issues the single-row lookup used on cache miss:
	// SELECT * FROM t WHERE <cond...> [ORDER BY ...] LIMIT 1
	QueryOne(t *objectapi.TypeInfo, cond []objectapi.Condition, order []objectapi.Order) (map[string]any, error)
	// QueryAll issues the full unfiltered scan used for cache population
	QueryAll(t *objectapi.TypeInfo) ([]map[string]any, error)
	Count(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error)

	// Insert persists a new row and returns the assigned surrogate id
	Insert(t *objectapi.TypeInfo, values map[string]any) (int64, error)
	Update(t *objectapi.TypeInfo, id int64, values map[string]any) error
	// Upsert inserts or updates a row carrying an externally assigned id
	Upsert(t *objectapi.TypeInfo, values map[string]any) (int64, error)
	DeleteByID(t *objectapi.TypeInfo, id int64) error
	// DeleteWhere issues one set-based delete and returns affected rows
	DeleteWhere(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error)
	// BulkInsert transfers rows in one operation bypassing per-row validation
	BulkInsert(t *objectapi.TypeInfo, rows []map[string]any) error

	// InTransaction runs fn against a transactional view of the store. Returning
	// an error rolls the whole scope back.
	InTransaction(fn func(tx ObjectStore) error) error
}
