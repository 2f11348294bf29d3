package objectapi

import (
	"github.com/google/uuid"
)

// Info is the contract every cached domain object fulfills. Concrete types keep
// typed fields and bridge them to column maps via ColumnValues/LoadColumns, the
// same way store rows travel to and from the backing table.
type Info interface {
	TypeInfo() *TypeInfo

	ObjectID() int64
	SetObjectID(id int64)
	ObjectGUID() uuid.UUID
	SetObjectGUID(g uuid.UUID)
	ObjectCodeName() string
	SetObjectCodeName(name string)
	ObjectSiteID() int64
	ObjectGroupID() int64
	// ObjectFullName returns the type specific derived unique name or "" when the
	// type has no full name
	ObjectFullName() string

	// ColumnValues dumps all persisted columns keyed by column name
	ColumnValues() map[string]any
	// LoadColumns fills the object from a store row
	LoadColumns(values map[string]any) error
}

// DataBag is the narrow untyped escape hatch for genuinely dynamic columns
// (custom fields). Concrete Info types embed it and merge it into ColumnValues.
type DataBag struct {
	data map[string]any
}

func (b *DataBag) SetValue(column string, value any) {
	if b.data == nil {
		b.data = map[string]any{}
	}
	b.data[column] = value
}

func (b *DataBag) GetValue(column string) (any, bool) {
	v, ok := b.data[column]
	return v, ok
}

func (b *DataBag) Columns() map[string]any {
	out := make(map[string]any, len(b.data))
	for k, v := range b.data {
		out[k] = v
	}
	return out
}

// Int64Column reads an integer column from a store row tolerating the numeric
// types different drivers produce.
func Int64Column(values map[string]any, column string) int64 {
	switch v := values[column].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// StringColumn reads a text column from a store row.
func StringColumn(values map[string]any, column string) string {
	switch v := values[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// GUIDColumn reads a uuid column from a store row. Stores may produce either
// the string form or raw bytes.
func GUIDColumn(values map[string]any, column string) uuid.UUID {
	switch v := values[column].(type) {
	case string:
		if g, err := uuid.Parse(v); err == nil {
			return g
		}
	case []byte:
		if g, err := uuid.FromBytes(v); err == nil {
			return g
		}
		if g, err := uuid.ParseBytes(v); err == nil {
			return g
		}
	case [16]byte:
		return uuid.UUID(v)
	}
	return uuid.Nil
}
