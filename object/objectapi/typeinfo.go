package objectapi

import (
	"errors"
	"strings"
)

// TypeInfo describes one object type: its table, key columns and behavior flags.
// One immutable instance exists per registered object type.
type TypeInfo struct {
	// ObjectType is the case-insensitive type identifier, e.g. "cms.metafile"
	ObjectType string
	// TableName is the backing table or bucket of the type
	TableName string

	IDColumn       string
	CodeNameColumn string
	GUIDColumn     string
	FullNameColumn string
	SiteIDColumn   string
	GroupIDColumn  string

	// ValidateCodeName rejects malformed code names on writes
	ValidateCodeName bool
	// CheckCodeNameUnique enables the uniqueness check inside the write transaction
	CheckCodeNameUnique bool
	// SupportsUpsert allows externally assigned surrogate keys via insert-or-update
	SupportsUpsert bool
	// IsBinding marks pure association rows with composite identity and no code name
	IsBinding bool
	// TouchCacheDependencies marks writes of this type for dependent cache notification
	TouchCacheDependencies bool
	// CacheDependencies lists static dependency keys touched together with the object
	CacheDependencies []string
}

var (
	ErrMissingObjectType = errors.New("object type identifier is empty")
	ErrMissingTableName  = errors.New("table name is empty")
	ErrMissingIDColumn   = errors.New("id column is empty")
)

func (t *TypeInfo) Validate() error {
	if strings.TrimSpace(t.ObjectType) == "" {
		return ErrMissingObjectType
	}
	if strings.TrimSpace(t.TableName) == "" {
		return ErrMissingTableName
	}
	if strings.TrimSpace(t.IDColumn) == "" {
		return ErrMissingIDColumn
	}
	return nil
}

func (t *TypeInfo) HasCodeName() bool {
	return t.CodeNameColumn != ""
}

func (t *TypeInfo) HasGUID() bool {
	return t.GUIDColumn != ""
}

func (t *TypeInfo) HasFullName() bool {
	return t.FullNameColumn != ""
}

func (t *TypeInfo) HasSiteID() bool {
	return t.SiteIDColumn != ""
}

func (t *TypeInfo) HasGroupID() bool {
	return t.GroupIDColumn != ""
}

// NormalizeObjectType produces the canonical lookup form of a type identifier.
func NormalizeObjectType(objectType string) string {
	return strings.ToLower(strings.TrimSpace(objectType))
}
