package metafile

import (
	"github.com/google/uuid"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/object/objectapi"
	"github.com/cachemesh/objprovider/object/objectprovider"
)

const ObjectType = "objprovider.metafile"

// MetaFileTypeInfo describes the metafile table for the object layer.
var MetaFileTypeInfo = &objectapi.TypeInfo{
	ObjectType:     ObjectType,
	TableName:      "meta_file",
	IDColumn:       "file_id",
	CodeNameColumn: "file_name",
	GUIDColumn:     "file_guid",
	SiteIDColumn:   "file_site_id",

	ValidateCodeName:    false,
	CheckCodeNameUnique: true,
}

// MetaFile is a stored file description. Content bytes live in Storage; the
// row keeps the path and content key only.
type MetaFile struct {
	objectapi.DataBag

	ID         int64
	GUID       uuid.UUID
	Name       string
	Extension  string
	MimeType   string
	Size       int64
	SiteID     int64
	Path       string
	ContentKey string
}

func (m *MetaFile) TypeInfo() *objectapi.TypeInfo { return MetaFileTypeInfo }

func (m *MetaFile) ObjectID() int64 { return m.ID }
func (m *MetaFile) SetObjectID(id int64) { m.ID = id }
func (m *MetaFile) ObjectGUID() uuid.UUID { return m.GUID }
func (m *MetaFile) SetObjectGUID(g uuid.UUID) { m.GUID = g }
func (m *MetaFile) ObjectCodeName() string { return m.Name }
func (m *MetaFile) SetObjectCodeName(name string) { m.Name = name }
func (m *MetaFile) ObjectSiteID() int64 { return m.SiteID }
func (m *MetaFile) ObjectGroupID() int64 { return 0 }
func (m *MetaFile) ObjectFullName() string { return "" }

func (m *MetaFile) ColumnValues() map[string]any {
	values := m.Columns()
	values["file_id"] = m.ID
	values["file_guid"] = m.GUID.String()
	values["file_name"] = m.Name
	values["file_extension"] = m.Extension
	values["file_mime_type"] = m.MimeType
	values["file_size"] = m.Size
	values["file_site_id"] = m.SiteID
	values["file_path"] = m.Path
	values["file_content_key"] = m.ContentKey
	return values
}

func (m *MetaFile) LoadColumns(values map[string]any) error {
	m.ID = objectapi.Int64Column(values, "file_id")
	m.GUID = objectapi.GUIDColumn(values, "file_guid")
	m.Name = objectapi.StringColumn(values, "file_name")
	m.Extension = objectapi.StringColumn(values, "file_extension")
	m.MimeType = objectapi.StringColumn(values, "file_mime_type")
	m.Size = objectapi.Int64Column(values, "file_size")
	m.SiteID = objectapi.Int64Column(values, "file_site_id")
	m.Path = objectapi.StringColumn(values, "file_path")
	m.ContentKey = objectapi.StringColumn(values, "file_content_key")
	return nil
}

var _ objectapi.Info = new(MetaFile)

type ProviderConfig struct {
	Store   component.ObjectStore
	Farm    component.FarmNotifier
	Metrics objectprovider.CacheMetrics
	Flags   *objectprovider.GlobalFlags
}

// NewMetaFileProvider wires the metafile type into the object layer with the
// default hashtable settings of the type.
func NewMetaFileProvider(cfg ProviderConfig) (*objectprovider.Provider[*MetaFile], error) {
	return objectprovider.NewProvider[*MetaFile](MetaFileTypeInfo, objectprovider.ProviderOptions[*MetaFile]{
		Store:   cfg.Store,
		New:     func() *MetaFile { return new(MetaFile) },
		Flags:   cfg.Flags,
		Farm:    cfg.Farm,
		Metrics: cfg.Metrics,
		Settings: objectprovider.HashtableSettings{
			UseIDHashtable:   true,
			UseNameHashtable: true,
			UseGUIDHashtable: true,
			CacheNegative:    true,
		},
	})
}
