package metafile

import (
	"errors"

	"github.com/google/uuid"

	"github.com/cachemesh/objprovider/object/objectprovider"
)

var ErrNilMetaFile = errors.New("nil metafile")

// Manager keeps the metafile row and its physical content consistent: content
// is written before the row, and the row is removed before the content.
type Manager struct {
	provider *objectprovider.Provider[*MetaFile]
	storage  *Storage
}

func NewManager(provider *objectprovider.Provider[*MetaFile], storage *Storage) *Manager {
	return &Manager{
		provider: provider,
		storage:  storage,
	}
}

func (m *Manager) Provider() *objectprovider.Provider[*MetaFile] {
	return m.provider
}

// Save stores content and persists the describing row. The guid is assigned
// here when absent so the storage path is known before the write.
func (m *Manager) Save(file *MetaFile, siteName string, content []byte) error {
	if file == nil {
		return ErrNilMetaFile
	}
	if file.GUID == uuid.Nil {
		file.GUID = uuid.New()
	}
	p, key, err := m.storage.Save(siteName, file.GUID, file.Extension, content)
	if err != nil {
		return err
	}
	file.Path = p
	file.ContentKey = key
	file.Size = int64(len(content))
	if err := m.provider.Set(file); err != nil {
		// roll back the orphaned content
		_ = m.storage.Delete(p)
		return err
	}
	return nil
}

// Content reads the physical content of a stored metafile.
func (m *Manager) Content(file *MetaFile) ([]byte, error) {
	if file == nil {
		return nil, ErrNilMetaFile
	}
	return m.storage.Read(file.Path)
}

// Delete removes the row first, then the content.
func (m *Manager) Delete(file *MetaFile) error {
	if file == nil {
		return nil
	}
	if err := m.provider.Delete(file); err != nil {
		return err
	}
	if file.Path != "" {
		return m.storage.Delete(file.Path)
	}
	return nil
}
