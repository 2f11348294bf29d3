package metafile

import (
	"encoding/hex"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrNilGuid  = errors.New("nil metafile guid")
	ErrBadExt   = errors.New("bad metafile extension")
	ErrBadRoot  = errors.New("bad storage root")
	ErrNotFound = errors.New("metafile not found")
)

type StorageConfig struct {
	FS afero.Fs
	// Root is the base directory of all metafile content.
	Root string
}

// Storage keeps metafile content on a filesystem with deterministic paths:
// <root>/<site>/<first 2 guid chars>/<guid>.<ext>. The two character prefix
// keeps per-directory file counts bounded.
type Storage struct {
	fs   afero.Fs
	root string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	if cfg.Root == "" {
		return nil, ErrBadRoot
	}
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Storage{
		fs:   fs,
		root: cfg.Root,
	}, nil
}

// FilePath returns the storage path for a metafile without touching the
// filesystem.
func (s *Storage) FilePath(siteName string, guid uuid.UUID, ext string) (string, error) {
	if guid == uuid.Nil {
		return "", ErrNilGuid
	}
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" || strings.ContainsAny(ext, "/\\") {
		return "", ErrBadExt
	}
	g := guid.String()
	site := strings.ToLower(strings.TrimSpace(siteName))
	if site == "" {
		site = "global"
	}
	return path.Join(s.root, site, g[:2], g+"."+ext), nil
}

// Save writes the content and returns its storage path and content key.
func (s *Storage) Save(siteName string, guid uuid.UUID, ext string, data []byte) (string, string, error) {
	p, err := s.FilePath(siteName, guid, ext)
	if err != nil {
		return "", "", err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return "", "", err
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return "", "", err
	}
	return p, ContentKey(data), nil
}

func (s *Storage) Read(filePath string) ([]byte, error) {
	exists, err := afero.Exists(s.fs, filePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return afero.ReadFile(s.fs, filePath)
}

// Delete removes the content and prunes the guid prefix directory when it
// becomes empty. Pruning is best effort.
func (s *Storage) Delete(filePath string) error {
	exists, err := afero.Exists(s.fs, filePath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := s.fs.Remove(filePath); err != nil {
		return err
	}
	dir := path.Dir(filePath)
	if files, err := afero.ReadDir(s.fs, dir); err == nil && len(files) == 0 {
		_ = s.fs.Remove(dir)
	}
	return nil
}

// ContentKey derives the blake2b-256 key of metafile content, used for
// dedup and integrity checks.
func ContentKey(data []byte) string {
	sum := blake2b.Sum256(data)
	return "blake2b:" + hex.EncodeToString(sum[:])
}
