package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStoreConfig describes the dependencies of a file-backed store.
type FileStoreConfig struct {
	Path   string
	Logger *zap.Logger
}

// FileStore persists the document as a single JSON file, rewritten in full on
// every save.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore constructs a file-backed store.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: file path required", ErrStorage)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: cfg.Path, logger: logger}, nil
}

// Load reads the current document. A missing file is initialized to an empty
// document on disk before returning; an unreadable or corrupt file yields an
// empty, non-persisted document so a bad read never destroys the stored bytes.
func (s *FileStore) Load() (Document, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		empty := EmptyDocument()
		if err := s.Save(empty); err != nil {
			return Document{}, err
		}
		return empty, nil
	}
	if err != nil {
		s.logger.Warn("document unreadable, serving empty document", zap.String("path", s.path), zap.Error(err))
		return EmptyDocument(), nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("document corrupt, serving empty document", zap.String("path", s.path), zap.Error(err))
		return EmptyDocument(), nil
	}
	if doc.Users == nil {
		doc.Users = []User{}
	}
	if doc.Posts == nil {
		doc.Posts = []Post{}
	}
	return doc, nil
}

// Save replaces the persisted document. The bytes land in a temp file first
// and move into place with a rename, so readers never observe a torn write.
func (s *FileStore) Save(doc Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrStorage, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write document: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace document: %v", ErrStorage, err)
	}
	return nil
}
