package store

import "sync"

// MemoryStore keeps the document in memory. It is the injectable fake used
// throughout the tests; the copy-on-load/copy-on-save behavior matches the
// file backend.
type MemoryStore struct {
	mu  sync.Mutex
	doc Document
	// SaveErr, when set, is returned by every Save call.
	SaveErr error
}

// NewMemoryStore returns a store holding an empty document.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: EmptyDocument()}
}

// Load returns a deep copy of the current document.
func (s *MemoryStore) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), nil
}

// Save replaces the held document with a deep copy of doc.
func (s *MemoryStore) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.doc = doc.Clone()
	return nil
}
