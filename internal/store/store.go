package store

import "errors"

// ErrStorage wraps persistence failures surfaced to callers of Save.
var ErrStorage = errors.New("store: storage failure")

// Store owns the persisted document. Load returns a copy of the current
// document, initializing an empty one if none exists yet; Save replaces the
// persisted document in full.
//
// Load never fails the caller on an unreadable or corrupt backing medium: it
// returns an empty, non-persisted document for that call and leaves the
// original bytes untouched. Save failures propagate wrapped in ErrStorage.
type Store interface {
	Load() (Document, error)
	Save(Document) error
}
