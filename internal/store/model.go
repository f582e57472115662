package store

import "time"

// User is a registered account. The digest is the opaque output of the
// password hasher and must never appear in a client-facing response.
type User struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	PasswordDigest string `json:"password_digest"`
}

// Post is a single blog entry. The author fields are a snapshot of the
// creating identity; they are not kept in sync with later identity changes.
type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	AuthorID     string    `json:"authorId"`
	AuthorUserID string    `json:"authorUserId"`
	AuthorName   string    `json:"authorName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Document is the single persisted aggregate. Every write replaces it
// wholesale; there is no partial persistence primitive.
type Document struct {
	Users []User `json:"users"`
	Posts []Post `json:"posts"`
}

// Clone returns a deep copy so callers never alias persisted state.
func (d Document) Clone() Document {
	copied := Document{
		Users: make([]User, len(d.Users)),
		Posts: make([]Post, len(d.Posts)),
	}
	copy(copied.Users, d.Users)
	copy(copied.Posts, d.Posts)
	return copied
}

// EmptyDocument returns a document with initialized, empty collections.
func EmptyDocument() Document {
	return Document{Users: []User{}, Posts: []Post{}}
}
