package posts

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gazette/internal/identity"
	"github.com/MarcoPoloResearchLab/gazette/internal/store"
)

var (
	// ErrTitleRequired indicates a create request without a usable title.
	ErrTitleRequired = errors.New("posts: title required")
	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = errors.New("posts: post not found")
	// ErrNotAuthor indicates the caller is authenticated but does not own the post.
	ErrNotAuthor = errors.New("posts: not the author")

	errMissingIDProvider = errors.New("posts: id provider required")
)

// IDProvider generates identifiers for new posts.
type IDProvider interface {
	NewID() (string, error)
}

// RepositoryConfig describes the dependencies of the post repository.
type RepositoryConfig struct {
	Clock      func() time.Time
	IDProvider IDProvider
}

// Repository implements post CRUD as pure operations over a Document: each
// mutating operation takes the current document and returns the updated one,
// leaving persistence to the caller.
type Repository struct {
	clock func() time.Time
	ids   IDProvider
}

// NewRepository constructs the repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Repository{clock: clock, ids: cfg.IDProvider}, nil
}

// List returns all posts ordered by creation time, newest first. The sort is
// stable so posts sharing a timestamp keep their insertion order.
func (r *Repository) List(doc store.Document) []store.Post {
	listed := make([]store.Post, len(doc.Posts))
	copy(listed, doc.Posts)
	sort.SliceStable(listed, func(i, j int) bool {
		return listed[i].CreatedAt.After(listed[j].CreatedAt)
	})
	return listed
}

// Create appends a new post stamped with the caller's identity snapshot.
func (r *Repository) Create(doc store.Document, claims identity.Claims, title, body string) (store.Document, store.Post, error) {
	if strings.TrimSpace(title) == "" {
		return doc, store.Post{}, ErrTitleRequired
	}
	id, err := r.ids.NewID()
	if err != nil {
		return doc, store.Post{}, err
	}

	now := r.clock().UTC()
	post := store.Post{
		ID:           id,
		Title:        title,
		Body:         body,
		AuthorID:     claims.UserID,
		AuthorUserID: claims.UserIDName,
		AuthorName:   claims.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	doc.Posts = append(doc.Posts, post)
	return doc, post, nil
}

// UpdateInput carries the fields of a partial update. Nil fields keep the
// post's previous value; present fields replace it, even when empty.
type UpdateInput struct {
	Title *string
	Body  *string
}

// Update edits a post owned by the caller. Ownership compares the claims'
// internal id against the post's author id, never the human handle. The
// updated-at stamp refreshes on every successful update, no-ops included.
func (r *Repository) Update(doc store.Document, claims identity.Claims, postID string, input UpdateInput) (store.Document, store.Post, error) {
	index := findPost(doc, postID)
	if index < 0 {
		return doc, store.Post{}, ErrPostNotFound
	}
	if doc.Posts[index].AuthorID != claims.UserID {
		return doc, store.Post{}, ErrNotAuthor
	}

	if input.Title != nil {
		doc.Posts[index].Title = *input.Title
	}
	if input.Body != nil {
		doc.Posts[index].Body = *input.Body
	}
	doc.Posts[index].UpdatedAt = r.clock().UTC()
	return doc, doc.Posts[index], nil
}

// Delete removes a post owned by the caller, with the same existence and
// ownership checks as Update.
func (r *Repository) Delete(doc store.Document, claims identity.Claims, postID string) (store.Document, error) {
	index := findPost(doc, postID)
	if index < 0 {
		return doc, ErrPostNotFound
	}
	if doc.Posts[index].AuthorID != claims.UserID {
		return doc, ErrNotAuthor
	}
	doc.Posts = append(doc.Posts[:index], doc.Posts[index+1:]...)
	return doc, nil
}

func findPost(doc store.Document, postID string) int {
	for i, post := range doc.Posts {
		if post.ID == postID {
			return i
		}
	}
	return -1
}
