package database

import (
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/gazette/internal/store"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRecord{}, &postRecord{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

type userRecord struct {
	Position       int    `gorm:"column:position;primaryKey;autoIncrement:false"`
	ID             string `gorm:"column:id;size:190;not null;uniqueIndex"`
	UserID         string `gorm:"column:user_id;size:190;not null;uniqueIndex"`
	Name           string `gorm:"column:name;size:320;not null"`
	PasswordDigest string `gorm:"column:password_digest;size:190;not null"`
}

func (userRecord) TableName() string {
	return "users"
}

type postRecord struct {
	Position     int       `gorm:"column:position;primaryKey;autoIncrement:false"`
	ID           string    `gorm:"column:id;size:190;not null;uniqueIndex"`
	Title        string    `gorm:"column:title;type:text;not null"`
	Body         string    `gorm:"column:body;type:text;not null"`
	AuthorID     string    `gorm:"column:author_id;size:190;not null;index"`
	AuthorUserID string    `gorm:"column:author_user_id;size:190;not null"`
	AuthorName   string    `gorm:"column:author_name;size:320;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (postRecord) TableName() string {
	return "posts"
}

// DocumentStore implements the whole-document store contract over SQLite.
// Save replaces every row inside one transaction; the explicit position
// column preserves insertion order across a round trip.
type DocumentStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDocumentStore wraps an open database handle.
func NewDocumentStore(db *gorm.DB, logger *zap.Logger) (*DocumentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{db: db, logger: logger}, nil
}

// Load reads the full document. Read failures are served as an empty,
// non-persisted document, matching the file backend's contract.
func (s *DocumentStore) Load() (store.Document, error) {
	var users []userRecord
	if err := s.db.Order("position").Find(&users).Error; err != nil {
		s.logger.Warn("users unreadable, serving empty document", zap.Error(err))
		return store.EmptyDocument(), nil
	}
	var posts []postRecord
	if err := s.db.Order("position").Find(&posts).Error; err != nil {
		s.logger.Warn("posts unreadable, serving empty document", zap.Error(err))
		return store.EmptyDocument(), nil
	}

	doc := store.EmptyDocument()
	for _, record := range users {
		doc.Users = append(doc.Users, store.User{
			ID:             record.ID,
			UserID:         record.UserID,
			Name:           record.Name,
			PasswordDigest: record.PasswordDigest,
		})
	}
	for _, record := range posts {
		doc.Posts = append(doc.Posts, store.Post{
			ID:           record.ID,
			Title:        record.Title,
			Body:         record.Body,
			AuthorID:     record.AuthorID,
			AuthorUserID: record.AuthorUserID,
			AuthorName:   record.AuthorName,
			CreatedAt:    record.CreatedAt.UTC(),
			UpdatedAt:    record.UpdatedAt.UTC(),
		})
	}
	return doc, nil
}

// Save replaces the persisted document in full.
func (s *DocumentStore) Save(doc store.Document) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM users").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM posts").Error; err != nil {
			return err
		}

		users := make([]userRecord, 0, len(doc.Users))
		for position, user := range doc.Users {
			users = append(users, userRecord{
				Position:       position,
				ID:             user.ID,
				UserID:         user.UserID,
				Name:           user.Name,
				PasswordDigest: user.PasswordDigest,
			})
		}
		if len(users) > 0 {
			if err := tx.Create(&users).Error; err != nil {
				return err
			}
		}

		posts := make([]postRecord, 0, len(doc.Posts))
		for position, post := range doc.Posts {
			posts = append(posts, postRecord{
				Position:     position,
				ID:           post.ID,
				Title:        post.Title,
				Body:         post.Body,
				AuthorID:     post.AuthorID,
				AuthorUserID: post.AuthorUserID,
				AuthorName:   post.AuthorName,
				CreatedAt:    post.CreatedAt.UTC(),
				UpdatedAt:    post.UpdatedAt.UTC(),
			})
		}
		if len(posts) > 0 {
			if err := tx.Create(&posts).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}
	return nil
}
