package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/gazette/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrFieldsRequired indicates a registration or signin field was empty.
	ErrFieldsRequired = errors.New("identity: user_id, password, name required")
	// ErrUserIDTaken indicates the requested handle already exists.
	ErrUserIDTaken = errors.New("identity: user id already taken")
	// ErrInvalidCredentials covers both unknown handles and wrong passwords,
	// so a caller cannot tell which check failed.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	errMissingStore        = errors.New("identity: store required")
	errMissingTokenManager = errors.New("identity: token manager required")
)

// ServiceConfig describes the dependencies of the identity service.
type ServiceConfig struct {
	Store    store.Store
	Tokens   *TokenManager
	HashCost int
	Logger   *zap.Logger
}

// Service registers users and authenticates credentials.
type Service struct {
	store    store.Store
	tokens   *TokenManager
	hashCost int
	logger   *zap.Logger
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Tokens == nil {
		return nil, errMissingTokenManager
	}
	hashCost := cfg.HashCost
	if hashCost <= 0 {
		hashCost = bcrypt.DefaultCost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    cfg.Store,
		tokens:   cfg.Tokens,
		hashCost: hashCost,
		logger:   logger,
	}, nil
}

// Register creates a new account under a fresh handle, persists it, and
// issues a bearer token for the new identity.
func (s *Service) Register(userID, password, name string) (store.User, string, error) {
	if strings.TrimSpace(userID) == "" || password == "" || strings.TrimSpace(name) == "" {
		return store.User{}, "", ErrFieldsRequired
	}

	doc, err := s.store.Load()
	if err != nil {
		return store.User{}, "", err
	}
	for _, existing := range doc.Users {
		if existing.UserID == userID {
			return store.User{}, "", ErrUserIDTaken
		}
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return store.User{}, "", fmt.Errorf("identity: hash password: %w", err)
	}

	user := store.User{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		PasswordDigest: string(digest),
	}
	doc.Users = append(doc.Users, user)
	if err := s.store.Save(doc); err != nil {
		return store.User{}, "", err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return store.User{}, "", err
	}
	s.logger.Info("user registered", zap.String("user_id", user.UserID))
	return user, token, nil
}

// Authenticate verifies a handle/password pair and issues a bearer token.
// Unknown handles and wrong passwords return the identical error.
func (s *Service) Authenticate(userID, password string) (store.User, string, error) {
	if strings.TrimSpace(userID) == "" || password == "" {
		return store.User{}, "", ErrFieldsRequired
	}

	doc, err := s.store.Load()
	if err != nil {
		return store.User{}, "", err
	}

	var user store.User
	found := false
	for _, candidate := range doc.Users {
		if candidate.UserID == userID {
			user = candidate
			found = true
			break
		}
	}
	if !found {
		return store.User{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(password)); err != nil {
		return store.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return store.User{}, "", err
	}
	return user, token, nil
}
