package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/gazette/internal/identity"
	"github.com/MarcoPoloResearchLab/gazette/internal/posts"
	"github.com/MarcoPoloResearchLab/gazette/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsContextKey = "gazette_claims"

var (
	errMissingStore           = errors.New("store dependency required")
	errMissingIdentityService = errors.New("identity service dependency required")
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingPostRepository  = errors.New("post repository dependency required")
)

// TokenValidator checks bearer tokens and returns the claims they carry.
type TokenValidator interface {
	Validate(token string) (identity.Claims, error)
}

// Dependencies wires the HTTP edge to the rest of the system.
type Dependencies struct {
	Store          store.Store
	Identity       *identity.Service
	Tokens         TokenValidator
	Posts          *posts.Repository
	Events         *PostEventBroker
	Metrics        *Metrics
	RateLimiter    *RateLimiter
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewHTTPHandler builds the router. The edge carries no business logic: it
// extracts fields, enforces the bearer-token gate, and maps errors to status
// codes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Identity == nil {
		return nil, errMissingIdentityService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Posts == nil {
		return nil, errMissingPostRepository
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewPostEventBroker()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	handler := &httpHandler{
		store:    deps.Store,
		identity: deps.Identity,
		tokens:   deps.Tokens,
		posts:    deps.Posts,
		events:   events,
		logger:   logger,
	}

	credentialRoutes := router.Group("/")
	if deps.RateLimiter != nil {
		credentialRoutes.Use(deps.RateLimiter.Middleware())
	}
	credentialRoutes.POST("/signup", handler.handleSignup)
	credentialRoutes.POST("/signin", handler.handleSignin)

	router.GET("/healthz", handler.handleHealthz)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	router.GET("/posts", handler.handleListPosts)
	router.GET("/posts/events", handler.handlePostEvents)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/posts", handler.handleCreatePost)
	protected.PUT("/posts/:id", handler.handleUpdatePost)
	protected.DELETE("/posts/:id", handler.handleDeletePost)

	return router, nil
}

type httpHandler struct {
	store    store.Store
	identity *identity.Service
	tokens   TokenValidator
	posts    *posts.Repository
	events   *PostEventBroker
	logger   *zap.Logger

	// writeMu serializes every load-mutate-save composition so two
	// interleaved requests cannot silently drop each other's write.
	writeMu sync.Mutex
}

type signupRequestPayload struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signinRequestPayload struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type createPostRequestPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type updatePostRequestPayload struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

type userPayload struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type authResponsePayload struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    userPayload `json:"user"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request signupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, password, name required"})
		return
	}

	h.writeMu.Lock()
	user, token, err := h.identity.Register(request.UserID, request.Password, request.Name)
	h.writeMu.Unlock()
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		Success: true,
		Token:   token,
		User:    userPayload{ID: user.ID, UserID: user.UserID, Name: user.Name},
	})
}

func (h *httpHandler) handleSignin(c *gin.Context) {
	var request signinRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and password required"})
		return
	}

	user, token, err := h.identity.Authenticate(request.UserID, request.Password)
	if err != nil {
		if errors.Is(err, identity.ErrFieldsRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and password required"})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		Success: true,
		Token:   token,
		User:    userPayload{ID: user.ID, UserID: user.UserID, Name: user.Name},
	})
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	doc, err := h.store.Load()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.posts.List(doc))
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	claims, ok := h.requestClaims(c)
	if !ok {
		return
	}
	var request createPostRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}

	h.writeMu.Lock()
	post, err := h.createPost(claims, request)
	h.writeMu.Unlock()
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.events.Publish(PostEvent{Type: PostEventCreated, PostID: post.ID, Timestamp: post.CreatedAt})
	c.JSON(http.StatusOK, post)
}

func (h *httpHandler) createPost(claims identity.Claims, request createPostRequestPayload) (store.Post, error) {
	doc, err := h.store.Load()
	if err != nil {
		return store.Post{}, err
	}
	doc, post, err := h.posts.Create(doc, claims, request.Title, request.Body)
	if err != nil {
		return store.Post{}, err
	}
	if err := h.store.Save(doc); err != nil {
		return store.Post{}, err
	}
	return post, nil
}

func (h *httpHandler) handleUpdatePost(c *gin.Context) {
	claims, ok := h.requestClaims(c)
	if !ok {
		return
	}
	var request updatePostRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	postID := c.Param("id")
	h.writeMu.Lock()
	post, err := h.updatePost(claims, postID, request)
	h.writeMu.Unlock()
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.events.Publish(PostEvent{Type: PostEventUpdated, PostID: post.ID, Timestamp: post.UpdatedAt})
	c.JSON(http.StatusOK, post)
}

func (h *httpHandler) updatePost(claims identity.Claims, postID string, request updatePostRequestPayload) (store.Post, error) {
	doc, err := h.store.Load()
	if err != nil {
		return store.Post{}, err
	}
	doc, post, err := h.posts.Update(doc, claims, postID, posts.UpdateInput{Title: request.Title, Body: request.Body})
	if err != nil {
		return store.Post{}, err
	}
	if err := h.store.Save(doc); err != nil {
		return store.Post{}, err
	}
	return post, nil
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	claims, ok := h.requestClaims(c)
	if !ok {
		return
	}

	postID := c.Param("id")
	h.writeMu.Lock()
	err := h.deletePost(claims, postID)
	h.writeMu.Unlock()
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.events.Publish(PostEvent{Type: PostEventDeleted, PostID: postID, Timestamp: time.Now().UTC()})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) deletePost(claims identity.Claims, postID string) error {
	doc, err := h.store.Load()
	if err != nil {
		return err
	}
	doc, err = h.posts.Delete(doc, claims, postID)
	if err != nil {
		return err
	}
	return h.store.Save(doc)
}

func (h *httpHandler) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handlePostEvents(c *gin.Context) {
	stream, cancel := h.events.Subscribe(c.Request.Context())
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(string(event.Type), gin.H{
				"post_id":   event.PostID,
				"timestamp": event.Timestamp.UTC().Format(time.RFC3339Nano),
			})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// authorizeRequest validates the bearer token and stores its claims in the
// request context for the handler behind it.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, identity.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	c.Set(claimsContextKey, claims)
	c.Next()
}

func (h *httpHandler) requestClaims(c *gin.Context) (identity.Claims, bool) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return identity.Claims{}, false
	}
	claims, ok := value.(identity.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return identity.Claims{}, false
	}
	return claims, true
}

// respondError maps business-rule failures to their status codes. Anything
// unrecognized is a storage or internal failure and must not leak details.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrFieldsRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, password, name required"})
	case errors.Is(err, posts.ErrTitleRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
	case errors.Is(err, identity.ErrUserIDTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "User id already taken"})
	case errors.Is(err, identity.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	case errors.Is(err, posts.ErrNotAuthor):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
