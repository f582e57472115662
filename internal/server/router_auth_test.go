package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/gazette/internal/identity"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSignupIssuesTokenAndPublicUserView(t *testing.T) {
	server := newTestServer(t)

	recorder := server.do(t, http.MethodPost, "/signup", "", map[string]string{
		"user_id": "alice", "password": "pw1", "name": "Alice",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", recorder.Code, recorder.Body)
	}
	if body := recorder.Body.String(); strings.Contains(body, "password") || strings.Contains(body, "digest") {
		t.Fatalf("response must never carry the password digest: %s", body)
	}
}

func TestSignupRejectsMissingFields(t *testing.T) {
	server := newTestServer(t)

	recorder := server.do(t, http.MethodPost, "/signup", "", map[string]string{
		"user_id": "alice", "name": "Alice",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestSignupRejectsDuplicateHandleWithConflict(t *testing.T) {
	server := newTestServer(t)
	server.signup(t, "alice", "pw1", "Alice")

	recorder := server.do(t, http.MethodPost, "/signup", "", map[string]string{
		"user_id": "alice", "password": "pw2", "name": "Other",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d body %s", recorder.Code, recorder.Body)
	}
	if message := decodeError(t, recorder); message != "User id already taken" {
		t.Fatalf("unexpected error message: %q", message)
	}
}

func TestSigninSucceedsWithRegisteredCredentials(t *testing.T) {
	server := newTestServer(t)
	server.signup(t, "alice", "pw1", "Alice")

	recorder := server.do(t, http.MethodPost, "/signin", "", map[string]string{
		"user_id": "alice", "password": "pw1",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", recorder.Code, recorder.Body)
	}
}

func TestSigninCollapsesFailureCauses(t *testing.T) {
	server := newTestServer(t)
	server.signup(t, "alice", "pw1", "Alice")

	unknownHandle := server.do(t, http.MethodPost, "/signin", "", map[string]string{
		"user_id": "nobody", "password": "pw1",
	})
	wrongPassword := server.do(t, http.MethodPost, "/signin", "", map[string]string{
		"user_id": "alice", "password": "wrong",
	})

	if unknownHandle.Code != http.StatusUnauthorized || wrongPassword.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected statuses: %d, %d", unknownHandle.Code, wrongPassword.Code)
	}
	if decodeError(t, unknownHandle) != decodeError(t, wrongPassword) {
		t.Fatalf("failure causes must be indistinguishable: %s vs %s", unknownHandle.Body, wrongPassword.Body)
	}
}

func TestSigninRejectsMissingFields(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodPost, "/signin", "", map[string]string{"user_id": "alice"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	server := newTestServer(t)

	recorder := server.do(t, http.MethodPost, "/posts", "", map[string]string{"title": "Hi"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if message := decodeError(t, recorder); message != "Missing token" {
		t.Fatalf("unexpected error message: %q", message)
	}

	recorder = server.do(t, http.MethodPost, "/posts", "garbage-token", map[string]string{"title": "Hi"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if message := decodeError(t, recorder); message != "Invalid token" {
		t.Fatalf("unexpected error message: %q", message)
	}
}

type stubTokenValidator struct {
	validateErr error
}

func (s stubTokenValidator) Validate(string) (identity.Claims, error) {
	return identity.Claims{}, s.validateErr
}

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodPost, "/posts", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: stubTokenValidator{validateErr: identity.ErrExpiredToken},
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entries[0].Level)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodPost, "/posts", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: stubTokenValidator{validateErr: errors.New("signature mismatch")},
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}
