package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rohits-web03/vidtube/internal/api"
	"github.com/rohits-web03/vidtube/internal/api/handlers"
	"github.com/rohits-web03/vidtube/internal/api/services"
	"github.com/rohits-web03/vidtube/internal/assets"
	"github.com/rohits-web03/vidtube/internal/auth"
	"github.com/rohits-web03/vidtube/internal/config"
	"github.com/rohits-web03/vidtube/internal/logging"
	"github.com/rohits-web03/vidtube/internal/repositories"
	"github.com/rohits-web03/vidtube/internal/session"
	"github.com/rohits-web03/vidtube/internal/testkit"
	"github.com/rs/cors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type server struct {
	handler  http.Handler
	repo     *repositories.UserRepository
	uploader *testkit.Uploader
	dir      string
}

func newServer(t *testing.T, maxUpload int64) *server {
	t.Helper()
	log := logging.Discard()
	repo := repositories.NewUserRepository(testkit.NewDB(t))
	uploader := &testkit.Uploader{Fail: map[string]error{}}
	dir := filepath.Join(t.TempDir(), "temp")
	pipeline := assets.NewPipeline(dir, uploader, log)
	issuer := auth.NewTokenIssuer(config.TokenConfig{
		AccessSecret:  "access",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh",
		RefreshTTL:    240 * time.Hour,
	})
	creds := auth.NewCredentialManager(repo, issuer, auth.NewPasswordHasher(bcrypt.MinCost), log)
	svc := services.NewUserService(repo, pipeline, creds, log)
	sessions := session.NewManager(http.SameSiteLaxMode, issuer.AccessTTL(), issuer.RefreshTTL())

	return &server{
		handler: api.SetupRouter(api.Deps{
			Users:  handlers.NewUserHandler(svc, pipeline, sessions, log, maxUpload),
			Tokens: issuer,
			Cors:   cors.Options{AllowedOrigins: []string{"http://localhost:5173"}, AllowCredentials: true},
			Logger: log,
		}),
		repo:     repo,
		uploader: uploader,
		dir:      dir,
	}
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func (s *server) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func registerRequest(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	body, contentType := testkit.MultipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func annFields() map[string]string {
	return map[string]string{
		"username": "ann_k",
		"email":    "ann@example.com",
		"password": "pa55word",
		"fullName": "Ann K",
	}
}

func jsonRequest(method, path string, v any) *http.Request {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestDocs(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/docs/doc.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/users/register")
}

func TestRegister(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, env := s.do(t, registerRequest(t, annFields(), map[string]string{"avatar": "me.png"}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 201, env.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "User registered successfully", env.Message)

	var user map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "ann_k", user["username"])
	assert.NotEmpty(t, user["avatar"])
	assert.Equal(t, "", user["coverImage"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "refreshToken")

	assert.Empty(t, testkit.FilesIn(t, s.dir))
}

func TestRegister_Failures(t *testing.T) {
	tests := []struct {
		name    string
		fields  func(map[string]string)
		files   map[string]string
		fail    string
		status  int
		message string
	}{
		{
			name:    "missing field",
			fields:  func(f map[string]string) { f["fullName"] = "  " },
			files:   map[string]string{"avatar": "me.png"},
			status:  http.StatusBadRequest,
			message: "All fields are required",
		},
		{
			name:    "invalid email",
			fields:  func(f map[string]string) { f["email"] = "ann@" },
			files:   map[string]string{"avatar": "me.png", "coverImage": "c.png"},
			status:  http.StatusBadRequest,
			message: "Invalid email",
		},
		{
			name:    "edge punctuation",
			fields:  func(f map[string]string) { f["username"] = "_ann" },
			files:   map[string]string{"avatar": "me.png"},
			status:  http.StatusBadRequest,
			message: "Username cannot start or end with a dot or underscore",
		},
		{
			name:    "missing avatar",
			fields:  func(map[string]string) {},
			files:   map[string]string{"coverImage": "c.png"},
			status:  http.StatusBadRequest,
			message: "Avatar is required",
		},
		{
			name:    "avatar upload fails",
			fields:  func(map[string]string) {},
			files:   map[string]string{"avatar": "me.png", "coverImage": "c.png"},
			fail:    "avatars",
			status:  http.StatusInternalServerError,
			message: "Failed to upload avatar image. Please try again.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, 10<<20)
			if tt.fail != "" {
				s.uploader.Fail[tt.fail] = errors.New("remote unavailable")
			}
			fields := annFields()
			tt.fields(fields)

			rec, env := s.do(t, registerRequest(t, fields, tt.files))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, env.StatusCode)
			assert.False(t, env.Success)
			assert.Equal(t, tt.message, env.Message)
			assert.NotContains(t, rec.Body.String(), "remote unavailable")
			assert.Empty(t, testkit.FilesIn(t, s.dir))
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, _ := s.do(t, registerRequest(t, annFields(), map[string]string{"avatar": "me.png"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	fields := annFields()
	fields["username"] = "Ann_K"
	fields["email"] = "other@example.com"
	rec, env := s.do(t, registerRequest(t, fields, map[string]string{"avatar": "me.png"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User with the same email or username already exists", env.Message)
	assert.Empty(t, testkit.FilesIn(t, s.dir))
}

func TestRegister_BodyTooLarge(t *testing.T) {
	s := newServer(t, 64)
	rec, _ := s.do(t, registerRequest(t, annFields(), map[string]string{"avatar": "me.png"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, testkit.FilesIn(t, s.dir))
}

func TestRegister_NotMultipart(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, _ := s.do(t, jsonRequest(http.MethodPost, "/api/v1/users/register", annFields()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func login(t *testing.T, s *server, body map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return s.do(t, jsonRequest(http.MethodPost, "/api/v1/users/login", body))
}

func TestSessionLifecycle(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, _ := s.do(t, registerRequest(t, annFields(), map[string]string{"avatar": "me.png"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	// login
	rec, env := login(t, s, map[string]string{"username": "ann_k", "password": "pa55word"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User logged in successfully", env.Message)

	var result struct {
		User         map[string]any `json:"user"`
		AccessToken  string         `json:"accessToken"`
		RefreshToken string         `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "ann_k", result.User["username"])
	assert.NotContains(t, result.User, "refreshToken")

	cookies := cookiesByName(rec)
	require.Contains(t, cookies, session.AccessCookie)
	require.Contains(t, cookies, session.RefreshCookie)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, "/", c.Path)
	}
	assert.Equal(t, result.AccessToken, cookies[session.AccessCookie].Value)
	assert.Equal(t, result.RefreshToken, cookies[session.RefreshCookie].Value)

	// current user via cookie
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.AddCookie(cookies[session.AccessCookie])
	rec, env = s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"username":"ann_k"`)

	// refresh via cookie rotates the stored token
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(cookies[session.RefreshCookie])
	rec, env = s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	assert.NotEqual(t, result.RefreshToken, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, cookiesByName(rec)[session.RefreshCookie].Value)

	// the old refresh token is spent
	rec, env = s.do(t, jsonRequest(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": result.RefreshToken}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token is expired or used", env.Message)

	// logout with bearer header
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec, env = s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User logged out successfully", env.Message)
	assert.Contains(t, []string{"", "null"}, string(env.Data))
	cleared := cookiesByName(rec)
	require.Contains(t, cleared, session.AccessCookie)
	require.Contains(t, cleared, session.RefreshCookie)
	assert.Equal(t, -1, cleared[session.AccessCookie].MaxAge)
	assert.Equal(t, -1, cleared[session.RefreshCookie].MaxAge)
	assert.Equal(t, cookies[session.AccessCookie].SameSite, cleared[session.AccessCookie].SameSite)

	// logging out again is still fine
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec, _ = s.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// and the last refresh token no longer works
	rec, _ = s.do(t, jsonRequest(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": pair.RefreshToken}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RepeatNeedsAccessToken(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, _ := s.do(t, registerRequest(t, annFields(), map[string]string{"avatar": "me.png"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = login(t, s, map[string]string{"username": "ann_k", "password": "pa55word"})
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookiesByName(rec)[session.AccessCookie]

	logout := func(c *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
		if c != nil {
			req.AddCookie(c)
		}
		rec, _ := s.do(t, req)
		return rec
	}

	first := logout(access)
	require.Equal(t, http.StatusOK, first.Code)

	// a client still holding the access token can log out again
	assert.Equal(t, http.StatusOK, logout(access).Code)

	// a browser that applied the cleared cookie has nothing left to send
	assert.Equal(t, http.StatusUnauthorized, logout(nil).Code)
}

func TestLogin_Failures(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, _ := s.do(t, registerRequest(t, annFields(), map[string]string{"avatar": "me.png"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := login(t, s, map[string]string{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", env.Message)
	assert.Empty(t, rec.Result().Cookies())

	rec, env = login(t, s, map[string]string{"password": "pa55word"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email or username is required", env.Message)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader("{"))
	rec, env = s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid input", env.Message)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t, 10<<20)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil),
	} {
		rec, env := s.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized request", env.Message)
	}
}

func TestRefresh_MissingToken(t *testing.T) {
	s := newServer(t, 10<<20)
	rec, env := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized request", env.Message)
}

func TestCORS_Preflight(t *testing.T) {
	s := newServer(t, 10<<20)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec, _ := s.do(t, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
