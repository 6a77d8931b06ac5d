package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/observability"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
	"github.com/odyssey-pm/odyssey-pm/internal/users"
)

type fixedSource map[string]*access.Principal

func (s fixedSource) Get(ctx context.Context, userID string) (*access.Principal, error) {
	if p, ok := s[userID]; ok {
		return p, nil
	}
	return &access.Principal{ID: userID}, nil
}

type emptyUsers struct{}

func (emptyUsers) ListUsers(ctx context.Context) ([]users.User, error) { return nil, nil }
func (emptyUsers) GetUser(ctx context.Context, id string) (users.User, error) {
	return users.User{}, users.ErrNotFound
}
func (emptyUsers) UpdateRole(ctx context.Context, actorID, id, role string) error { return nil }
func (emptyUsers) UpdatePermissions(ctx context.Context, actorID, id string, raw []byte) error {
	return nil
}

type routerFixture struct {
	handler  http.Handler
	sessions *shared.SessionManager
	client   *redis.Client
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "pm_session", time.Hour, false)
	resolver := access.NewResolver(nil)
	mw := access.Middleware{
		Source:   fixedSource{"admin": {ID: "admin", Role: access.RoleAdmin}},
		Resolver: resolver,
		Logger:   logger,
	}
	usersHandler := users.NewHandler(logger, users.NewService(emptyUsers{}, resolver, nil, logger), resolver, mw)
	cfg := &Config{AppEnv: "development", RateLimitPerMin: 1000}
	handler := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    shared.NewCSRFManager("secret"),
		Access:         mw,
		UsersHandler:   usersHandler,
		Metrics:        observability.NewMetrics(),
	})
	return routerFixture{handler: handler, sessions: sessions, client: client}
}

// signIn stores a session bound to userID and returns its cookie and CSRF token.
func (f routerFixture) signIn(t *testing.T, userID string) (*http.Cookie, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser(userID)
	token, err := shared.NewCSRFManager("secret").EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	res := httptest.NewRecorder()
	require.NoError(t, f.sessions.Commit(context.Background(), res, req, sess))
	return res.Result().Cookies()[0], token
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.Empty(t, res.Result().Cookies())
	keys, err := f.client.Keys(context.Background(), "session:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAnonymousAPIRequestIsUnauthorized(t *testing.T) {
	f := newRouterFixture(t)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSessionUserReachesAPI(t *testing.T) {
	f := newRouterFixture(t)
	cookie, _ := f.signIn(t, "admin")

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "admin", body["role"])
}

func TestUnsafeRequestNeedsCSRFHeader(t *testing.T) {
	f := newRouterFixture(t)
	cookie, token := f.signIn(t, "admin")

	req := httptest.NewRequest(http.MethodPut, "/api/team/u1/role", strings.NewReader(`{"role":"developer"}`))
	req.AddCookie(cookie)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/team/u1/role", strings.NewReader(`{"role":"developer"}`))
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, token)
	res = httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	assert.NotEqual(t, http.StatusForbidden, res.Code)
}

func TestMetricsEndpointRecordsRoutes(t *testing.T) {
	f := newRouterFixture(t)
	f.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `odyssey_http_requests_total{code="200",route="/healthz"} 1`)
}
