package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-pm/odyssey-pm/internal/auth"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
	_ "github.com/odyssey-pm/odyssey-pm/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions []string
	deleted  []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, auth.ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	s.sessions = append(s.sessions, id+"|"+userID)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubRepo) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	var kept []string
	var n int64
	for _, entry := range s.sessions {
		if strings.HasSuffix(entry, "|"+userID) {
			n++
			continue
		}
		kept = append(kept, entry)
	}
	s.sessions = kept
	return n, nil
}

type fixture struct {
	router   chi.Router
	sessions *shared.SessionManager
	repo     *stubRepo
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{ID: "u-1", Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessions, shared.NewCSRFManager("csrfsecret"))

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(r.Context(), sess)
			rec := httptest.NewRecorder()
			next.ServeHTTP(rec, r.WithContext(ctx))
			require.NoError(t, sessions.Commit(ctx, w, r, sess))
			for k, v := range rec.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
		})
	})
	handler.MountRoutes(router)
	return &fixture{router: router, sessions: sessions, repo: repo, redis: mr}
}

func (f *fixture) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestCSRFEndpointIssuesToken(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodGet, "/csrf", "", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.NotEmpty(t, body["csrf_token"])

	cookie := sessionCookie(t, res, f.sessions.CookieName())
	again := f.do(http.MethodGet, "/csrf", "", cookie)
	var second map[string]string
	require.NoError(t, json.NewDecoder(again.Body).Decode(&second))
	assert.Equal(t, body["csrf_token"], second["csrf_token"])
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodPost, "/login", `{"email":"user@test.local","password":"wrongpass"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, f.repo.sessions)

	res = f.do(http.MethodPost, "/login", `{"email":"nobody@test.local","password":"correctpass"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidatesBody(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodPost, "/login", `{"email":"not-an-email","password":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginBindsSessionAndLogoutDestroysIt(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodPost, "/login", `{"email":"user@test.local","password":"correctpass"}`, nil)
	require.Equal(t, http.StatusOK, res.Code)

	var body auth.LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "u-1", body.UserID)
	assert.NotEmpty(t, body.CSRFToken)

	cookie := sessionCookie(t, res, f.sessions.CookieName())
	require.Len(t, f.repo.sessions, 1)
	assert.Equal(t, cookie.Value+"|u-1", f.repo.sessions[0])

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.User())

	out := f.do(http.MethodPost, "/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Equal(t, []string{cookie.Value}, f.repo.deleted)
	assert.False(t, f.redis.Exists("session:"+cookie.Value))
}

func TestInactiveUserCannotLogin(t *testing.T) {
	f := newFixture(t)
	f.repo.user.IsActive = false
	res := f.do(http.MethodPost, "/login", `{"email":"user@test.local","password":"correctpass"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginRegeneratesSessionAndCSRFToken(t *testing.T) {
	f := newFixture(t)
	primed := f.do(http.MethodGet, "/csrf", "", nil)
	var anon map[string]string
	require.NoError(t, json.NewDecoder(primed.Body).Decode(&anon))
	cookie := sessionCookie(t, primed, f.sessions.CookieName())

	res := f.do(http.MethodPost, "/login", `{"email":"user@test.local","password":"correctpass"}`, cookie)
	require.Equal(t, http.StatusOK, res.Code)
	var body auth.LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.NotEqual(t, anon["csrf_token"], body.CSRFToken)

	fresh := sessionCookie(t, res, f.sessions.CookieName())
	assert.NotEqual(t, cookie.Value, fresh.Value)
	assert.False(t, f.redis.Exists("session:"+cookie.Value))
	assert.True(t, f.redis.Exists("session:"+fresh.Value))

	after := f.do(http.MethodGet, "/csrf", "", fresh)
	var current map[string]string
	require.NoError(t, json.NewDecoder(after.Body).Decode(&current))
	assert.Equal(t, body.CSRFToken, current["csrf_token"])
}

func TestRemoveUserSessions(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/login", `{"email":"user@test.local","password":"correctpass"}`, nil)
	f.do(http.MethodPost, "/login", `{"email":"user@test.local","password":"correctpass"}`, nil)
	require.Len(t, f.repo.sessions, 2)

	svc := auth.NewService(f.repo)
	n, err := svc.RemoveUserSessions(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, f.repo.sessions)

	_, err = svc.RemoveUserSessions(context.Background(), " ")
	assert.Error(t, err)
}
