package access_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

type stubSource struct {
	principals map[string]*access.Principal
	err        error
}

func (s stubSource) Get(ctx context.Context, userID string) (*access.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principals[userID], nil
}

func requestAs(t *testing.T, userID string) *http.Request {
	t.Helper()
	sessions := shared.NewSessionManager(nil, "test_session", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if access.PrincipalFromContext(r.Context()) == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAny(t *testing.T) {
	mw := access.Middleware{
		Source: stubSource{principals: map[string]*access.Principal{
			"dev": {ID: "dev", Role: access.RoleDeveloper},
			"pm":  {ID: "pm", Role: access.RoleProjectManager},
		}},
		Resolver: access.NewResolver(nil),
	}
	handler := mw.RequireAny(access.Cap(access.ModuleProjects, access.ActionEdit))(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(t, "pm"))
	assert.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(t, "dev"))
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(t, ""))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAll(t *testing.T) {
	mw := access.Middleware{
		Source: stubSource{principals: map[string]*access.Principal{
			"lead": {ID: "lead", Role: access.RoleTeamLead},
		}},
	}
	both := mw.RequireAll(
		access.Cap(access.ModuleTasks, access.ActionAssign),
		access.Cap(access.ModuleTasks, access.ActionDelete),
	)(okHandler())

	res := httptest.NewRecorder()
	both.ServeHTTP(res, requestAs(t, "lead"))
	assert.Equal(t, http.StatusForbidden, res.Code)

	assignOnly := mw.RequireAll(access.Cap(access.ModuleTasks, access.ActionAssign))(okHandler())
	res = httptest.NewRecorder()
	assignOnly.ServeHTTP(res, requestAs(t, "lead"))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestLoadSurfacesSourceFailure(t *testing.T) {
	mw := access.Middleware{Source: stubSource{err: errors.New("redis down")}}
	res := httptest.NewRecorder()
	mw.Load(okHandler()).ServeHTTP(res, requestAs(t, "u1"))
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestLoadLetsAnonymousThrough(t *testing.T) {
	mw := access.Middleware{Source: stubSource{}}
	res := httptest.NewRecorder()
	mw.Load(okHandler()).ServeHTTP(res, requestAs(t, ""))
	assert.Equal(t, http.StatusTeapot, res.Code)
}
