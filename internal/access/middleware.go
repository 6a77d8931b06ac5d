package access

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

// PrincipalSource yields the current snapshot for a user.
type PrincipalSource interface {
	Get(ctx context.Context, userID string) (*Principal, error)
}

// Capability pairs a module with an action.
type Capability struct {
	Module Module
	Action Action
}

// Cap is shorthand for building a Capability.
func Cap(module Module, action Action) Capability {
	return Capability{Module: module, Action: action}
}

type principalContextKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal loaded by Middleware.Load.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Source   PrincipalSource
	Resolver *Resolver
	Logger   *slog.Logger
}

// Load resolves the session user into a principal snapshot and stores it in
// the request context. Anonymous requests pass through without a principal.
func (m Middleware) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := currentUserID(r)
		if !ok || m.Source == nil {
			next.ServeHTTP(w, r)
			return
		}
		p, err := m.Source.Get(r.Context(), userID)
		if err != nil {
			m.logError("access load principal", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireAny ensures the principal holds at least one of the capabilities.
func (m Middleware) RequireAny(caps ...Capability) func(http.Handler) http.Handler {
	return m.require(caps, false)
}

// RequireAll ensures the principal holds every capability.
func (m Middleware) RequireAll(caps ...Capability) func(http.Handler) http.Handler {
	return m.require(caps, true)
}

func (m Middleware) require(caps []Capability, all bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
				return
			}
			if len(caps) == 0 || m.granted(p, caps, all) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Forbidden(w)
		}))
	}
}

func (m Middleware) granted(p *Principal, caps []Capability, all bool) bool {
	resolver := m.Resolver
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	for _, c := range caps {
		ok := resolver.HasModuleCapability(p, c.Module, c.Action)
		if ok && !all {
			return true
		}
		if !ok && all {
			return false
		}
	}
	return all
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func currentUserID(r *http.Request) (string, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return "", false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return "", false
	}
	return raw, true
}
