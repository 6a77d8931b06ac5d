package users

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
)

const maxGrantsBody = 64 << 10

// Handler manages team endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  *access.Resolver
	access    access.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *access.Resolver, mw access.Middleware) *Handler {
	if resolver == nil {
		resolver = access.NewResolver(nil)
	}
	return &Handler{logger: logger, service: service, resolver: resolver, access: mw, validator: validator.New()}
}

// MountRoutes registers team routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny())
		r.Get("/me", h.me)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny(access.Cap(access.ModuleTeam, access.ActionView)))
		r.Get("/team", h.listTeam)
		r.Get("/team/{id}", h.showMember)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll(access.Cap(access.ModuleTeam, access.ActionEdit)))
		r.Put("/team/{id}/role", h.updateRole)
		r.Put("/team/{id}/grants", h.updateGrants)
	})
}

type meResponse struct {
	ID          string           `json:"id"`
	Role        access.Role      `json:"role"`
	RoleName    string           `json:"role_name"`
	Permissions access.Matrix    `json:"permissions"`
	Grants      access.Grants    `json:"grants"`
	ProjectIDs  []string         `json:"project_ids"`
	Tasks       []access.TaskRef `json:"tasks"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFromContext(r.Context())
	matrix, _ := h.resolver.RolePermissions(p)
	httpx.JSON(w, http.StatusOK, meResponse{
		ID:          p.ID,
		Role:        p.Role,
		RoleName:    access.DisplayName(p.Role),
		Permissions: matrix,
		Grants:      p.Grants,
		ProjectIDs:  nonNil(p.ProjectIDs),
		Tasks:       nonNil(p.Tasks),
	})
}

func (h *Handler) listTeam(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListTeam(r.Context())
	if err != nil {
		h.logger.Error("list team failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, members)
}

func (h *Handler) showMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	member, err := h.service.UpdateRole(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.logger.Warn("update role failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

// updateGrants accepts either spelling of the permissions object.
func (h *Handler) updateGrants(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGrantsBody))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grants, err := DecodeGrants(raw)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	member, err := h.service.UpdateGrants(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), grants)
	if err != nil {
		h.logger.Warn("update grants failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
