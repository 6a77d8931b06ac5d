package projects

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

// Handler manages project endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	access  access.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, access: mw}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny(
			access.Cap(access.ModuleProjects, access.ActionView),
			access.Cap(access.ModuleProjects, access.ActionViewAssigned),
		))
		r.Get("/projects", h.list)
		r.Get("/projects/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll(access.Cap(access.ModuleProjects, access.ActionCreate)))
		r.Post("/projects", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll(access.Cap(access.ModuleProjects, access.ActionEdit)))
		r.Patch("/projects/{id}", h.update)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), access.PrincipalFromContext(r.Context()), ListFilter{
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
	})
	if err != nil {
		h.logger.Error("list projects failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, perPage := shared.PageParams(r)
	httpx.JSON(w, http.StatusOK, shared.Paginate(items, page, perPage))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	project, err := h.service.Get(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.Create(r.Context(), access.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.logger.Warn("create project failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.Update(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.logger.Warn("update project failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}
