package membership

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
)

// Handler exposes membership and assignment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	access  access.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, access: mw}
}

// MountRoutes registers membership routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny(access.Cap(access.ModuleDashboard, access.ActionView)))
		r.Get("/me/memberships", h.listOwnMemberships)
		r.Get("/me/assignments", h.listOwnAssignments)
		r.Post("/assignments/{id}/status", h.respond)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny(
			access.Cap(access.ModuleProjects, access.ActionView),
			access.Cap(access.ModuleProjects, access.ActionViewAssigned),
		))
		r.Get("/projects/{projectID}/members", h.listProjectMembers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll(access.Cap(access.ModuleProjects, access.ActionEdit)))
		r.Post("/projects/{projectID}/members", h.addProjectMember)
		r.Delete("/memberships/{id}", h.removeProjectMember)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll(access.Cap(access.ModuleTasks, access.ActionAssign)))
		r.Post("/tasks/{taskID}/assignments", h.assignTask)
		r.Delete("/assignments/{id}", h.unassignTask)
	})
}

func (h *Handler) listOwnMemberships(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFromContext(r.Context())
	items, err := h.service.Memberships(r.Context(), p.ID)
	if err != nil {
		h.fail(w, "list memberships failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) listOwnAssignments(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFromContext(r.Context())
	items, err := h.service.Assignments(r.Context(), p.ID)
	if err != nil {
		h.fail(w, "list assignments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) listProjectMembers(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFromContext(r.Context())
	items, err := h.service.ProjectMembers(r.Context(), p, chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, "list project members failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) addProjectMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ProjectID = chi.URLParam(r, "projectID")
	if req.Role == "" {
		req.Role = MemberRoleMember
	}
	created, err := h.service.AddProjectMember(r.Context(), access.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "add project member failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) removeProjectMember(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveProjectMember(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "remove project member failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignTask(w http.ResponseWriter, r *http.Request) {
	var req AssignTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.TaskID = chi.URLParam(r, "taskID")
	created, err := h.service.AssignTask(r.Context(), access.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "assign task failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) unassignTask(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UnassignTask(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "unassign task failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.RespondToAssignment(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, "respond to assignment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		level := slog.LevelWarn
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.logger.Log(context.Background(), level, msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
