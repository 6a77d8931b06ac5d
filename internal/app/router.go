package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/auth"
	"github.com/odyssey-pm/odyssey-pm/internal/membership"
	"github.com/odyssey-pm/odyssey-pm/internal/observability"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
	"github.com/odyssey-pm/odyssey-pm/internal/projects"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
	"github.com/odyssey-pm/odyssey-pm/internal/tasks"
	"github.com/odyssey-pm/odyssey-pm/internal/users"
	"github.com/odyssey-pm/odyssey-pm/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	Access            access.Middleware
	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	MembershipHandler *membership.Handler
	ProjectsHandler   *projects.Handler
	TasksHandler      *tasks.Handler
	JobHandler        *jobs.Handler
	Pool              *pgxpool.Pool
	Metrics           *observability.Metrics
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		out := healthResponse{Status: "ok"}
		if params.Pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			out.Database = "ok"
			if err := params.Pool.Ping(ctx); err != nil {
				out.Status, out.Database = "degraded", "unreachable"
				httpx.JSON(w, http.StatusServiceUnavailable, out)
				return
			}
		}
		httpx.JSON(w, http.StatusOK, out)
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Access.Load)
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.MembershipHandler != nil {
			params.MembershipHandler.MountRoutes(r)
		}
		if params.ProjectsHandler != nil {
			params.ProjectsHandler.MountRoutes(r)
		}
		if params.TasksHandler != nil {
			params.TasksHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.Access.RequireAny(access.Cap(access.ModuleTeam, access.ActionEdit)))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
