package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/membership"
	"github.com/odyssey-pm/odyssey-pm/internal/observability"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/cache"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/db"
	"github.com/odyssey-pm/odyssey-pm/internal/principals"
	"github.com/odyssey-pm/odyssey-pm/internal/projects"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
	"github.com/odyssey-pm/odyssey-pm/internal/tasks"
	"github.com/odyssey-pm/odyssey-pm/internal/users"
	"github.com/odyssey-pm/odyssey-pm/jobs"
)

// Services holds the shared infrastructure and domain services built from
// Config. The API server, the worker and pmctl all start from here.
type Services struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics

	Resolver   *access.Resolver
	Loader     *principals.Loader
	Principals *principals.Cache
	Jobs       *jobs.Client

	UserRepo       *users.Repository
	MembershipRepo *membership.PGRepository
	ProjectRepo    *projects.Repository
	TaskRepo       *tasks.Repository

	Users       *users.Service
	Memberships *membership.Service
	Projects    *projects.Service
	Tasks       *tasks.Service

	closers []func() error
}

// NewServices connects to Postgres and Redis and assembles every service.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:        cfg.PGMaxConns,
		ConnectAttempts: cfg.PGAttempts,
		RetryDelay:      time.Second,
	})
	if err != nil {
		return nil, err
	}
	s := &Services{Config: cfg, Logger: logger, Pool: pool}
	s.closers = append(s.closers, func() error { pool.Close(); return nil })

	client, err := cache.New(ctx, cfg.RedisAddr, cache.Options{Password: cfg.RedisPassword, DB: cfg.RedisDB, PoolSize: cfg.RedisPoolSize})
	if err != nil {
		// Principal lookups still work without Redis, only uncached.
		logger.Warn("redis unavailable, principal cache disabled", slog.Any("error", err))
	} else {
		s.Redis = client
		s.closers = append(s.closers, client.Close)
	}

	jobClient, err := jobs.NewClient(cfg.AsynqRedis())
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("app: jobs client: %w", err)
	}
	s.Jobs = jobClient
	s.closers = append(s.closers, jobClient.Close)

	s.Metrics = observability.NewMetrics()
	s.wire()
	return s, nil
}

func (s *Services) wire() {
	audit := shared.NewAuditLogger(s.Pool)

	s.Resolver = access.NewResolver(nil, access.WithObserver(s.Metrics))

	s.UserRepo = users.NewRepository(s.Pool, audit)
	s.MembershipRepo = membership.NewRepository(s.Pool, audit)
	s.ProjectRepo = projects.NewRepository(s.Pool, audit)
	s.TaskRepo = tasks.NewRepository(s.Pool, audit)

	s.Loader = principals.NewLoader(s.UserRepo, s.MembershipRepo, s.TaskRepo, s.Logger)
	s.Principals = principals.NewCache(s.Redis, s.Loader, s.Config.AccessCacheTTL, s.Metrics, s.Logger)

	s.Users = users.NewService(s.UserRepo, s.Resolver, s.Principals, s.Logger)
	s.Memberships = membership.NewService(s.MembershipRepo, s.Resolver, s.Principals, s.Jobs, s.Logger)
	s.Projects = projects.NewService(s.ProjectRepo, s.Resolver, s.Principals, s.Logger)
	s.Tasks = tasks.NewService(s.TaskRepo, s.Resolver, s.Principals, s.Logger).WithMembers(s.MembershipRepo)
}

// AccessMiddleware builds the HTTP authorization helpers.
func (s *Services) AccessMiddleware() access.Middleware {
	return access.Middleware{Source: s.Principals, Resolver: s.Resolver, Logger: s.Logger}
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
