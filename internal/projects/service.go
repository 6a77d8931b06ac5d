package projects

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
)

// RepositoryPort defines data access methods for projects.
type RepositoryPort interface {
	ListProjects(ctx context.Context, filter ListFilter) ([]Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	CreateProject(ctx context.Context, p Project, managerID string) (Project, error)
	UpdateProject(ctx context.Context, id string, updates map[string]any) error
}

// Invalidator drops a cached principal snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Service applies access rules to project reads and writes.
type Service struct {
	repo      RepositoryPort
	resolver  *access.Resolver
	filter    *access.Filter
	cache     Invalidator
	validator *validator.Validate
	logger    *slog.Logger
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, resolver *access.Resolver, cache Invalidator, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = access.NewResolver(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		filter:    access.NewFilter(resolver),
		cache:     cache,
		validator: validator.New(),
		logger:    logger,
	}
}

// List returns the projects p may view.
func (s *Service) List(ctx context.Context, p *access.Principal, filter ListFilter) ([]Project, error) {
	all, err := s.repo.ListProjects(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return access.FilterProjects(s.filter, p, all), nil
}

// Get returns a project, reporting ErrNotFound when p may not view it.
func (s *Service) Get(ctx context.Context, p *access.Principal, id string) (Project, error) {
	if !s.resolver.CanViewProject(p, id) {
		return Project{}, ErrNotFound
	}
	return s.repo.GetProject(ctx, id)
}

// Create inserts a project. Non-admin creators become its manager.
func (s *Service) Create(ctx context.Context, p *access.Principal, req CreateProjectRequest) (Project, error) {
	if !s.resolver.HasModuleCapability(p, access.ModuleProjects, access.ActionCreate) {
		return Project{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return Project{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := checkDates(req.StartDate, req.EndDate); err != nil {
		return Project{}, err
	}
	status := req.Status
	if status == "" {
		status = StatusPlanning
	}
	managerID := ""
	if !p.IsSuperUser() {
		managerID = p.ID
	}
	created, err := s.repo.CreateProject(ctx, Project{
		ClientID:    req.ClientID,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		CreatedBy:   p.ID,
	}, managerID)
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	if managerID != "" && s.cache != nil {
		if err := s.cache.Invalidate(ctx, managerID); err != nil {
			s.logger.Warn("invalidate principal", slog.String("user_id", managerID), slog.Any("error", err))
		}
	}
	return created, nil
}

// Update applies a partial update when p may edit the project.
func (s *Service) Update(ctx context.Context, p *access.Principal, id string, req UpdateProjectRequest) (Project, error) {
	if !s.resolver.CanEditProject(p, id) {
		return Project{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return Project{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	existing, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}

	start, end := existing.StartDate, existing.EndDate
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = string(*req.Status)
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
		start = req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
		end = req.EndDate
	}
	if err := checkDates(start, end); err != nil {
		return Project{}, err
	}
	if err := s.repo.UpdateProject(ctx, id, updates); err != nil {
		return Project{}, fmt.Errorf("update project: %w", err)
	}
	return s.repo.GetProject(ctx, id)
}
