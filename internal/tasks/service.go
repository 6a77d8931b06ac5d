package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/membership"
)

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	CreateTask(ctx context.Context, t Task) (Task, error)
	UpdateTask(ctx context.Context, id string, updates map[string]any) error
	DeleteTask(ctx context.Context, actorID, id string) error
}

// Invalidator drops a cached principal snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// MemberLister lists the members of a project.
type MemberLister interface {
	ListProjectMembers(ctx context.Context, projectID string) ([]membership.ProjectMembership, error)
}

// Service applies access rules to task reads and writes.
type Service struct {
	repo      RepositoryPort
	resolver  *access.Resolver
	filter    *access.Filter
	cache     Invalidator
	members   MemberLister
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

// WithMembers lets writes refresh every member of the affected project,
// not only the acting user.
func (s *Service) WithMembers(m MemberLister) *Service {
	s.members = m
	return s
}

// List returns the tasks p may view, optionally within one project.
func (s *Service) List(ctx context.Context, p *access.Principal, projectID string) ([]Task, error) {
	all, err := s.repo.ListTasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return access.FilterTasks(s.filter, p, all), nil
}

// Get returns a task, reporting ErrNotFound when p may not view it.
func (s *Service) Get(ctx context.Context, p *access.Principal, id string) (Task, error) {
	if !s.resolver.CanViewTask(p, id) {
		return Task{}, ErrNotFound
	}
	return s.repo.GetTask(ctx, id)
}

// Create inserts a task into a project p belongs to.
func (s *Service) Create(ctx context.Context, p *access.Principal, req CreateTaskRequest) (Task, error) {
	if !s.resolver.HasModuleCapability(p, access.ModuleTasks, access.ActionCreate) {
		return Task{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !s.resolver.CanViewProject(p, req.ProjectID) {
		return Task{}, ErrForbidden
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	created, err := s.repo.CreateTask(ctx, Task{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      StatusTodo,
		Priority:    priority,
		DueDate:     req.DueDate,
		CreatedBy:   p.ID,
	})
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	var actor []string
	if !p.IsSuperUser() {
		actor = append(actor, p.ID)
	}
	s.invalidateProject(ctx, created.ProjectID, actor...)
	return created, nil
}

// Update applies a partial update when p may edit the task.
func (s *Service) Update(ctx context.Context, p *access.Principal, id string, req UpdateTaskRequest) (Task, error) {
	if !s.resolver.CanEditTask(p, id) {
		return Task{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	updates := make(map[string]any)
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = string(*req.Status)
	}
	if req.Priority != nil {
		updates["priority"] = string(*req.Priority)
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if err := s.repo.UpdateTask(ctx, id, updates); err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return s.repo.GetTask(ctx, id)
}

// Delete removes a task when p holds tasks.delete and may edit it.
func (s *Service) Delete(ctx context.Context, p *access.Principal, id string) error {
	if !s.resolver.HasModuleCapability(p, access.ModuleTasks, access.ActionDelete) || !s.resolver.CanEditTask(p, id) {
		return ErrForbidden
	}
	existing, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTask(ctx, p.ID, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	var assignee []string
	if existing.AssigneeID != "" {
		assignee = append(assignee, existing.AssigneeID)
	}
	s.invalidateProject(ctx, existing.ProjectID, assignee...)
	return nil
}

// invalidateProject drops the snapshots of users plus every member of
// projectID, since their cached task sets include the project's tasks.
func (s *Service) invalidateProject(ctx context.Context, projectID string, users ...string) {
	if s.cache == nil {
		return
	}
	if s.members != nil {
		members, err := s.members.ListProjectMembers(ctx, projectID)
		if err != nil {
			s.logger.Warn("list project members", slog.String("project_id", projectID), slog.Any("error", err))
		}
		for _, m := range members {
			users = append(users, m.UserID)
		}
	}
	seen := make(map[string]struct{}, len(users))
	for _, id := range users {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		s.invalidate(ctx, id)
	}
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("invalidate principal", slog.String("user_id", userID), slog.Any("error", err))
	}
}
