package membership

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

// Invalidator drops a cached principal snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Jobs enqueues background work triggered by membership changes.
type Jobs interface {
	EnqueueAccessRefresh(ctx context.Context, userID string) error
	EnqueueAssignmentNotice(ctx context.Context, assignmentID, taskID, userID string) error
}

// Service coordinates grants and revokes of project membership and task
// assignments.
type Service struct {
	repo      Repository
	resolver  *access.Resolver
	cache     Invalidator
	jobs      Jobs
	validator *validator.Validate
	logger    *slog.Logger
}

// NewService constructs the membership service. cache and jobs may be nil.
func NewService(repo Repository, resolver *access.Resolver, cache Invalidator, jobs Jobs, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = access.NewResolver(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		cache:     cache,
		jobs:      jobs,
		validator: validator.New(),
		logger:    logger,
	}
}

// Validator exposes the request validator used by the service.
func (s *Service) Validator() *validator.Validate {
	return s.validator
}

// Memberships returns the project memberships held by userID.
func (s *Service) Memberships(ctx context.Context, userID string) ([]ProjectMembership, error) {
	return s.repo.FetchProjectMemberships(ctx, userID)
}

// Assignments returns the task assignments held by userID.
func (s *Service) Assignments(ctx context.Context, userID string) ([]TaskAssignment, error) {
	return s.repo.FetchTaskAssignments(ctx, userID)
}

// ProjectMembers lists the members of a project the actor can see.
func (s *Service) ProjectMembers(ctx context.Context, actor *access.Principal, projectID string) ([]ProjectMembership, error) {
	if !s.resolver.CanViewProject(actor, projectID) {
		return nil, ErrNotFound
	}
	return s.repo.ListProjectMembers(ctx, projectID)
}

// AddProjectMember grants req.UserID membership of req.ProjectID.
func (s *Service) AddProjectMember(ctx context.Context, actor *access.Principal, req AddMemberRequest) (ProjectMembership, error) {
	if err := s.validator.Struct(req); err != nil {
		return ProjectMembership{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !s.resolver.CanEditProject(actor, req.ProjectID) {
		return ProjectMembership{}, fmt.Errorf("add member: %w", ErrForbidden)
	}

	var created ProjectMembership
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.AddProjectMember(ctx, ProjectMembership{
			UserID:     req.UserID,
			ProjectID:  req.ProjectID,
			Role:       req.Role,
			AssignedBy: actor.ID,
		})
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditMemberAdded,
			Entity:   "project_member",
			EntityID: created.ID,
			Meta:     map[string]any{"user_id": created.UserID, "project_id": created.ProjectID, "role": created.Role},
		})
	})
	if err != nil {
		return ProjectMembership{}, fmt.Errorf("add project member: %w", err)
	}
	s.afterChange(ctx, created.UserID)
	return created, nil
}

// RemoveProjectMember revokes a membership.
func (s *Service) RemoveProjectMember(ctx context.Context, actor *access.Principal, membershipID string) error {
	existing, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if !s.resolver.CanEditProject(actor, existing.ProjectID) {
		return fmt.Errorf("remove member: %w", ErrForbidden)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.RemoveProjectMember(ctx, membershipID); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditMemberRemoved,
			Entity:   "project_member",
			EntityID: membershipID,
			Meta:     map[string]any{"user_id": existing.UserID, "project_id": existing.ProjectID},
		})
	})
	if err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}
	s.afterChange(ctx, existing.UserID)
	return nil
}

// AssignTask assigns a task to req.UserID.
func (s *Service) AssignTask(ctx context.Context, actor *access.Principal, req AssignTaskRequest) (TaskAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return TaskAssignment{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !s.canAssign(actor, req.TaskID) {
		return TaskAssignment{}, fmt.Errorf("assign task: %w", ErrForbidden)
	}

	var (
		created   TaskAssignment
		displaced []string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, displaced, err = tx.AssignTask(ctx, TaskAssignment{
			TaskID:     req.TaskID,
			AssignedTo: req.UserID,
			AssignedBy: actor.ID,
		})
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditTaskAssigned,
			Entity:   "task_assignment",
			EntityID: created.ID,
			Meta:     map[string]any{"task_id": created.TaskID, "user_id": created.AssignedTo, "replaced": displaced},
		})
	})
	if err != nil {
		return TaskAssignment{}, fmt.Errorf("assign task: %w", err)
	}
	s.afterChange(ctx, created.AssignedTo)
	// Losing the task is a revoke for the previous assignee.
	for _, userID := range displaced {
		s.afterChange(ctx, userID)
	}
	if s.jobs != nil {
		if err := s.jobs.EnqueueAssignmentNotice(ctx, created.ID, created.TaskID, created.AssignedTo); err != nil {
			s.logger.Warn("enqueue assignment notice", slog.Any("error", err), slog.String("assignment_id", created.ID))
		}
	}
	return created, nil
}

// UnassignTask revokes an assignment.
func (s *Service) UnassignTask(ctx context.Context, actor *access.Principal, assignmentID string) error {
	existing, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}
	if !s.canAssign(actor, existing.TaskID) {
		return fmt.Errorf("unassign task: %w", ErrForbidden)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UnassignTask(ctx, existing); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditTaskUnassigned,
			Entity:   "task_assignment",
			EntityID: existing.ID,
			Meta:     map[string]any{"task_id": existing.TaskID, "user_id": existing.AssignedTo},
		})
	})
	if err != nil {
		return fmt.Errorf("unassign task: %w", err)
	}
	s.afterChange(ctx, existing.AssignedTo)
	return nil
}

// RespondToAssignment lets the assignee accept or decline an assignment.
func (s *Service) RespondToAssignment(ctx context.Context, actor *access.Principal, assignmentID string, req StatusRequest) (TaskAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return TaskAssignment{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	existing, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return TaskAssignment{}, fmt.Errorf("get assignment: %w", err)
	}
	if actor == nil || existing.AssignedTo != actor.ID {
		return TaskAssignment{}, ErrNotAssignee
	}
	if !existing.Status.CanTransition(req.Status) {
		return TaskAssignment{}, ErrInvalidTransition
	}

	var updated TaskAssignment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		updated, err = tx.UpdateAssignmentStatus(ctx, assignmentID, req.Status)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditAssignmentStatus,
			Entity:   "task_assignment",
			EntityID: assignmentID,
			Meta:     map[string]any{"from": existing.Status, "to": req.Status},
		})
	})
	if err != nil {
		return TaskAssignment{}, fmt.Errorf("respond to assignment: %w", err)
	}
	return updated, nil
}

func (s *Service) canAssign(actor *access.Principal, taskID string) bool {
	return s.resolver.HasModuleCapability(actor, access.ModuleTasks, access.ActionAssign) &&
		s.resolver.CanEditTask(actor, taskID)
}

// afterChange drops the affected snapshot and schedules a rebuild. Both are
// best effort once the store write has committed.
func (s *Service) afterChange(ctx context.Context, userID string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("invalidate principal", slog.Any("error", err), slog.String("user_id", userID))
		}
	}
	if s.jobs != nil {
		if err := s.jobs.EnqueueAccessRefresh(ctx, userID); err != nil {
			s.logger.Warn("enqueue access refresh", slog.Any("error", err), slog.String("user_id", userID))
		}
	}
}
