package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateRole(ctx context.Context, actorID, id, role string) error
	UpdatePermissions(ctx context.Context, actorID, id string, raw []byte) error
}

// Invalidator drops a cached principal snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	resolver *access.Resolver
	cache    Invalidator
	logger   *slog.Logger
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, resolver *access.Resolver, cache Invalidator, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = access.NewResolver(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, cache: cache, logger: logger}
}

// ListTeam returns every user with role and grants interpreted.
func (s *Service) ListTeam(ctx context.Context) ([]TeamMember, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	members := make([]TeamMember, 0, len(users))
	for _, u := range users {
		members = append(members, s.toMember(u))
	}
	return members, nil
}

// Get returns a single team member.
func (s *Service) Get(ctx context.Context, id string) (TeamMember, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return TeamMember{}, err
	}
	return s.toMember(u), nil
}

// UpdateRole assigns a new role. Legacy names are accepted and stored in
// canonical form. Only administrators may change roles.
func (s *Service) UpdateRole(ctx context.Context, actor *access.Principal, id string, req UpdateRoleRequest) (TeamMember, error) {
	if !actor.IsSuperUser() {
		return TeamMember{}, ErrForbidden
	}
	role := access.CanonicalRole(req.Role)
	if !role.Valid() {
		return TeamMember{}, fmt.Errorf("%w: %q", ErrUnknownRole, req.Role)
	}
	if err := s.repo.UpdateRole(ctx, actor.ID, id, role.String()); err != nil {
		return TeamMember{}, fmt.Errorf("update role: %w", err)
	}
	s.invalidate(ctx, id)
	return s.Get(ctx, id)
}

// UpdateGrants replaces a user's explicit grants.
func (s *Service) UpdateGrants(ctx context.Context, actor *access.Principal, id string, grants access.Grants) (TeamMember, error) {
	if !s.resolver.HasModuleCapability(actor, access.ModuleTeam, access.ActionEdit) {
		return TeamMember{}, ErrForbidden
	}
	raw, err := EncodeGrants(grants)
	if err != nil {
		return TeamMember{}, fmt.Errorf("encode grants: %w", err)
	}
	if err := s.repo.UpdatePermissions(ctx, actor.ID, id, raw); err != nil {
		return TeamMember{}, fmt.Errorf("update grants: %w", err)
	}
	s.invalidate(ctx, id)
	return s.Get(ctx, id)
}

func (s *Service) toMember(u User) TeamMember {
	grants, err := u.Grants()
	if err != nil {
		s.logger.Warn("decode grants", slog.String("user_id", u.ID), slog.Any("error", err))
	}
	role := u.AccessRole()
	return TeamMember{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     role,
		RoleName: access.DisplayName(role),
		Grants:   grants,
		IsActive: u.IsActive,
	}
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("invalidate principal", slog.String("user_id", id), slog.Any("error", err))
	}
}
