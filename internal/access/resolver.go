package access

// Check names reported to a DecisionObserver.
const (
	CheckModule      = "module"
	CheckViewProject = "project.view"
	CheckEditProject = "project.edit"
	CheckViewTask    = "task.view"
	CheckEditTask    = "task.edit"
	CheckFeature     = "feature"
)

// Feature names an explicit per-user access flag.
type Feature string

// Features carried on Grants.
const (
	FeatureCalendar Feature = "calendar"
	FeatureTracking Feature = "tracking"
)

// DecisionObserver receives the outcome of every resolver decision.
type DecisionObserver interface {
	ObserveDecision(check string, allowed bool)
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithObserver attaches a DecisionObserver.
func WithObserver(o DecisionObserver) ResolverOption {
	return func(r *Resolver) {
		r.observer = o
	}
}

// Resolver answers authorization questions against in-memory principal
// snapshots. It performs no I/O and never fails: anything that cannot be
// affirmatively answered is a denial.
type Resolver struct {
	registry *Registry
	observer DecisionObserver
}

// NewResolver constructs a Resolver. A nil registry falls back to
// DefaultRegistry.
func NewResolver(registry *Registry, opts ...ResolverOption) *Resolver {
	if registry == nil {
		registry = DefaultRegistry()
	}
	r := &Resolver{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry exposes the backing role registry.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// HasModuleCapability reports whether p may perform action on module.
func (r *Resolver) HasModuleCapability(p *Principal, module Module, action Action) bool {
	return r.observe(CheckModule, r.allows(p, module, action))
}

// RolePermissions returns the matrix for the principal's role.
func (r *Resolver) RolePermissions(p *Principal) (Matrix, bool) {
	if p == nil {
		return Matrix{}, false
	}
	return r.registry.Permissions(p.Role)
}

// CanViewProject reports whether p may view projectID.
func (r *Resolver) CanViewProject(p *Principal, projectID string) bool {
	return r.observe(CheckViewProject, r.canViewProject(p, projectID))
}

// CanEditProject reports whether p may edit projectID.
func (r *Resolver) CanEditProject(p *Principal, projectID string) bool {
	return r.observe(CheckEditProject, r.canEditProject(p, projectID))
}

// CanViewTask reports whether p may view taskID. Apart from administrators,
// the task must be part of the principal's known task set.
func (r *Resolver) CanViewTask(p *Principal, taskID string) bool {
	if p.IsSuperUser() && taskID != "" {
		return r.observe(CheckViewTask, true)
	}
	task, ok := p.FindTask(taskID)
	if !ok {
		return r.observe(CheckViewTask, false)
	}
	return r.observe(CheckViewTask, r.canViewTaskRecord(p, task))
}

// CanEditTask reports whether p may edit taskID. Apart from administrators,
// the task must be part of the principal's known task set.
func (r *Resolver) CanEditTask(p *Principal, taskID string) bool {
	if p.IsSuperUser() && taskID != "" {
		return r.observe(CheckEditTask, true)
	}
	task, ok := p.FindTask(taskID)
	if !ok {
		return r.observe(CheckEditTask, false)
	}
	return r.observe(CheckEditTask, r.canEditTaskRecord(p, task))
}

// HasFeatureAccess reports an explicit per-user feature grant.
func (r *Resolver) HasFeatureAccess(p *Principal, feature Feature) bool {
	if p == nil {
		return r.observe(CheckFeature, false)
	}
	if p.Role == RoleAdmin {
		return r.observe(CheckFeature, true)
	}
	switch feature {
	case FeatureCalendar:
		return r.observe(CheckFeature, p.Grants.CalendarAccess)
	case FeatureTracking:
		return r.observe(CheckFeature, p.Grants.TrackingAccess)
	}
	return r.observe(CheckFeature, false)
}

func (r *Resolver) allows(p *Principal, module Module, action Action) bool {
	if p == nil {
		return false
	}
	return r.registry.Allows(p.Role, module, action)
}

func (r *Resolver) canViewProject(p *Principal, projectID string) bool {
	if p == nil || projectID == "" {
		return false
	}
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleProjectManager, RoleTeamLead:
		return r.allows(p, ModuleProjects, ActionViewAssigned) && p.IsMember(projectID)
	case RoleDeveloper:
		return r.allows(p, ModuleProjects, ActionViewAssigned) && p.ownsProject(projectID)
	}
	return false
}

func (r *Resolver) canEditProject(p *Principal, projectID string) bool {
	if p == nil || projectID == "" {
		return false
	}
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleProjectManager:
		return r.allows(p, ModuleProjects, ActionEdit) && p.IsMember(projectID)
	}
	// team leads coordinate but never edit project records; developers are view-only.
	return false
}

func (r *Resolver) canViewTaskRecord(p *Principal, task TaskRecord) bool {
	if p == nil {
		return false
	}
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleProjectManager, RoleTeamLead:
		if !r.allows(p, ModuleTasks, ActionViewTeam) && !r.allows(p, ModuleTasks, ActionViewAssigned) {
			return false
		}
		return p.IsMember(task.AccessProjectID())
	case RoleDeveloper:
		return r.allows(p, ModuleTasks, ActionViewAssigned) && isAssignee(p, task)
	}
	return false
}

func (r *Resolver) canEditTaskRecord(p *Principal, task TaskRecord) bool {
	if p == nil {
		return false
	}
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleProjectManager, RoleTeamLead:
		return r.allows(p, ModuleTasks, ActionEdit) && p.IsMember(task.AccessProjectID())
	case RoleDeveloper:
		return r.allows(p, ModuleTasks, ActionEdit) && isAssignee(p, task)
	}
	return false
}

func isAssignee(p *Principal, task TaskRecord) bool {
	assignee := task.AccessAssigneeID()
	return assignee != "" && assignee == p.ID
}

func (r *Resolver) observe(check string, allowed bool) bool {
	if r.observer != nil {
		r.observer.ObserveDecision(check, allowed)
	}
	return allowed
}
