package access

import (
	"sort"
	"sync"
)

// Module is a functional area that capabilities are scoped to.
type Module string

// Modules known to the registry.
const (
	ModuleDashboard    Module = "dashboard"
	ModuleClients      Module = "clients"
	ModuleProjects     Module = "projects"
	ModuleTasks        Module = "tasks"
	ModuleCalendar     Module = "calendar"
	ModuleTimeTracking Module = "timeTracking"
	ModuleTeam         Module = "team"
)

// Action is a capability within a module.
type Action string

// Actions known to the registry.
const (
	ActionView         Action = "view"
	ActionViewAll      Action = "viewAll"
	ActionViewAssigned Action = "viewAssigned"
	ActionViewTeam     Action = "viewTeam"
	ActionCreate       Action = "create"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionAssign       Action = "assign"
)

// Modules lists every module in a stable order.
func Modules() []Module {
	return []Module{
		ModuleDashboard,
		ModuleClients,
		ModuleProjects,
		ModuleTasks,
		ModuleCalendar,
		ModuleTimeTracking,
		ModuleTeam,
	}
}

// Actions lists every action in a stable order.
func Actions() []Action {
	return []Action{
		ActionView,
		ActionViewAll,
		ActionViewAssigned,
		ActionViewTeam,
		ActionCreate,
		ActionEdit,
		ActionDelete,
		ActionAssign,
	}
}

// Capabilities holds the boolean capabilities of one module.
type Capabilities map[Action]bool

// Matrix is the per-module permission matrix of a role.
type Matrix map[Module]Capabilities

// Allows reports whether action is granted on module. Missing keys deny.
func (m Matrix) Allows(module Module, action Action) bool {
	caps, ok := m[module]
	if !ok {
		return false
	}
	return caps[action]
}

// Clone returns a deep copy of the matrix.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for module, caps := range m {
		copied := make(Capabilities, len(caps))
		for action, allowed := range caps {
			copied[action] = allowed
		}
		out[module] = copied
	}
	return out
}

// Registry maps roles to their permission matrix. It is immutable once built.
type Registry struct {
	matrices map[Role]Matrix
}

// NewRegistry builds a registry from the given matrices. Every known module is
// present in every stored matrix, with an empty capability record when the
// input omits it.
func NewRegistry(matrices map[Role]Matrix) *Registry {
	stored := make(map[Role]Matrix, len(matrices))
	for role, matrix := range matrices {
		copied := matrix.Clone()
		for _, module := range Modules() {
			if _, ok := copied[module]; !ok {
				copied[module] = Capabilities{}
			}
		}
		stored[role] = copied
	}
	return &Registry{matrices: stored}
}

// Permissions returns a copy of the matrix for role. Unknown roles yield an
// empty matrix and false; callers treat that as full denial.
func (r *Registry) Permissions(role Role) (Matrix, bool) {
	if r == nil {
		return Matrix{}, false
	}
	matrix, ok := r.matrices[role]
	if !ok {
		return Matrix{}, false
	}
	return matrix.Clone(), true
}

// Allows answers a module/action lookup without copying the matrix.
func (r *Registry) Allows(role Role, module Module, action Action) bool {
	if r == nil {
		return false
	}
	matrix, ok := r.matrices[role]
	if !ok {
		return false
	}
	return matrix.Allows(module, action)
}

// Roles returns the registered roles sorted by name.
func (r *Registry) Roles() []Role {
	if r == nil {
		return nil
	}
	roles := make([]Role, 0, len(r.matrices))
	for role := range r.matrices {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry holding the built-in
// role matrices.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(DefaultMatrices())
	})
	return defaultRegistry
}

func grant(actions ...Action) Capabilities {
	caps := make(Capabilities, len(actions))
	for _, a := range actions {
		caps[a] = true
	}
	return caps
}

// DefaultMatrices returns the built-in role matrices.
func DefaultMatrices() map[Role]Matrix {
	admin := make(Matrix, len(Modules()))
	for _, module := range Modules() {
		admin[module] = grant(Actions()...)
	}
	return map[Role]Matrix{
		RoleAdmin: admin,
		RoleProjectManager: {
			ModuleDashboard:    grant(ActionView),
			ModuleClients:      grant(ActionView, ActionCreate, ActionEdit),
			ModuleProjects:     grant(ActionView, ActionViewAssigned, ActionCreate, ActionEdit),
			ModuleTasks:        grant(ActionView, ActionViewTeam, ActionCreate, ActionEdit, ActionDelete, ActionAssign),
			ModuleCalendar:     grant(ActionView, ActionViewTeam),
			ModuleTimeTracking: grant(ActionView, ActionViewTeam, ActionCreate, ActionEdit),
			ModuleTeam:         grant(ActionView),
		},
		RoleTeamLead: {
			ModuleDashboard:    grant(ActionView),
			ModuleClients:      grant(ActionView),
			ModuleProjects:     grant(ActionView, ActionViewAssigned),
			ModuleTasks:        grant(ActionView, ActionViewTeam, ActionCreate, ActionEdit, ActionAssign),
			ModuleCalendar:     grant(ActionView, ActionViewTeam),
			ModuleTimeTracking: grant(ActionView, ActionViewTeam, ActionCreate, ActionEdit),
			ModuleTeam:         grant(ActionView),
		},
		RoleDeveloper: {
			ModuleDashboard:    grant(ActionView),
			ModuleClients:      grant(),
			ModuleProjects:     grant(ActionView, ActionViewAssigned),
			ModuleTasks:        grant(ActionView, ActionViewAssigned, ActionEdit),
			ModuleCalendar:     grant(ActionView),
			ModuleTimeTracking: grant(ActionView, ActionCreate, ActionEdit),
			ModuleTeam:         grant(),
		},
	}
}
