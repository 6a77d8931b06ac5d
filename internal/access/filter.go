package access

// ProjectRecord is any project value the filter can narrow.
type ProjectRecord interface {
	AccessProjectID() string
}

// TaskRecord is any task value the filter can narrow.
type TaskRecord interface {
	AccessTaskID() string
	AccessProjectID() string
	AccessAssigneeID() string
}

// Filter narrows resource collections to what a principal may see.
type Filter struct {
	resolver *Resolver
}

// NewFilter constructs a Filter on top of resolver.
func NewFilter(resolver *Resolver) *Filter {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &Filter{resolver: resolver}
}

// FilterProjects returns the projects p may view, preserving input order.
// Administrators receive the input unchanged.
func FilterProjects[T ProjectRecord](f *Filter, p *Principal, projects []T) []T {
	if p == nil {
		return []T{}
	}
	if p.Role == RoleAdmin {
		return projects
	}
	out := make([]T, 0, len(projects))
	for _, project := range projects {
		if f.resolver.canViewProject(p, project.AccessProjectID()) {
			out = append(out, project)
		}
	}
	return out
}

// FilterTasks returns the tasks p may view, preserving input order.
// Developers see only tasks assigned to them; project managers and team
// leads see tasks of their member projects.
func FilterTasks[T TaskRecord](f *Filter, p *Principal, tasks []T) []T {
	if p == nil {
		return []T{}
	}
	if p.Role == RoleAdmin {
		return tasks
	}
	out := make([]T, 0, len(tasks))
	for _, task := range tasks {
		if f.resolver.canViewTaskRecord(p, task) {
			out = append(out, task)
		}
	}
	return out
}
