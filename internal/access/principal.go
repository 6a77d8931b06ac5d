package access

import "time"

// Grants are explicit per-user resource grants stored alongside the account.
type Grants struct {
	ProjectIDs     []string `json:"projectIds"`
	TaskIDs        []string `json:"taskIds"`
	CalendarAccess bool     `json:"calendarAccess"`
	TrackingAccess bool     `json:"trackingAccess"`
}

// TaskRef is the slice of a task the resolver needs.
type TaskRef struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	AssigneeID string `json:"assignee_id"`
}

// AccessTaskID implements TaskRecord.
func (t TaskRef) AccessTaskID() string { return t.ID }

// AccessProjectID implements TaskRecord.
func (t TaskRef) AccessProjectID() string { return t.ProjectID }

// AccessAssigneeID implements TaskRecord.
func (t TaskRef) AccessAssigneeID() string { return t.AssigneeID }

// Principal is a snapshot of the authenticated actor and its loaded
// assignment data. Snapshots are replaced on refresh, never patched.
type Principal struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Grants Grants `json:"grants"`
	// ProjectIDs is the resolved project membership set.
	ProjectIDs []string `json:"project_ids"`
	// Tasks is the known task set: assigned tasks plus tasks of member projects.
	Tasks    []TaskRef `json:"tasks"`
	LoadedAt time.Time `json:"loaded_at"`
}

// GetID returns the principal identifier.
func (p *Principal) GetID() string {
	if p == nil {
		return ""
	}
	return p.ID
}

// IsSuperUser reports whether the principal is an administrator.
func (p *Principal) IsSuperUser() bool {
	return p != nil && p.Role == RoleAdmin
}

// IsMember reports whether projectID is in the resolved membership set.
func (p *Principal) IsMember(projectID string) bool {
	if p == nil || projectID == "" {
		return false
	}
	for _, id := range p.ProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}

// FindTask looks a task up in the known task set.
func (p *Principal) FindTask(taskID string) (TaskRef, bool) {
	if p == nil || taskID == "" {
		return TaskRef{}, false
	}
	for _, t := range p.Tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return TaskRef{}, false
}

// AssignedProjectIDs returns the distinct projects referenced by tasks
// assigned to the principal, in first-seen order.
func (p *Principal) AssignedProjectIDs() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, t := range p.Tasks {
		if t.AssigneeID != p.ID || t.ProjectID == "" {
			continue
		}
		if _, ok := seen[t.ProjectID]; ok {
			continue
		}
		seen[t.ProjectID] = struct{}{}
		ids = append(ids, t.ProjectID)
	}
	return ids
}

func (p *Principal) ownsProject(projectID string) bool {
	if p == nil || projectID == "" {
		return false
	}
	for _, t := range p.Tasks {
		if t.AssigneeID == p.ID && t.ProjectID == projectID {
			return true
		}
	}
	return false
}
