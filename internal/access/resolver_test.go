package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
)

type recordingObserver struct {
	checks map[string][]bool
}

func (o *recordingObserver) ObserveDecision(check string, allowed bool) {
	if o.checks == nil {
		o.checks = make(map[string][]bool)
	}
	o.checks[check] = append(o.checks[check], allowed)
}

func developer(id string, tasks ...access.TaskRef) *access.Principal {
	return &access.Principal{ID: id, Role: access.RoleDeveloper, Tasks: tasks}
}

func TestAdminIsAllowedEverything(t *testing.T) {
	r := access.NewResolver(nil)
	admin := &access.Principal{ID: "root", Role: access.RoleAdmin}
	for _, module := range access.Modules() {
		for _, action := range access.Actions() {
			assert.True(t, r.HasModuleCapability(admin, module, action), "%s.%s", module, action)
		}
	}
	assert.True(t, r.CanViewProject(admin, "any"))
	assert.True(t, r.CanEditProject(admin, "any"))

	assert.True(t, r.CanViewTask(admin, "outside-known-set"))
	assert.True(t, r.CanEditTask(admin, "outside-known-set"))
}

func TestScenarioAAdminDeletesTeam(t *testing.T) {
	r := access.NewResolver(nil)
	assert.True(t, r.HasModuleCapability(&access.Principal{Role: access.RoleAdmin}, access.ModuleTeam, access.ActionDelete))
}

func TestScenarioBDeveloperCannotEditProjects(t *testing.T) {
	r := access.NewResolver(nil)
	assert.False(t, r.HasModuleCapability(developer("u1"), access.ModuleProjects, access.ActionEdit))
}

func TestScenarioDProjectManagerEditsOnlyMemberProjects(t *testing.T) {
	r := access.NewResolver(nil)
	u2 := &access.Principal{ID: "u2", Role: access.RoleProjectManager, ProjectIDs: []string{"p3"}}
	assert.False(t, r.CanEditProject(u2, "p4"))
	assert.True(t, r.CanEditProject(u2, "p3"))
	assert.True(t, r.CanViewProject(u2, "p3"))
	assert.False(t, r.CanViewProject(u2, "p4"))
}

func TestScenarioEUnknownRoleDeniesEverything(t *testing.T) {
	r := access.NewResolver(nil)
	guest := &access.Principal{ID: "g", Role: access.CanonicalRole("guest")}
	for _, module := range access.Modules() {
		for _, action := range access.Actions() {
			assert.False(t, r.HasModuleCapability(guest, module, action))
		}
	}
	_, ok := r.RolePermissions(guest)
	assert.False(t, ok)
}

func TestUndefinedPairsAreDenied(t *testing.T) {
	r := access.NewResolver(nil)
	dev := developer("u1")
	assert.False(t, r.HasModuleCapability(dev, access.Module("billing"), access.ActionView))
	assert.False(t, r.HasModuleCapability(dev, access.ModuleTasks, access.Action("archive")))
	assert.False(t, r.HasModuleCapability(dev, access.ModuleTeam, access.ActionView))
}

func TestNilPrincipalIsDenied(t *testing.T) {
	r := access.NewResolver(nil)
	assert.False(t, r.HasModuleCapability(nil, access.ModuleDashboard, access.ActionView))
	assert.False(t, r.CanViewProject(nil, "p1"))
	assert.False(t, r.CanEditProject(nil, "p1"))
	assert.False(t, r.CanViewTask(nil, "t1"))
	assert.False(t, r.CanEditTask(nil, "t1"))
	assert.False(t, r.HasFeatureAccess(nil, access.FeatureCalendar))
	_, ok := r.RolePermissions(nil)
	assert.False(t, ok)
}

func TestDeveloperViewsProjectOnlyThroughOwnTasks(t *testing.T) {
	r := access.NewResolver(nil)
	dev := developer("u1",
		access.TaskRef{ID: "t1", ProjectID: "p1", AssigneeID: "u1"},
		access.TaskRef{ID: "t2", ProjectID: "p2", AssigneeID: "someone-else"},
	)
	dev.ProjectIDs = []string{"p3"}

	assert.True(t, r.CanViewProject(dev, "p1"))
	assert.False(t, r.CanViewProject(dev, "p2"))
	assert.False(t, r.CanViewProject(dev, "p3"), "membership does not grant developers project access")
	assert.False(t, r.CanEditProject(dev, "p1"))
}

func TestTeamLeadNeverEditsProjects(t *testing.T) {
	r := access.NewResolver(nil)
	lead := &access.Principal{ID: "l1", Role: access.RoleTeamLead, ProjectIDs: []string{"p1"}}
	assert.True(t, r.CanViewProject(lead, "p1"))
	assert.False(t, r.CanEditProject(lead, "p1"))
}

func TestTaskChecks(t *testing.T) {
	r := access.NewResolver(nil)
	tasks := []access.TaskRef{
		{ID: "t1", ProjectID: "p1", AssigneeID: "dev"},
		{ID: "t2", ProjectID: "p2", AssigneeID: "other"},
	}

	pm := &access.Principal{ID: "pm", Role: access.RoleProjectManager, ProjectIDs: []string{"p1"}, Tasks: tasks}
	assert.True(t, r.CanViewTask(pm, "t1"))
	assert.True(t, r.CanEditTask(pm, "t1"))
	assert.False(t, r.CanViewTask(pm, "t2"))
	assert.False(t, r.CanEditTask(pm, "t2"))

	lead := &access.Principal{ID: "lead", Role: access.RoleTeamLead, ProjectIDs: []string{"p2"}, Tasks: tasks}
	assert.True(t, r.CanViewTask(lead, "t2"))
	assert.True(t, r.CanEditTask(lead, "t2"))
	assert.False(t, r.CanViewTask(lead, "t1"))

	dev := developer("dev", tasks...)
	assert.True(t, r.CanViewTask(dev, "t1"))
	assert.True(t, r.CanEditTask(dev, "t1"))
	assert.False(t, r.CanViewTask(dev, "t2"))
	assert.False(t, r.CanEditTask(dev, "t2"))
}

func TestUnknownTaskIsDenied(t *testing.T) {
	r := access.NewResolver(nil)
	pm := &access.Principal{ID: "pm", Role: access.RoleProjectManager, ProjectIDs: []string{"p1"}}
	assert.False(t, r.CanViewTask(pm, "missing"))
	assert.False(t, r.CanEditTask(pm, "missing"))
}

func TestFeatureAccess(t *testing.T) {
	r := access.NewResolver(nil)
	dev := developer("u1")
	dev.Grants.CalendarAccess = true
	assert.True(t, r.HasFeatureAccess(dev, access.FeatureCalendar))
	assert.False(t, r.HasFeatureAccess(dev, access.FeatureTracking))
	assert.False(t, r.HasFeatureAccess(dev, access.Feature("reports")))
	assert.True(t, r.HasFeatureAccess(&access.Principal{Role: access.RoleAdmin}, access.FeatureTracking))
}

func TestObserverSeesDecisions(t *testing.T) {
	obs := &recordingObserver{}
	r := access.NewResolver(nil, access.WithObserver(obs))
	dev := developer("u1")

	r.HasModuleCapability(dev, access.ModuleDashboard, access.ActionView)
	r.CanEditProject(dev, "p1")
	r.CanViewTask(dev, "missing")

	assert.Equal(t, []bool{true}, obs.checks[access.CheckModule])
	assert.Equal(t, []bool{false}, obs.checks[access.CheckEditProject])
	assert.Equal(t, []bool{false}, obs.checks[access.CheckViewTask])
}
