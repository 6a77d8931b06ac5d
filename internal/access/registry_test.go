package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
)

func TestCanonicalRoleMapsLegacyNames(t *testing.T) {
	cases := map[string]access.Role{
		"admin":           access.RoleAdmin,
		"manager":         access.RoleProjectManager,
		"member":          access.RoleDeveloper,
		"project_manager": access.RoleProjectManager,
		"team_lead":       access.RoleTeamLead,
		"developer":       access.RoleDeveloper,
		"  Manager ":      access.RoleProjectManager,
		"guest":           access.RoleNone,
		"":                access.RoleNone,
	}
	for raw, want := range cases {
		assert.Equal(t, want, access.CanonicalRole(raw), "raw=%q", raw)
	}
}

func TestTeamLeadHasNoLegacySource(t *testing.T) {
	_, ok := access.LegacySource(access.RoleTeamLead)
	assert.False(t, ok)

	name, ok := access.LegacySource(access.RoleProjectManager)
	require.True(t, ok)
	assert.Equal(t, "manager", name)
	assert.Equal(t, access.RoleProjectManager, access.CanonicalRole(name))
}

func TestRegistryUnknownRoleIsEmpty(t *testing.T) {
	matrix, ok := access.DefaultRegistry().Permissions(access.Role("guest"))
	assert.False(t, ok)
	require.NotNil(t, matrix)
	assert.Empty(t, matrix)
	assert.False(t, matrix.Allows(access.ModuleDashboard, access.ActionView))
}

func TestRegistryEveryRoleHasEveryModule(t *testing.T) {
	reg := access.DefaultRegistry()
	require.ElementsMatch(t, []access.Role{
		access.RoleAdmin, access.RoleProjectManager, access.RoleTeamLead, access.RoleDeveloper,
	}, reg.Roles())
	for _, role := range reg.Roles() {
		matrix, ok := reg.Permissions(role)
		require.True(t, ok)
		for _, module := range access.Modules() {
			_, present := matrix[module]
			assert.True(t, present, "role %s missing module %s", role, module)
		}
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg := access.DefaultRegistry()
	matrix, ok := reg.Permissions(access.RoleDeveloper)
	require.True(t, ok)
	matrix[access.ModuleProjects][access.ActionEdit] = true

	again, _ := reg.Permissions(access.RoleDeveloper)
	assert.False(t, again.Allows(access.ModuleProjects, access.ActionEdit))
}

func TestNewRegistryFillsMissingModules(t *testing.T) {
	reg := access.NewRegistry(map[access.Role]access.Matrix{
		access.RoleDeveloper: {access.ModuleTasks: {access.ActionView: true}},
	})
	matrix, ok := reg.Permissions(access.RoleDeveloper)
	require.True(t, ok)
	assert.Len(t, matrix, len(access.Modules()))
	assert.True(t, matrix.Allows(access.ModuleTasks, access.ActionView))
	assert.False(t, matrix.Allows(access.ModuleTeam, access.ActionView))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Project Manager", access.DisplayName(access.RoleProjectManager))
	assert.Equal(t, "Team Lead", access.DisplayName(access.RoleTeamLead))
	assert.Equal(t, "No Role", access.DisplayName(access.RoleNone))
}
