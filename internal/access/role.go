package access

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is a canonical role identifier.
type Role string

// Canonical roles.
const (
	RoleNone           Role = ""
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleTeamLead       Role = "team_lead"
	RoleDeveloper      Role = "developer"
)

// roleTable translates stored role names into canonical roles. Legacy names
// (admin, manager, member) and canonical names are both accepted. team_lead has
// no legacy source and is reachable only through direct assignment.
var roleTable = map[string]Role{
	"admin":   RoleAdmin,
	"manager": RoleProjectManager,
	"member":  RoleDeveloper,

	string(RoleProjectManager): RoleProjectManager,
	string(RoleTeamLead):       RoleTeamLead,
	string(RoleDeveloper):      RoleDeveloper,
}

// legacySources is the reverse of the legacy part of roleTable.
var legacySources = map[Role]string{
	RoleAdmin:          "admin",
	RoleProjectManager: "manager",
	RoleDeveloper:      "member",
}

// CanonicalRole maps a stored role name to a canonical Role. Unknown names
// return RoleNone, which every check treats as full denial.
func CanonicalRole(raw string) Role {
	role, ok := roleTable[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return RoleNone
	}
	return role
}

// LegacySource reports the legacy role name that maps onto role.
func LegacySource(role Role) (string, bool) {
	name, ok := legacySources[role]
	return name, ok
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleTeamLead, RoleDeveloper:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human readable label, e.g. "Project Manager".
func DisplayName(role Role) string {
	if !role.Valid() {
		return "No Role"
	}
	// Casers carry state; build one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(string(role), "_", " "))
}
