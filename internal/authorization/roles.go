// Package authorization names the roles a Propdesk account can hold.
package authorization

import "strings"

// Role constants as carried in the "role" claim of an access token.
const (
	// RolePropertyManager manages portfolios on behalf of owners.
	RolePropertyManager = "property_manager"

	// RoleOwner owns one or more properties.
	RoleOwner = "owner"

	// RoleTechnician carries out maintenance jobs.
	RoleTechnician = "technician"

	// RoleTenant rents a unit.
	RoleTenant = "tenant"
)

var roleLabels = map[string]string{
	RolePropertyManager: "Property manager",
	RoleOwner:           "Owner",
	RoleTechnician:      "Technician",
	RoleTenant:          "Tenant",
}

// ValidRoles returns a list of all valid role names.
func ValidRoles() []string {
	return []string{RolePropertyManager, RoleOwner, RoleTechnician, RoleTenant}
}

// IsValidRole checks if a role name is valid.
func IsValidRole(role string) bool {
	_, ok := roleLabels[role]
	return ok
}

// Label returns a display name for role. Unknown roles are returned as sent
// by the server with underscores replaced.
func Label(role string) string {
	if label, ok := roleLabels[role]; ok {
		return label
	}
	return strings.ReplaceAll(role, "_", " ")
}

// LoginName returns the local part used for a seeded account of role,
// e.g. "property.manager" for RolePropertyManager.
func LoginName(role string) string {
	return strings.ReplaceAll(role, "_", ".")
}
