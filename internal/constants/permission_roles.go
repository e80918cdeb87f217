package constants

import roles "copro-backend/internal/pkg/constants"

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewData:        {roles.Viewer, roles.Gestionnaire, roles.Admin, roles.Superadmin},
	ManageBuildings: {roles.Admin, roles.Superadmin},
	ManageCharges:   {roles.Gestionnaire, roles.Admin, roles.Superadmin},
	GenerateCalls:   {roles.Gestionnaire, roles.Admin, roles.Superadmin},
	RecordPayments:  {roles.Gestionnaire, roles.Admin, roles.Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	allowed, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
