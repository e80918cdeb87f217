package constants

const (
	Superadmin   = "superadmin"
	Admin        = "admin"
	Gestionnaire = "gestionnaire"
	Viewer       = "viewer"
)

// ValidRoles is the set of allowed values for a user role.
var ValidRoles = []string{Viewer, Gestionnaire, Admin, Superadmin}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
