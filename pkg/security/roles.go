package security

// Predefined role names. Unknown role names contribute no permissions.
const (
	RoleAdmin     = "admin"
	RoleArchitect = "architect"
	RolePublisher = "publisher"
	RoleEditor    = "editor"
	RoleReader    = "reader"
)

// PredefinedRoles lists the built-in roles in descending order of privilege.
var PredefinedRoles = []string{RoleAdmin, RoleArchitect, RolePublisher, RoleEditor, RoleReader}

// IsPredefinedRole reports whether name is one of the built-in roles.
func IsPredefinedRole(name string) bool {
	switch name {
	case RoleAdmin, RoleArchitect, RolePublisher, RoleEditor, RoleReader:
		return true
	}
	return false
}

// capabilities holds the four permission booleans a role set resolves to.
type capabilities struct {
	reads        bool
	writes       bool
	schemaWrites bool
	tokenCreates bool
}

// resolveCapabilities folds a role set into capability booleans.
//
//   - admin and architect grant everything
//   - publisher grants read/write plus token creation
//   - editor grants read/write on existing tokens only
//   - reader grants read-only access
func resolveCapabilities(roles []string) capabilities {
	var c capabilities
	for _, role := range roles {
		switch role {
		case RoleAdmin, RoleArchitect:
			c.reads = true
			c.writes = true
			c.schemaWrites = true
			c.tokenCreates = true
		case RolePublisher:
			c.reads = true
			c.writes = true
			c.tokenCreates = true
		case RoleEditor:
			c.reads = true
			c.writes = true
		case RoleReader:
			c.reads = true
		}
	}
	return c
}
