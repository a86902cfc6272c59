// Package authz resolves actor identities to organization memberships and
// carries the per-request organization context. The context is an explicit
// parameter everywhere; nothing in this module keeps an ambient "current
// organization".
package authz

// Roles within an organization. Unknown roles resolve to viewer permissions.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Coarse-grained permissions derived from roles.
const (
	PermEntitiesRead       = "entities:read"
	PermEntitiesWrite      = "entities:write"
	PermRelationshipsWrite = "relationships:write"
	PermTransactionsRead   = "transactions:read"
	PermTransactionsWrite  = "transactions:write"
	PermOrganizationAdmin  = "organization:admin"
)

var rolePermissions = map[string][]string{
	RoleOwner: {
		PermEntitiesRead, PermEntitiesWrite, PermRelationshipsWrite,
		PermTransactionsRead, PermTransactionsWrite, PermOrganizationAdmin,
	},
	RoleAdmin: {
		PermEntitiesRead, PermEntitiesWrite, PermRelationshipsWrite,
		PermTransactionsRead, PermTransactionsWrite, PermOrganizationAdmin,
	},
	RoleMember: {
		PermEntitiesRead, PermEntitiesWrite, PermRelationshipsWrite,
		PermTransactionsRead, PermTransactionsWrite,
	},
	RoleViewer: {PermEntitiesRead, PermTransactionsRead},
}

// PermissionsForRole returns the permission set for a role. Unknown roles
// get viewer permissions rather than nothing, matching the source behavior
// of treating any member as at least a reader.
func PermissionsForRole(role string) []string {
	if perms, ok := rolePermissions[role]; ok {
		out := make([]string, len(perms))
		copy(out, perms)
		return out
	}
	return PermissionsForRole(RoleViewer)
}

// Context is the resolved authorization context for one request. It is
// built once by the resolver (or the auth middleware from JWT claims) and
// threaded through every store call.
type Context struct {
	UserID           string   `json:"user_id"`
	UserEntityID     string   `json:"user_entity_id"`
	OrganizationID   string   `json:"organization_id"`
	OrganizationName string   `json:"organization_name"`
	Role             string   `json:"role"`
	Permissions      []string `json:"permissions"`
}

// Can reports whether the context carries the given permission.
func (c *Context) Can(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the context's role is owner or admin.
func (c *Context) IsAdmin() bool {
	return c.Role == RoleOwner || c.Role == RoleAdmin
}
