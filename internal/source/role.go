package source

// Role is the logical slot a tracked file fills.
type Role string

const (
	RoleSchema    Role = "schema"
	RoleQuery     Role = "query"
	RoleModels    Role = "models"
	RoleQueryImpl Role = "query_impl"
)

// Roles lists every role in processing order.
var Roles = []Role{RoleSchema, RoleQuery, RoleModels, RoleQueryImpl}

// Required reports whether a run cannot produce bundles without the role.
func (r Role) Required() bool {
	return r == RoleSchema || r == RoleQuery
}

// Generated reports whether the role holds generated Go code.
func (r Role) Generated() bool {
	return r == RoleModels || r == RoleQueryImpl
}
