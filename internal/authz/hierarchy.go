package authz

// UserType tags a category of platform user. A user holds one or more
// user types; the first type returned by the authority is the primary one.
type UserType string

const (
	UserTypeLearner     UserType = "learner"
	UserTypeStaff       UserType = "staff"
	UserTypeGlobalAdmin UserType = "global-admin"
)

// PermissionAll is the super-wildcard. Its presence in AllPermissions
// grants every permission unconditionally, scope included.
const PermissionAll = "system:*"

// ScopeType identifies the kind of qualifier attached to a permission check.
type ScopeType string

// ScopeDepartment narrows a check to a single department's role assignments.
const ScopeDepartment ScopeType = "department"

// Scope qualifies a permission check. A nil *Scope means the unscoped,
// global permission set is consulted.
type Scope struct {
	Type ScopeType
	ID   string
}

// DepartmentScope builds a department-qualified scope.
func DepartmentScope(id string) *Scope {
	return &Scope{Type: ScopeDepartment, ID: id}
}

// RoleAssignment is one role held within one scope, together with the
// access rights granted by holding it there.
type RoleAssignment struct {
	Role        string
	DisplayName string
	ScopeType   ScopeType
	ScopeID     string
	ScopeName   string
	Permissions []string
}

// DepartmentRoleGroup collects the role assignments a user holds in a
// single department.
type DepartmentRoleGroup struct {
	DepartmentID   string
	DepartmentName string
	IsPrimary      bool
	Roles          []RoleAssignment
}

// RoleGroupSet is the per-user-type view over department role groups.
type RoleGroupSet struct {
	DepartmentRoles []DepartmentRoleGroup
}

// Hierarchy is the normalized, per-session snapshot of a user's types,
// roles and permissions. It is built once from an authority payload and
// read concurrently by permission checks; it is never mutated after build.
//
// StaffRoles is non-nil iff AllUserTypes contains UserTypeStaff, and
// LearnerRoles non-nil iff it contains UserTypeLearner. A department
// group may appear under both when its role list mixes staff-classified
// and learner-classified role names.
type Hierarchy struct {
	PrimaryUserType UserType
	AllUserTypes    []UserType
	AllPermissions  []string
	GlobalRoles     []RoleAssignment
	StaffRoles      *RoleGroupSet
	LearnerRoles    *RoleGroupSet
	UserTypeDisplay map[UserType]string
	RoleDisplay     map[string]string
}

// HasUserType reports whether the hierarchy carries the given user type.
func (h *Hierarchy) HasUserType(t UserType) bool {
	if h == nil {
		return false
	}
	for _, ut := range h.AllUserTypes {
		if ut == t {
			return true
		}
	}
	return false
}

// UserTypeDisplayName returns the display label for a user type, falling
// back to the raw key when no label is known.
func (h *Hierarchy) UserTypeDisplayName(t UserType) string {
	if h != nil {
		if label, ok := h.UserTypeDisplay[t]; ok {
			return label
		}
	}
	return string(t)
}

// RoleDisplayName returns the display label for a role name, falling back
// to the raw name when no label is known.
func (h *Hierarchy) RoleDisplayName(role string) string {
	if h != nil {
		if label, ok := h.RoleDisplay[role]; ok {
			return label
		}
	}
	return role
}
