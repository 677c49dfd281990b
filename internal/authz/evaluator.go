// Copyright 2026 The CampusKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import "strings"

// HasPermission reports whether the hierarchy grants the given permission.
//
// A nil scope consults the flattened, scope-agnostic permission union. A
// department scope consults only the role assignments of the matching
// department group, staff groups first, then learner groups; each
// assignment is tested against its own permission list, never against the
// flattened union. The PermissionAll super-wildcard short-circuits every
// other rule, scope included. A scope with an empty ID never matches.
func (h *Hierarchy) HasPermission(permission string, scope *Scope) bool {
	if h == nil {
		return false
	}
	for _, granted := range h.AllPermissions {
		if granted == PermissionAll {
			return true
		}
	}
	if scope == nil {
		return matchPermission(h.AllPermissions, permission)
	}
	if scope.Type != ScopeDepartment || scope.ID == "" {
		return false
	}
	for _, set := range []*RoleGroupSet{h.StaffRoles, h.LearnerRoles} {
		if set == nil {
			continue
		}
		for _, group := range set.DepartmentRoles {
			if group.DepartmentID != scope.ID {
				continue
			}
			for _, assignment := range group.Roles {
				if matchPermission(assignment.Permissions, permission) {
					return true
				}
			}
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of the given permissions
// is granted. It is false for an empty list.
func (h *Hierarchy) HasAnyPermission(permissions []string, scope *Scope) bool {
	for _, p := range permissions {
		if h.HasPermission(p, scope) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every one of the given permissions is
// granted. It is vacuously true for an empty list.
func (h *Hierarchy) HasAllPermissions(permissions []string, scope *Scope) bool {
	if h == nil {
		return len(permissions) == 0
	}
	for _, p := range permissions {
		if !h.HasPermission(p, scope) {
			return false
		}
	}
	return true
}

// HasRole reports whether the hierarchy carries a role assignment with the
// given role name. An empty departmentID consults the unscoped global
// roles; otherwise the matching department group is searched, staff groups
// first. Only role names are compared, permissions are irrelevant here.
func (h *Hierarchy) HasRole(role, departmentID string) bool {
	if h == nil {
		return false
	}
	if departmentID == "" {
		for _, assignment := range h.GlobalRoles {
			if assignment.Role == role {
				return true
			}
		}
		return false
	}
	for _, set := range []*RoleGroupSet{h.StaffRoles, h.LearnerRoles} {
		if set == nil {
			continue
		}
		for _, group := range set.DepartmentRoles {
			if group.DepartmentID != departmentID {
				continue
			}
			for _, assignment := range group.Roles {
				if assignment.Role == role {
					return true
				}
			}
		}
	}
	return false
}

// matchPermission tests a permission against a granted list: an exact
// string match or the granted domain wildcard "<domain>:*" suffices.
func matchPermission(granted []string, permission string) bool {
	wildcard := permissionDomain(permission) + ":*"
	for _, g := range granted {
		if g == permission || g == wildcard {
			return true
		}
	}
	return false
}

// permissionDomain extracts the substring before the first colon.
func permissionDomain(permission string) string {
	if i := strings.IndexByte(permission, ':'); i >= 0 {
		return permission[:i]
	}
	return permission
}
