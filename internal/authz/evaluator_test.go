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

package authz_test

import (
	"testing"

	"github.com/campuskit/campuskit/internal/authz"
)

func staffHierarchy() *authz.Hierarchy {
	return &authz.Hierarchy{
		PrimaryUserType: authz.UserTypeStaff,
		AllUserTypes:    []authz.UserType{authz.UserTypeStaff},
		AllPermissions:  []string{"content:courses:read", "reports:*"},
		StaffRoles: &authz.RoleGroupSet{
			DepartmentRoles: []authz.DepartmentRoleGroup{
				{
					DepartmentID:   "d1",
					DepartmentName: "Mathematics",
					Roles: []authz.RoleAssignment{
						{
							Role:        "instructor",
							ScopeType:   authz.ScopeDepartment,
							ScopeID:     "d1",
							Permissions: []string{"content:courses:read", "content:courses:create"},
						},
					},
				},
				{
					DepartmentID:   "d2",
					DepartmentName: "Physics",
					Roles: []authz.RoleAssignment{
						{
							Role:        "instructor",
							ScopeType:   authz.ScopeDepartment,
							ScopeID:     "d2",
							Permissions: []string{"content:courses:read"},
						},
					},
				},
			},
		},
	}
}

func TestHasPermission_NilHierarchy(t *testing.T) {
	var h *authz.Hierarchy
	if h.HasPermission("content:courses:read", nil) {
		t.Error("nil hierarchy must not grant anything")
	}
	if h.HasPermission(authz.PermissionAll, authz.DepartmentScope("d1")) {
		t.Error("nil hierarchy must not grant anything, scoped or not")
	}
}

func TestHasPermission_SuperWildcard(t *testing.T) {
	h := &authz.Hierarchy{AllPermissions: []string{authz.PermissionAll}}

	cases := []struct {
		name  string
		perm  string
		scope *authz.Scope
	}{
		{"unscoped", "content:courses:delete", nil},
		{"scoped existing department", "content:courses:delete", authz.DepartmentScope("d1")},
		{"scoped unknown department", "anything:at:all", authz.DepartmentScope("nope")},
		{"empty scope id still granted", "anything", authz.DepartmentScope("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !h.HasPermission(tc.perm, tc.scope) {
				t.Errorf("system:* must grant %q regardless of scope", tc.perm)
			}
		})
	}
}

func TestHasPermission_Unscoped(t *testing.T) {
	h := staffHierarchy()

	tests := []struct {
		name string
		perm string
		want bool
	}{
		{"exact match", "content:courses:read", true},
		{"domain wildcard match", "reports:enrollment:export", true},
		{"wildcard same domain other action", "reports:grades:read", true},
		{"no match", "content:courses:create", false},
		{"different domain", "billing:invoices:read", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.HasPermission(tt.perm, nil); got != tt.want {
				t.Errorf("HasPermission(%q) = %v, want %v", tt.perm, got, tt.want)
			}
		})
	}
}

func TestHasPermission_DepartmentScope(t *testing.T) {
	h := staffHierarchy()

	// d1's instructor assignment carries create, d2's does not.
	if !h.HasPermission("content:courses:create", authz.DepartmentScope("d1")) {
		t.Error("d1 assignment grants content:courses:create")
	}
	if h.HasPermission("content:courses:create", authz.DepartmentScope("d2")) {
		t.Error("d2 assignment must not grant content:courses:create")
	}
	if !h.HasPermission("content:courses:read", authz.DepartmentScope("d2")) {
		t.Error("d2 assignment grants content:courses:read")
	}
	if h.HasPermission("content:courses:read", authz.DepartmentScope("d3")) {
		t.Error("unknown department must not match")
	}
}

func TestHasPermission_ScopedChecksIgnoreFlattenedUnion(t *testing.T) {
	h := staffHierarchy()

	// reports:* is in the flattened union but not in any d1 assignment, so
	// a department-scoped check must not see it.
	if h.HasPermission("reports:enrollment:export", authz.DepartmentScope("d1")) {
		t.Error("scoped check must only consult the assignment's own permissions")
	}
}

func TestHasPermission_EmptyScopeIDNeverMatches(t *testing.T) {
	h := staffHierarchy()
	// Even with a group whose id were empty, an empty scope id matches nothing.
	h.StaffRoles.DepartmentRoles = append(h.StaffRoles.DepartmentRoles, authz.DepartmentRoleGroup{
		DepartmentID: "",
		Roles: []authz.RoleAssignment{
			{Role: "instructor", Permissions: []string{"content:courses:read"}},
		},
	})

	if h.HasPermission("content:courses:read", authz.DepartmentScope("")) {
		t.Error("empty scope id must never match")
	}
}

func TestHasPermission_LearnerGroupsAlsoSearched(t *testing.T) {
	h := &authz.Hierarchy{
		AllUserTypes: []authz.UserType{authz.UserTypeLearner},
		LearnerRoles: &authz.RoleGroupSet{
			DepartmentRoles: []authz.DepartmentRoleGroup{
				{
					DepartmentID: "d9",
					Roles: []authz.RoleAssignment{
						{Role: "course-taker", Permissions: []string{"content:courses:read"}},
					},
				},
			},
		},
	}
	if !h.HasPermission("content:courses:read", authz.DepartmentScope("d9")) {
		t.Error("a match in a learner group suffices")
	}
}

func TestHasAnyPermission(t *testing.T) {
	h := staffHierarchy()

	if !h.HasAnyPermission([]string{"billing:invoices:read", "content:courses:read"}, nil) {
		t.Error("one granted permission suffices")
	}
	if h.HasAnyPermission([]string{"billing:invoices:read", "billing:invoices:write"}, nil) {
		t.Error("no granted permission, must be false")
	}
	if h.HasAnyPermission(nil, nil) {
		t.Error("empty list must be false")
	}
}

func TestHasAllPermissions(t *testing.T) {
	h := staffHierarchy()

	if !h.HasAllPermissions([]string{"content:courses:read", "reports:grades:read"}, nil) {
		t.Error("all granted, must be true")
	}
	if h.HasAllPermissions([]string{"content:courses:read", "billing:invoices:read"}, nil) {
		t.Error("one missing permission fails the conjunction")
	}
}

// The empty conjunction is vacuously true, scoped or not. Easy to get
// backwards, so it is pinned explicitly.
func TestHasAllPermissions_EmptyListIsVacuouslyTrue(t *testing.T) {
	h := staffHierarchy()
	if !h.HasAllPermissions(nil, nil) {
		t.Error("empty list must be vacuously true")
	}
	if !h.HasAllPermissions([]string{}, authz.DepartmentScope("d1")) {
		t.Error("empty list must be vacuously true under a scope")
	}
	var nilH *authz.Hierarchy
	if !nilH.HasAllPermissions(nil, nil) {
		t.Error("empty list is vacuously true even without a hierarchy")
	}
}

func TestHasRole(t *testing.T) {
	h := staffHierarchy()
	h.GlobalRoles = []authz.RoleAssignment{{Role: "global-admin", DisplayName: "Global Admin"}}

	if !h.HasRole("global-admin", "") {
		t.Error("global role lookup by name")
	}
	if h.HasRole("instructor", "") {
		t.Error("department role is not a global role")
	}
	if !h.HasRole("instructor", "d1") {
		t.Error("instructor held in d1")
	}
	if h.HasRole("department-admin", "d1") {
		t.Error("role not held in d1")
	}
	if h.HasRole("instructor", "d3") {
		t.Error("unknown department")
	}
}
