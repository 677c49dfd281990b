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

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UserTypeRef is one entry of the ordered user-type list returned by the
// authority. Order is significant: the first entry is the primary type.
type UserTypeRef struct {
	Key          string `json:"key"`
	DisplayLabel string `json:"displayLabel"`
}

// RoleRef is a role reference from a membership record. The wire form is
// either a bare role-name string or an object carrying a display label;
// the union is resolved once here and never re-inspected downstream.
type RoleRef struct {
	Name         string
	DisplayLabel string
}

// UnmarshalJSON accepts both wire forms of a role reference.
func (r *RoleRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Name = name
		r.DisplayLabel = ""
		return nil
	}
	var obj struct {
		Role         string `json:"role"`
		DisplayLabel string `json:"displayLabel"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Name = obj.Role
	r.DisplayLabel = obj.DisplayLabel
	return nil
}

// Membership is one department-membership record from the authority. All
// roles of a membership share its access-right set; rights are not
// role-specific within a single membership.
type Membership struct {
	DepartmentID   string    `json:"departmentId"`
	DepartmentName string    `json:"departmentName"`
	IsPrimary      bool      `json:"isPrimary"`
	Roles          []RoleRef `json:"roles"`
	AccessRights   []string  `json:"accessRights"`
}

// Classification holds the role-name sets used to decide which user-type
// branch a membership belongs under. The sets are configuration data, not
// inline literals, so deployments can extend them without code changes.
type Classification struct {
	StaffRoles   []string
	LearnerRoles []string
	// GlobalUserTypes are user-type keys that double as unscoped role
	// assignments (e.g. global-admin).
	GlobalUserTypes []string
}

// DefaultClassification returns the stock role classification.
func DefaultClassification() Classification {
	return Classification{
		StaffRoles:      []string{"instructor", "content-admin", "department-admin"},
		LearnerRoles:    []string{"course-taker", "auditor", "learner-supervisor"},
		GlobalUserTypes: []string{string(UserTypeGlobalAdmin)},
	}
}

// Builder normalizes authority payloads into a Hierarchy.
type Builder struct {
	staff   map[string]struct{}
	learner map[string]struct{}
	global  map[string]struct{}
	titler  cases.Caser
}

// NewBuilder creates a builder with the given classification.
func NewBuilder(class Classification) *Builder {
	return &Builder{
		staff:   toSet(class.StaffRoles),
		learner: toSet(class.LearnerRoles),
		global:  toSet(class.GlobalUserTypes),
		titler:  cases.Title(language.English),
	}
}

// Build constructs a Hierarchy from the ordered user-type list, the
// department-membership records and the authority-supplied flattened
// access-right union. Malformed memberships (missing department id, no
// usable role) are skipped per item; a single bad record never fails the
// whole build.
func (b *Builder) Build(userTypes []UserTypeRef, memberships []Membership, allRights []string) *Hierarchy {
	h := &Hierarchy{
		AllPermissions:  append([]string(nil), allRights...),
		UserTypeDisplay: make(map[UserType]string, len(userTypes)),
		RoleDisplay:     make(map[string]string),
	}

	for _, ref := range userTypes {
		if ref.Key == "" {
			continue
		}
		t := UserType(ref.Key)
		h.AllUserTypes = append(h.AllUserTypes, t)
		label := ref.DisplayLabel
		if label == "" {
			label = b.synthesizeLabel(ref.Key)
		}
		h.UserTypeDisplay[t] = label
		if _, ok := b.global[ref.Key]; ok {
			h.GlobalRoles = append(h.GlobalRoles, RoleAssignment{
				Role:        ref.Key,
				DisplayName: label,
			})
		}
	}
	if len(h.AllUserTypes) > 0 {
		h.PrimaryUserType = h.AllUserTypes[0]
	}

	var staffGroups, learnerGroups []DepartmentRoleGroup
	for _, m := range memberships {
		if m.DepartmentID == "" {
			continue
		}
		group := DepartmentRoleGroup{
			DepartmentID:   m.DepartmentID,
			DepartmentName: m.DepartmentName,
			IsPrimary:      m.IsPrimary,
		}
		var isStaff, isLearner bool
		for _, ref := range m.Roles {
			if ref.Name == "" {
				continue
			}
			label := ref.DisplayLabel
			if label == "" {
				if known, ok := h.RoleDisplay[ref.Name]; ok {
					label = known
				} else {
					label = b.synthesizeLabel(ref.Name)
				}
			}
			h.RoleDisplay[ref.Name] = label
			group.Roles = append(group.Roles, RoleAssignment{
				Role:        ref.Name,
				DisplayName: label,
				ScopeType:   ScopeDepartment,
				ScopeID:     m.DepartmentID,
				ScopeName:   m.DepartmentName,
				Permissions: append([]string(nil), m.AccessRights...),
			})
			if _, ok := b.staff[ref.Name]; ok {
				isStaff = true
			}
			if _, ok := b.learner[ref.Name]; ok {
				isLearner = true
			}
		}
		if len(group.Roles) == 0 {
			continue
		}
		if isStaff {
			staffGroups = append(staffGroups, group)
		}
		if isLearner {
			learnerGroups = append(learnerGroups, group)
		}
	}

	// Branches exist exactly when the user type does. Classified groups
	// are dropped when the user type itself is absent.
	if h.HasUserType(UserTypeStaff) {
		h.StaffRoles = &RoleGroupSet{DepartmentRoles: staffGroups}
	}
	if h.HasUserType(UserTypeLearner) {
		h.LearnerRoles = &RoleGroupSet{DepartmentRoles: learnerGroups}
	}

	return h
}

// synthesizeLabel derives a display label from a dashed identifier, e.g.
// "course-taker" becomes "Course Taker".
func (b *Builder) synthesizeLabel(name string) string {
	return b.titler.String(strings.ReplaceAll(name, "-", " "))
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
