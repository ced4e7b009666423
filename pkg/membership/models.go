// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package membership defines the forum user and group models and the
// reconciliation engine that turns a desired membership state into an
// ordered list of remote actions.
package membership

import (
	"maps"
	"slices"

	"github.com/abcxyz/pkg/pointer"
)

// Reserved group names with special remote semantics.
const (
	// RoleAdmins is granted and revoked through the admin role endpoints.
	RoleAdmins = "admins"
	// RoleModerators is granted and revoked through the moderation endpoints.
	RoleModerators = "moderators"
	// RoleStaff is derived by the forum from the other two roles and is
	// never set directly.
	RoleStaff = "staff"
)

// NoGroupID marks a role group that could not be resolved.
const NoGroupID int64 = -1

// User represents a forum account.
type User struct {
	// ID is the forum's numeric user id. It keys admin operations such as
	// suspension, role grants, deletion and group removal.
	ID int64 `json:"id,omitempty" yaml:"id,omitempty"`
	// Username is the stable handle used by profile, email and update
	// endpoints.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`

	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Active   bool   `json:"active,omitempty" yaml:"active,omitempty"`
	Approved bool   `json:"approved,omitempty" yaml:"approved,omitempty"`

	// Suspended, Admin and Moderator are reported by the forum. They are
	// not written back; roles change through group membership.
	Suspended bool `json:"suspended,omitempty" yaml:"suspended,omitempty"`
	Admin     bool `json:"admin,omitempty" yaml:"admin,omitempty"`
	Moderator bool `json:"moderator,omitempty" yaml:"moderator,omitempty"`

	Groups []Group `json:"groups,omitempty" yaml:"groups,omitempty"`

	// Title is only sent when set.
	Title *string `json:"title,omitempty" yaml:"title,omitempty"`

	// EmployeeID is stored in the custom user field configured as the
	// employee id field.
	EmployeeID string `json:"employee_id,omitempty" yaml:"employeeId,omitempty"`
	// CustomFields holds the raw custom user fields keyed by field id.
	CustomFields map[string]string `json:"custom_fields,omitempty" yaml:"customFields,omitempty"`

	// Password is write-only and is never populated by reads.
	Password string `json:"-" yaml:"password,omitempty"`
}

// Group represents a forum group.
type Group struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	FullName  string `json:"full_name,omitempty" yaml:"fullName,omitempty"`
	UserCount int    `json:"user_count,omitempty" yaml:"userCount,omitempty"`
	// Automatic groups (trust levels, staff, admins, moderators) are
	// managed by the forum itself.
	Automatic bool `json:"automatic,omitempty" yaml:"automatic,omitempty"`
}

// UserPage is one page of the primary group's members.
type UserPage struct {
	Users  []*User
	Total  int
	Offset int
	Limit  int
}

// Content returns the page's users.
func (p *UserPage) Content() []*User {
	return p.Users
}

// HasNext reports whether members remain after this page.
func (p *UserPage) HasNext() bool {
	return p.Offset+len(p.Users) < p.Total && len(p.Users) > 0
}

// GroupPage is one page of the forum's group listing.
type GroupPage struct {
	Groups  []*Group
	Total   int
	HasMore bool
}

// Content returns the page's groups.
func (p *GroupPage) Content() []*Group {
	return p.Groups
}

// HasNext reports whether the forum has more groups after this page.
func (p *GroupPage) HasNext() bool {
	return p.HasMore && len(p.Groups) > 0
}

// GroupNamed returns the first group in groups with the given name.
func GroupNamed(groups []Group, name string) (Group, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Groups = slices.Clone(u.Groups)
	c.CustomFields = maps.Clone(u.CustomFields)
	if u.Title != nil {
		c.Title = pointer.To(*u.Title)
	}
	return &c
}
