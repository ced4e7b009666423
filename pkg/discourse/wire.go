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

package discourse

import (
	"maps"
	"net/url"

	"github.com/abcxyz/discourse-link/pkg/membership"
)

type apiGroup struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	FullName  string `json:"full_name,omitempty"`
	UserCount int    `json:"user_count,omitempty"`
	Automatic bool   `json:"automatic,omitempty"`
}

func (g *apiGroup) toGroup() *membership.Group {
	return &membership.Group{
		ID:        g.ID,
		Name:      g.Name,
		FullName:  g.FullName,
		UserCount: g.UserCount,
		Automatic: g.Automatic,
	}
}

// apiUser covers the admin user, public profile and update response
// shapes. Fields absent from a given endpoint decode to their zero value.
type apiUser struct {
	ID            int64             `json:"id"`
	Username      string            `json:"username"`
	Name          string            `json:"name"`
	Email         string            `json:"email,omitempty"`
	Active        bool              `json:"active"`
	Approved      bool              `json:"approved"`
	Admin         bool              `json:"admin"`
	Moderator     bool              `json:"moderator"`
	SuspendedAt   *string           `json:"suspended_at"`
	SuspendedTill *string           `json:"suspended_till"`
	Title         *string           `json:"title"`
	Groups        []apiGroup        `json:"groups"`
	UserFields    map[string]string `json:"user_fields"`
}

func (u *apiUser) toUser(employeeIDFieldID string) *membership.User {
	user := &membership.User{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		Active:    u.Active,
		Approved:  u.Approved,
		Admin:     u.Admin,
		Moderator: u.Moderator,
		Suspended: (u.SuspendedAt != nil && *u.SuspendedAt != "") || (u.SuspendedTill != nil && *u.SuspendedTill != ""),
		Groups:    make([]membership.Group, 0, len(u.Groups)),
	}
	if u.Title != nil && *u.Title != "" {
		title := *u.Title
		user.Title = &title
	}
	for _, g := range u.Groups {
		user.Groups = append(user.Groups, *g.toGroup())
	}
	if len(u.UserFields) > 0 {
		user.CustomFields = maps.Clone(u.UserFields)
		user.EmployeeID = u.UserFields[employeeIDFieldID]
	}
	return user
}

type profileResponse struct {
	User *apiUser `json:"user"`
}

type emailsResponse struct {
	Email string `json:"email"`
}

type createUserRequest struct {
	Name       string            `json:"name,omitempty"`
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Username   string            `json:"username"`
	Active     bool              `json:"active"`
	Approved   bool              `json:"approved"`
	UserFields map[string]string `json:"user_fields,omitempty"`
}

type createUserResponse struct {
	Success bool   `json:"success"`
	Active  bool   `json:"active"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// userUpdate is the fixed set of profile fields this connector writes.
// Unset fields are omitted so the forum leaves them alone.
type userUpdate struct {
	Name       *string           `json:"name,omitempty"`
	Title      *string           `json:"title,omitempty"`
	UserFields map[string]string `json:"user_fields,omitempty"`
}

func (u *userUpdate) empty() bool {
	return u.Name == nil && u.Title == nil && len(u.UserFields) == 0
}

type updateUserResponse struct {
	Success string   `json:"success"`
	User    *apiUser `json:"user"`
}

// emailUpdate is sent form-encoded to the email preferences endpoint.
type emailUpdate struct {
	Email string
}

func (e *emailUpdate) values() url.Values {
	v := url.Values{}
	v.Set("email", e.Email)
	return v
}

type suspendRequest struct {
	SuspendUntil string `json:"suspend_until"`
	Reason       string `json:"reason"`
}

type forgotPasswordRequest struct {
	Login string `json:"login"`
}

type addMembersRequest struct {
	Usernames string `json:"usernames"`
}

type groupListOptions struct {
	Page int `url:"page"`
}

type groupListResponse struct {
	Groups         []apiGroup `json:"groups"`
	TotalRowsGroup int        `json:"total_rows_groups"`
	LoadMoreGroups string     `json:"load_more_groups"`
}

type groupResponse struct {
	Group *apiGroup `json:"group"`
}

type memberListOptions struct {
	Offset int `url:"offset"`
	Limit  int `url:"limit,omitempty"`
}

type groupMember struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type memberListResponse struct {
	Members []groupMember `json:"members"`
	Meta    struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"meta"`
}

type activeUsersOptions struct {
	ShowEmails bool `url:"show_emails,omitempty"`
	Page       int  `url:"page,omitempty"`
}
