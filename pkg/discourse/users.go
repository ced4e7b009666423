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
	"context"
	"fmt"
	"maps"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/abcxyz/discourse-link/pkg/membership"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/pointer"
)

// GetUser retrieves the user with the given id, including their email.
func (c *Client) GetUser(ctx context.Context, id int64) (*membership.User, error) {
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "fetching user", "user_id", id)

	var u apiUser
	if _, err := c.transport.Get(ctx, fmt.Sprintf("/admin/users/%d.json", id), nil, &u); err != nil {
		return nil, fmt.Errorf("failed to fetch user %d: %w", id, err)
	}
	if u.Username == "" {
		return nil, fmt.Errorf("failed to fetch user %d: response has no username", id)
	}
	user := u.toUser(c.employeeIDFieldID)

	email, err := c.getEmail(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	user.Email = email
	return user, nil
}

// GetUserByUsername retrieves the user with the given username, including
// their email.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*membership.User, error) {
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "fetching user", "username", username)

	var resp profileResponse
	if _, err := c.transport.Get(ctx, "/u/"+url.PathEscape(username)+".json", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", username, err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("failed to fetch user %s: response has no user", username)
	}
	user := resp.User.toUser(c.employeeIDFieldID)

	email, err := c.getEmail(ctx, username)
	if err != nil {
		return nil, err
	}
	user.Email = email
	return user, nil
}

func (c *Client) getEmail(ctx context.Context, username string) (string, error) {
	var resp emailsResponse
	if _, err := c.transport.Get(ctx, "/u/"+url.PathEscape(username)+"/emails.json", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch email of user %s: %w", username, err)
	}
	return resp.Email, nil
}

// GetUsers lists one page of the primary group's members. Each member's
// full profile is fetched concurrently. The caller iterates pages.
func (c *Client) GetUsers(ctx context.Context, offset, limit int) (*membership.UserPage, error) {
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "listing users",
		"group", c.primaryGroup,
		"offset", offset,
		"limit", limit,
	)

	var resp memberListResponse
	path := "/groups/" + url.PathEscape(c.primaryGroup) + "/members.json"
	if _, err := c.transport.Get(ctx, path, &memberListOptions{Offset: offset, Limit: limit}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list members of group %s: %w", c.primaryGroup, err)
	}

	users := make([]*membership.User, len(resp.Members))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.concurrency)
	for i, m := range resp.Members {
		eg.Go(func() error {
			u, err := c.GetUser(egctx, m.ID)
			if err != nil {
				return err
			}
			users[i] = u
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch members of group %s: %w", c.primaryGroup, err)
	}

	return &membership.UserPage{
		Users:  users,
		Total:  resp.Meta.Total,
		Offset: offset,
		Limit:  limit,
	}, nil
}

// CreateUser creates an active, approved account and reconciles it to the
// intent. The intent's password is used when set; otherwise one is
// generated. Groups the forum assigned on creation are kept alongside the
// requested ones.
func (c *Client) CreateUser(ctx context.Context, intent *membership.User) (*membership.User, error) {
	if intent == nil || intent.Username == "" || intent.Email == "" {
		return nil, fmt.Errorf("failed to create user: username and email are required")
	}
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "creating user", "username", intent.Username)

	password := intent.Password
	if password == "" {
		password = c.passwordGenerator()
	}
	req := &createUserRequest{
		Name:     intent.Name,
		Email:    intent.Email,
		Password: password,
		Username: intent.Username,
		Active:   true,
		Approved: true,
	}
	if intent.EmployeeID != "" {
		req.UserFields = map[string]string{c.employeeIDFieldID: intent.EmployeeID}
	}

	var resp createUserResponse
	if _, err := c.transport.Post(ctx, "/users.json", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", intent.Username, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("failed to create user %s: %s", intent.Username, resp.Message)
	}

	created, err := c.GetUserByUsername(ctx, intent.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created user: %w", err)
	}

	desired := created.Clone()
	desired.Groups = mergeGroups(created.Groups, intent.Groups)
	if intent.Title != nil {
		desired.Title = pointer.To(*intent.Title)
	}
	if intent.Name != "" {
		desired.Name = intent.Name
	}
	if intent.EmployeeID != "" {
		desired.EmployeeID = intent.EmployeeID
	}

	return c.UpdateUser(ctx, created, desired, created.Username)
}

// UpdateUser moves original to desired. It writes the profile fields,
// changes the email when it differs, then applies the membership plan and
// returns the user as the forum now reports it. A failure partway leaves
// earlier changes in place; every step is safe to re-run.
func (c *Client) UpdateUser(ctx context.Context, original, desired *membership.User, username string) (*membership.User, error) {
	if original == nil || desired == nil {
		return nil, fmt.Errorf("failed to update user: original and desired state are required")
	}
	if username == "" {
		username = original.Username
	}
	userID := original.ID
	if userID == 0 {
		current, err := c.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user %s: %w", username, err)
		}
		userID = current.ID
	}

	logger := logging.FromContext(ctx)
	plan := membership.Diff(original, desired)
	logger.InfoContext(ctx, "updating user",
		"username", username,
		"user_id", userID,
		"email_changed", plan.EmailChanged,
		"actions", fmt.Sprint(plan.Actions),
		"expected_group_ids", plan.Apply(membership.GroupIDs(original.Groups)),
	)

	if upd := c.profileUpdate(desired); !upd.empty() {
		var resp updateUserResponse
		if _, err := c.transport.Put(ctx, "/u/"+url.PathEscape(username)+".json", upd, &resp); err != nil {
			return nil, fmt.Errorf("failed to update user %s: %w", username, err)
		}
		if resp.User == nil {
			return nil, fmt.Errorf("failed to update user %s: response has no user", username)
		}
	}

	if plan.EmailChanged {
		form := (&emailUpdate{Email: plan.Email}).values()
		if _, err := c.transport.PutForm(ctx, "/u/"+url.PathEscape(username)+"/preferences/email.json", form, nil); err != nil {
			return nil, fmt.Errorf("failed to update email of user %s: %w", username, err)
		}
	}

	if err := c.ApplyPlan(ctx, userID, username, plan); err != nil {
		return nil, err
	}

	return c.GetUser(ctx, userID)
}

// profileUpdate builds the profile payload from the fields set on desired.
func (c *Client) profileUpdate(desired *membership.User) *userUpdate {
	upd := &userUpdate{}
	if desired.Name != "" {
		upd.Name = pointer.To(desired.Name)
	}
	if desired.Title != nil {
		upd.Title = pointer.To(*desired.Title)
	}
	if len(desired.CustomFields) > 0 {
		upd.UserFields = maps.Clone(desired.CustomFields)
	}
	if desired.EmployeeID != "" {
		if upd.UserFields == nil {
			upd.UserFields = make(map[string]string, 1)
		}
		upd.UserFields[c.employeeIDFieldID] = desired.EmployeeID
	}
	return upd
}

// ApplyPlan executes the plan's membership actions in order and stops at
// the first failure.
func (c *Client) ApplyPlan(ctx context.Context, userID int64, username string, plan *membership.Plan) error {
	for _, a := range plan.Actions {
		var err error
		switch a.Kind {
		case membership.ActionRemoveFromGroup:
			err = c.RemoveFromGroup(ctx, userID, a.GroupID)
		case membership.ActionAddToGroup:
			err = c.AddToGroup(ctx, a.GroupID, username)
		case membership.ActionGrantAdmin:
			err = c.GrantAdmin(ctx, userID)
		case membership.ActionRevokeAdmin:
			err = c.RevokeAdmin(ctx, userID)
		case membership.ActionGrantModerator:
			err = c.GrantModerator(ctx, userID)
		case membership.ActionRevokeModerator:
			err = c.RevokeModerator(ctx, userID)
		default:
			err = fmt.Errorf("unknown action %s", a.Kind)
		}
		if err != nil {
			return fmt.Errorf("failed to apply %s for user %s: %w", a, username, err)
		}
	}
	return nil
}

// DeleteUser deletes the user with the given id.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.mutate(ctx, "delete", userSubject(id), func() (*Response, error) {
		return c.transport.Delete(ctx, fmt.Sprintf("/admin/users/%d.json", id), nil)
	})
}

// SuspendUser suspends the user with the given id indefinitely.
func (c *Client) SuspendUser(ctx context.Context, id int64) error {
	req := &suspendRequest{
		SuspendUntil: suspendUntil,
		Reason:       c.suspendReason,
	}
	return c.mutate(ctx, "suspend", userSubject(id), func() (*Response, error) {
		return c.transport.Put(ctx, fmt.Sprintf("/admin/users/%d/suspend.json", id), req, nil)
	})
}

// UnsuspendUser lifts a suspension.
func (c *Client) UnsuspendUser(ctx context.Context, id int64) error {
	return c.mutate(ctx, "unsuspend", userSubject(id), func() (*Response, error) {
		return c.transport.Put(ctx, fmt.Sprintf("/admin/users/%d/unsuspend.json", id), nil, nil)
	})
}

// GrantAdmin makes the user an administrator.
func (c *Client) GrantAdmin(ctx context.Context, id int64) error {
	return c.mutate(ctx, "grant admin to", userSubject(id), func() (*Response, error) {
		return c.transport.Put(ctx, fmt.Sprintf("/admin/users/%d/grant_admin.json", id), nil, nil)
	})
}

// RevokeAdmin removes the administrator role.
func (c *Client) RevokeAdmin(ctx context.Context, id int64) error {
	return c.mutate(ctx, "revoke admin from", userSubject(id), func() (*Response, error) {
		return c.transport.Put(ctx, fmt.Sprintf("/admin/users/%d/revoke_admin.json", id), nil, nil)
	})
}

// GrantModerator makes the user a moderator.
func (c *Client) GrantModerator(ctx context.Context, id int64) error {
	return c.mutate(ctx, "grant moderation to", userSubject(id), func() (*Response, error) {
		return c.transport.Put(ctx, fmt.Sprintf("/admin/users/%d/grant_moderation.json", id), nil, nil)
	})
}

// RevokeModerator removes the moderator role.
func (c *Client) RevokeModerator(ctx context.Context, id int64) error {
	return c.mutate(ctx, "revoke moderation from", userSubject(id), func() (*Response, error) {
		return c.transport.Put(ctx, fmt.Sprintf("/admin/users/%d/revoke_moderation.json", id), nil, nil)
	})
}

// ForgotPassword sends the user a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, username string) error {
	req := &forgotPasswordRequest{Login: username}
	return c.mutate(ctx, "send password reset to", "user "+username, func() (*Response, error) {
		return c.transport.Post(ctx, "/session/forgot_password.json", req, nil)
	})
}

// AddToGroup adds the user to an ordinary group.
func (c *Client) AddToGroup(ctx context.Context, groupID int64, username string) error {
	req := &addMembersRequest{Usernames: username}
	return c.mutate(ctx, "add", fmt.Sprintf("user %s to group %d", username, groupID), func() (*Response, error) {
		return c.transport.Put(ctx, fmt.Sprintf("/groups/%d/members.json", groupID), req, nil)
	})
}

// RemoveFromGroup removes the user from an ordinary group.
func (c *Client) RemoveFromGroup(ctx context.Context, userID, groupID int64) error {
	return c.mutate(ctx, "remove", fmt.Sprintf("user %d from group %d", userID, groupID), func() (*Response, error) {
		return c.transport.Delete(ctx, fmt.Sprintf("/admin/users/%d/groups/%d", userID, groupID), nil)
	})
}

func userSubject(id int64) string {
	return "user " + strconv.FormatInt(id, 10)
}

// mergeGroups returns base followed by every group of extra whose id is
// not already in base.
func mergeGroups(base, extra []membership.Group) []membership.Group {
	seen := make(map[int64]struct{}, len(base)+len(extra))
	merged := make([]membership.Group, 0, len(base)+len(extra))
	for _, list := range [][]membership.Group{base, extra} {
		for _, g := range list {
			if _, ok := seen[g.ID]; ok {
				continue
			}
			seen[g.ID] = struct{}{}
			merged = append(merged, g)
		}
	}
	return merged
}
