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

// Package connector exposes forum accounts and groups as the accounts and
// entitlements an identity governance platform manages.
package connector

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/abcxyz/discourse-link/pkg/discourse"
	"github.com/abcxyz/discourse-link/pkg/membership"
	"github.com/abcxyz/discourse-link/pkg/paging"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/pointer"
)

// DefaultPageSize is how many members are requested per listing page.
const DefaultPageSize = 50

// Forum provides the forum operations the connector drives.
type Forum interface {
	TestConnection(ctx context.Context) error
	GetUser(ctx context.Context, id int64) (*membership.User, error)
	GetUsers(ctx context.Context, offset, limit int) (*membership.UserPage, error)
	CreateUser(ctx context.Context, intent *membership.User) (*membership.User, error)
	UpdateUser(ctx context.Context, original, desired *membership.User, username string) (*membership.User, error)
	DeleteUser(ctx context.Context, id int64) error
	SuspendUser(ctx context.Context, id int64) error
	UnsuspendUser(ctx context.Context, id int64) error
	ForgotPassword(ctx context.Context, username string) error
	ListAllGroups(ctx context.Context) ([]*membership.Group, error)
}

var _ Forum = (*discourse.Client)(nil)

// Option configures a Connector.
type Option func(c *Connector)

// WithPageSize sets how many members are requested per listing page.
func WithPageSize(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// Connector implements account lifecycle operations against a forum.
type Connector struct {
	forum    Forum
	pageSize int
}

// New creates a Connector backed by forum.
func New(forum Forum, opts ...Option) *Connector {
	c := &Connector{
		forum:    forum,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TestConnection checks that the forum is reachable with the configured
// credentials.
func (c *Connector) TestConnection(ctx context.Context) error {
	if err := c.forum.TestConnection(ctx); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetAccount returns the account with the given identity.
func (c *Connector) GetAccount(ctx context.Context, identity string) (*Account, error) {
	id, err := parseIdentity(identity)
	if err != nil {
		return nil, err
	}
	u, err := c.forum.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", identity, err)
	}
	return toAccount(u), nil
}

// ListAccounts returns every member of the primary group.
func (c *Connector) ListAccounts(ctx context.Context) ([]*Account, error) {
	users, err := paging.Paginate(ctx, paging.OffsetRequest{Offset: 0, Limit: c.pageSize},
		func(ctx context.Context, req paging.PageRequest[paging.Window]) (paging.Page[*membership.User], error) {
			w := req.Opt()
			page, err := c.forum.GetUsers(ctx, w.Offset, w.Limit)
			if err != nil {
				return nil, err
			}
			return page, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]*Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, toAccount(u))
	}
	return accounts, nil
}

// ListEntitlements returns every forum group.
func (c *Connector) ListEntitlements(ctx context.Context) ([]*Entitlement, error) {
	groups, err := c.forum.ListAllGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}
	entitlements := make([]*Entitlement, 0, len(groups))
	for _, g := range groups {
		entitlements = append(entitlements, toEntitlement(g))
	}
	return entitlements, nil
}

// CreateAccount creates an account from attrs. An empty password is
// replaced by a generated one. Groups are resolved by name. A suspended
// account is suspended right after creation.
func (c *Connector) CreateAccount(ctx context.Context, attrs *Attributes, password string) (*Account, error) {
	if attrs == nil {
		return nil, fmt.Errorf("failed to create account: attributes are required")
	}
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "creating account", "username", attrs.Username)

	intent := &membership.User{
		Username:   attrs.Username,
		Name:       attrs.Name,
		Email:      attrs.Email,
		EmployeeID: attrs.EmployeeID,
		Password:   password,
	}
	if attrs.Title != nil {
		intent.Title = pointer.To(*attrs.Title)
	}
	if len(attrs.Groups) > 0 {
		byName, err := c.groupsByName(ctx)
		if err != nil {
			return nil, err
		}
		var merr error
		for _, name := range attrs.Groups {
			g, ok := byName[name]
			if !ok {
				merr = errors.Join(merr, fmt.Errorf("unknown group %q", name))
				continue
			}
			intent.Groups = append(intent.Groups, g)
		}
		if merr != nil {
			return nil, fmt.Errorf("failed to create account %s: %w", attrs.Username, merr)
		}
	}

	u, err := c.forum.CreateUser(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if !attrs.Suspended {
		return toAccount(u), nil
	}

	if err := c.forum.SuspendUser(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("failed to suspend created account %s: %w", u.Username, err)
	}
	u, err = c.forum.GetUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get created account: %w", err)
	}
	return toAccount(u), nil
}

// UpdateAccount applies changes to a copy of the account's current state
// and reconciles the forum to it.
func (c *Connector) UpdateAccount(ctx context.Context, identity string, changes []Change) (*Account, error) {
	id, err := parseIdentity(identity)
	if err != nil {
		return nil, err
	}
	original, err := c.forum.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", identity, err)
	}

	var byName map[string]membership.Group
	if slices.ContainsFunc(changes, func(ch Change) bool { return ch.Attribute == AttributeGroups }) {
		if byName, err = c.groupsByName(ctx); err != nil {
			return nil, err
		}
	}

	desired := original.Clone()
	if err := applyChanges(desired, changes, byName); err != nil {
		return nil, fmt.Errorf("invalid changes for account %s: %w", identity, err)
	}

	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "updating account",
		"identity", identity,
		"username", original.Username,
		"changes", len(changes),
	)

	u, err := c.forum.UpdateUser(ctx, original, desired, original.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to update account %s: %w", identity, err)
	}
	return toAccount(u), nil
}

// DeleteAccount deletes the account with the given identity.
func (c *Connector) DeleteAccount(ctx context.Context, identity string) error {
	id, err := parseIdentity(identity)
	if err != nil {
		return err
	}
	if err := c.forum.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete account %s: %w", identity, err)
	}
	return nil
}

// EnableAccount lifts a suspension.
func (c *Connector) EnableAccount(ctx context.Context, identity string) (*Account, error) {
	return c.setSuspended(ctx, identity, false)
}

// DisableAccount suspends the account.
func (c *Connector) DisableAccount(ctx context.Context, identity string) (*Account, error) {
	return c.setSuspended(ctx, identity, true)
}

func (c *Connector) setSuspended(ctx context.Context, identity string, suspend bool) (*Account, error) {
	id, err := parseIdentity(identity)
	if err != nil {
		return nil, err
	}
	op, call := "enable", c.forum.UnsuspendUser
	if suspend {
		op, call = "disable", c.forum.SuspendUser
	}
	if err := call(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to %s account %s: %w", op, identity, err)
	}
	u, err := c.forum.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", identity, err)
	}
	return toAccount(u), nil
}

// ResetPassword sends the account a password reset email.
func (c *Connector) ResetPassword(ctx context.Context, identity string) error {
	id, err := parseIdentity(identity)
	if err != nil {
		return err
	}
	u, err := c.forum.GetUser(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get account %s: %w", identity, err)
	}
	if err := c.forum.ForgotPassword(ctx, u.Username); err != nil {
		return fmt.Errorf("failed to reset password of account %s: %w", identity, err)
	}
	return nil
}

func (c *Connector) groupsByName(ctx context.Context) (map[string]membership.Group, error) {
	groups, err := c.forum.ListAllGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve groups: %w", err)
	}
	byName := make(map[string]membership.Group, len(groups))
	for _, g := range groups {
		byName[g.Name] = *g
	}
	return byName, nil
}

// applyChanges applies every change to u and reports every invalid one.
func applyChanges(u *membership.User, changes []Change, groups map[string]membership.Group) error {
	var merr error
	for _, ch := range changes {
		if err := applyChange(u, ch, groups); err != nil {
			merr = errors.Join(merr, fmt.Errorf("%s %s: %w", ch.Op, ch.Attribute, err))
		}
	}
	return merr
}

func applyChange(u *membership.User, ch Change, groups map[string]membership.Group) error {
	if ch.Attribute == AttributeGroups {
		return applyGroupChange(u, ch, groups)
	}

	if ch.Op != OpSet {
		return fmt.Errorf("operation %q is not supported for a single-valued attribute", ch.Op)
	}
	v, err := stringValue(ch.Value)
	if err != nil {
		return err
	}
	switch ch.Attribute {
	case AttributeName:
		u.Name = v
	case AttributeEmail:
		if v == "" {
			return fmt.Errorf("email cannot be cleared")
		}
		u.Email = v
	case AttributeTitle:
		u.Title = pointer.To(v)
	case AttributeEmployeeID:
		u.EmployeeID = v
	default:
		return fmt.Errorf("attribute is not updatable")
	}
	return nil
}

// isRoleGroup reports whether name is a role group. Role groups are
// automatic but follow the desired groups like any other.
func isRoleGroup(name string) bool {
	switch name {
	case membership.RoleAdmins, membership.RoleModerators, membership.RoleStaff:
		return true
	}
	return false
}

func applyGroupChange(u *membership.User, ch Change, groups map[string]membership.Group) error {
	names, err := stringValues(ch.Value)
	if err != nil {
		return err
	}

	switch ch.Op {
	case OpRemove:
		u.Groups = slices.DeleteFunc(u.Groups, func(g membership.Group) bool {
			return slices.Contains(names, g.Name)
		})
		return nil
	case OpSet:
		u.Groups = slices.DeleteFunc(u.Groups, func(g membership.Group) bool {
			return !g.Automatic || isRoleGroup(g.Name)
		})
	case OpAdd:
	default:
		return fmt.Errorf("unknown operation %q", ch.Op)
	}

	var merr error
	for _, name := range names {
		g, ok := groups[name]
		if !ok {
			merr = errors.Join(merr, fmt.Errorf("unknown group %q", name))
			continue
		}
		if _, ok := membership.GroupNamed(u.Groups, name); !ok {
			u.Groups = append(u.Groups, g)
		}
	}
	return merr
}
