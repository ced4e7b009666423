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

package connector

import (
	"fmt"
	"strconv"

	"github.com/abcxyz/discourse-link/pkg/membership"
	"github.com/abcxyz/pkg/pointer"
)

// Attribute names accepted by changes.
const (
	AttributeName       = "name"
	AttributeEmail      = "email"
	AttributeTitle      = "title"
	AttributeEmployeeID = "employeeId"
	AttributeGroups     = "groups"
)

// Account is a forum user as seen by an identity platform.
type Account struct {
	// Identity is the forum's user id.
	Identity string `json:"identity" yaml:"identity"`
	// UUID is the username.
	UUID       string      `json:"uuid" yaml:"uuid"`
	Attributes *Attributes `json:"attributes" yaml:"attributes"`
}

// Attributes are the account fields an identity platform reads and writes.
type Attributes struct {
	Username   string  `json:"username" yaml:"username"`
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	Email      string  `json:"email" yaml:"email"`
	Title      *string `json:"title,omitempty" yaml:"title,omitempty"`
	EmployeeID string  `json:"employeeId,omitempty" yaml:"employeeId,omitempty"`
	// Groups are group names, role groups included.
	Groups []string `json:"groups,omitempty" yaml:"groups,omitempty"`

	Active    bool `json:"active" yaml:"active"`
	Suspended bool `json:"suspended" yaml:"suspended"`
	Admin     bool `json:"admin" yaml:"admin"`
	Moderator bool `json:"moderator" yaml:"moderator"`
}

// Entitlement is a forum group that accounts can be granted.
type Entitlement struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	FullName  string `json:"fullName,omitempty" yaml:"fullName,omitempty"`
	UserCount int    `json:"userCount" yaml:"userCount"`
	Automatic bool   `json:"automatic" yaml:"automatic"`
}

// ChangeOp is how a change modifies an attribute.
type ChangeOp string

const (
	// OpSet replaces the attribute.
	OpSet ChangeOp = "Set"
	// OpAdd adds values to a multi-valued attribute.
	OpAdd ChangeOp = "Add"
	// OpRemove removes values from a multi-valued attribute.
	OpRemove ChangeOp = "Remove"
)

// Change is a single attribute modification. Value is a string, or for
// groups a string or a list of strings.
type Change struct {
	Op        ChangeOp `json:"op" yaml:"op"`
	Attribute string   `json:"attribute" yaml:"attribute"`
	Value     any      `json:"value" yaml:"value"`
}

func toAccount(u *membership.User) *Account {
	groups := make([]string, 0, len(u.Groups))
	for _, g := range u.Groups {
		groups = append(groups, g.Name)
	}
	attrs := &Attributes{
		Username:   u.Username,
		Name:       u.Name,
		Email:      u.Email,
		EmployeeID: u.EmployeeID,
		Groups:     groups,
		Active:     u.Active,
		Suspended:  u.Suspended,
		Admin:      u.Admin,
		Moderator:  u.Moderator,
	}
	if u.Title != nil {
		attrs.Title = pointer.To(*u.Title)
	}
	return &Account{
		Identity:   strconv.FormatInt(u.ID, 10),
		UUID:       u.Username,
		Attributes: attrs,
	}
}

func toEntitlement(g *membership.Group) *Entitlement {
	return &Entitlement{
		ID:        strconv.FormatInt(g.ID, 10),
		Name:      g.Name,
		FullName:  g.FullName,
		UserCount: g.UserCount,
		Automatic: g.Automatic,
	}
}

func parseIdentity(identity string) (int64, error) {
	id, err := strconv.ParseInt(identity, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account identity %q", identity)
	}
	return id, nil
}

// stringValues reads a change value as a list of strings.
func stringValues(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("value %v is not a string", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value %v is not a string or list of strings", v)
	}
}

// stringValue reads a change value as a single string.
func stringValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("value %v is not a string", v)
	}
}

// ChangesFor returns the changes that move an account to attrs. Empty
// attributes are left unchanged. A non-nil Groups replaces the account's
// groups, keeping automatic groups other than the roles.
func ChangesFor(attrs *Attributes) []Change {
	if attrs == nil {
		return nil
	}
	var changes []Change
	set := func(attribute, value string) {
		if value != "" {
			changes = append(changes, Change{Op: OpSet, Attribute: attribute, Value: value})
		}
	}
	set(AttributeName, attrs.Name)
	set(AttributeEmail, attrs.Email)
	if attrs.Title != nil {
		changes = append(changes, Change{Op: OpSet, Attribute: AttributeTitle, Value: *attrs.Title})
	}
	set(AttributeEmployeeID, attrs.EmployeeID)
	if attrs.Groups != nil {
		changes = append(changes, Change{Op: OpSet, Attribute: AttributeGroups, Value: attrs.Groups})
	}
	return changes
}
