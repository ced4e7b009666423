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

package membership

import (
	"fmt"
	"maps"
	"slices"

	"github.com/abcxyz/pkg/sets"
)

// ActionKind identifies the remote call an Action maps to.
type ActionKind int

const (
	ActionRemoveFromGroup ActionKind = iota + 1
	ActionRevokeAdmin
	ActionRevokeModerator
	ActionAddToGroup
	ActionGrantAdmin
	ActionGrantModerator
)

func (k ActionKind) String() string {
	switch k {
	case ActionRemoveFromGroup:
		return "RemoveFromGroup"
	case ActionRevokeAdmin:
		return "RevokeAdmin"
	case ActionRevokeModerator:
		return "RevokeModerator"
	case ActionAddToGroup:
		return "AddToGroup"
	case ActionGrantAdmin:
		return "GrantAdmin"
	case ActionGrantModerator:
		return "GrantModerator"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is a single remote mutation. GroupID is the group the action
// affects; for role actions it is the resolved role group id.
type Action struct {
	Kind    ActionKind
	GroupID int64
}

// IsRemoval reports whether the action takes a membership away.
func (a Action) IsRemoval() bool {
	switch a.Kind {
	case ActionRemoveFromGroup, ActionRevokeAdmin, ActionRevokeModerator:
		return true
	default:
		return false
	}
}

func (a Action) String() string {
	return fmt.Sprintf("%s(%d)", a.Kind, a.GroupID)
}

// Plan is the ordered set of remote mutations that moves a user from an
// observed state to a desired state. All removals precede all additions.
type Plan struct {
	Actions []Action

	// EmailChanged is set when the desired email is present and differs
	// from the original. Email changes go through a dedicated endpoint.
	EmailChanged bool
	Email        string
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return len(p.Actions) == 0 && !p.EmailChanged
}

// Apply returns the sorted group id set obtained by applying the plan's
// actions to groupIDs.
func (p *Plan) Apply(groupIDs []int64) []int64 {
	set := make(map[int64]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		set[id] = struct{}{}
	}
	for _, a := range p.Actions {
		if a.IsRemoval() {
			delete(set, a.GroupID)
		} else {
			set[a.GroupID] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// Diff computes the plan that moves original to desired. The staff group
// is ignored on both sides. Admin and moderator groups are routed to their
// grant and revoke actions instead of plain membership changes. Title is
// never cleared.
func Diff(original, desired *User) *Plan {
	if original == nil {
		original = &User{}
	}
	if desired == nil {
		desired = &User{}
	}

	current := settableGroups(original.Groups)
	wanted := settableGroups(desired.Groups)

	moderatorID := roleGroupID(RoleModerators, desired.Groups, original.Groups)
	adminID := roleGroupID(RoleAdmins, desired.Groups, original.Groups)

	toRemove := sets.SubtractMapKeys(current, wanted)
	toAdd := sets.SubtractMapKeys(wanted, current)

	plan := &Plan{
		Actions: make([]Action, 0, len(toRemove)+len(toAdd)),
	}
	for _, id := range slices.Sorted(maps.Keys(toRemove)) {
		switch id {
		case moderatorID:
			plan.Actions = append(plan.Actions, Action{Kind: ActionRevokeModerator, GroupID: id})
		case adminID:
			plan.Actions = append(plan.Actions, Action{Kind: ActionRevokeAdmin, GroupID: id})
		default:
			plan.Actions = append(plan.Actions, Action{Kind: ActionRemoveFromGroup, GroupID: id})
		}
	}
	for _, id := range slices.Sorted(maps.Keys(toAdd)) {
		switch id {
		case moderatorID:
			plan.Actions = append(plan.Actions, Action{Kind: ActionGrantModerator, GroupID: id})
		case adminID:
			plan.Actions = append(plan.Actions, Action{Kind: ActionGrantAdmin, GroupID: id})
		default:
			plan.Actions = append(plan.Actions, Action{Kind: ActionAddToGroup, GroupID: id})
		}
	}

	if desired.Email != "" && desired.Email != original.Email {
		plan.EmailChanged = true
		plan.Email = desired.Email
	}
	return plan
}

// settableGroups indexes groups by id, dropping the staff group.
// Duplicate ids collapse into one entry.
func settableGroups(groups []Group) map[int64]Group {
	m := make(map[int64]Group, len(groups))
	for _, g := range groups {
		if g.Name == RoleStaff {
			continue
		}
		m[g.ID] = g
	}
	return m
}

// roleGroupID resolves the id of the named role group, preferring the
// desired groups over the original ones.
func roleGroupID(role string, desired, original []Group) int64 {
	if g, ok := GroupNamed(desired, role); ok {
		return g.ID
	}
	if g, ok := GroupNamed(original, role); ok {
		return g.ID
	}
	return NoGroupID
}

// GroupIDs returns the sorted ids of the settable groups, excluding staff.
func GroupIDs(groups []Group) []int64 {
	return slices.Sorted(maps.Keys(settableGroups(groups)))
}
