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

package cli

import (
	"context"

	"github.com/abcxyz/pkg/cli"
)

var _ cli.Command = (*GroupsListCommand)(nil)

type GroupsListCommand struct {
	forumCommand
}

func (c *GroupsListCommand) Desc() string {
	return `List every forum group`
}

func (c *GroupsListCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  List every forum group that accounts can be granted, including the
  automatic admins, moderators and staff groups.
`
}

func (c *GroupsListCommand) Flags() *cli.FlagSet {
	return c.newFlagSet()
}

func (c *GroupsListCommand) Run(ctx context.Context, args []string) error {
	if _, err := c.parse(c.Flags(), args, 0); err != nil {
		return err
	}
	conn, err := c.connector()
	if err != nil {
		return err
	}
	entitlements, err := conn.ListEntitlements(ctx)
	if err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	return writeYAML(c.Stdout(), entitlements)
}
