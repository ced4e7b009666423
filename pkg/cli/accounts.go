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
	"fmt"

	"github.com/abcxyz/discourse-link/pkg/connector"
	"github.com/abcxyz/pkg/cli"
)

var (
	_ cli.Command = (*AccountsListCommand)(nil)
	_ cli.Command = (*AccountsGetCommand)(nil)
	_ cli.Command = (*AccountsCreateCommand)(nil)
	_ cli.Command = (*AccountsUpdateCommand)(nil)
	_ cli.Command = (*AccountsDeleteCommand)(nil)
	_ cli.Command = (*AccountsEnableCommand)(nil)
	_ cli.Command = (*AccountsDisableCommand)(nil)
	_ cli.Command = (*AccountsResetPasswordCommand)(nil)
)

// accountFile is the YAML document read by create and update. Update
// applies Attributes as the desired state, then any explicit Changes.
type accountFile struct {
	Attributes *connector.Attributes `yaml:"attributes"`
	Password   string                `yaml:"password"`
	Changes    []connector.Change    `yaml:"changes"`
}

type AccountsListCommand struct {
	forumCommand
}

func (c *AccountsListCommand) Desc() string {
	return `List every account in the primary group`
}

func (c *AccountsListCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  List every member of the primary group with their groups and roles.

  discourse-link accounts list \
    -discourse-url https://forum.example.com \
    -primary-group employees
`
}

func (c *AccountsListCommand) Flags() *cli.FlagSet {
	return c.newFlagSet()
}

func (c *AccountsListCommand) Run(ctx context.Context, args []string) error {
	if _, err := c.parse(c.Flags(), args, 0); err != nil {
		return err
	}
	conn, err := c.connector()
	if err != nil {
		return err
	}
	accounts, err := conn.ListAccounts(ctx)
	if err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	return writeYAML(c.Stdout(), accounts)
}

type AccountsGetCommand struct {
	forumCommand
}

func (c *AccountsGetCommand) Desc() string {
	return `Show a single account`
}

func (c *AccountsGetCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] IDENTITY

  Show the account with the given forum user id.

  discourse-link accounts get 101
`
}

func (c *AccountsGetCommand) Flags() *cli.FlagSet {
	return c.newFlagSet()
}

func (c *AccountsGetCommand) Run(ctx context.Context, args []string) error {
	args, err := c.parse(c.Flags(), args, 1)
	if err != nil {
		return err
	}
	conn, err := c.connector()
	if err != nil {
		return err
	}
	account, err := conn.GetAccount(ctx, args[0])
	if err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	return writeYAML(c.Stdout(), account)
}

type AccountsCreateCommand struct {
	forumCommand

	file string
}

func (c *AccountsCreateCommand) Desc() string {
	return `Create an account from a YAML file`
}

func (c *AccountsCreateCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  Create an account described by a YAML file. A password is generated
  when the file does not set one.

  discourse-link accounts create -file dave.yaml

  where dave.yaml contains:

    attributes:
      username: dave
      email: dave@example.com
      groups: [employees]
`
}

func (c *AccountsCreateCommand) Flags() *cli.FlagSet {
	set := c.newFlagSet()

	f := set.NewSection("COMMAND OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "file",
		Target:  &c.file,
		Aliases: []string{"f"},
		Example: "account.yaml",
		Usage:   `YAML file with the account attributes.`,
	})

	return set
}

func (c *AccountsCreateCommand) Run(ctx context.Context, args []string) error {
	if _, err := c.parse(c.Flags(), args, 0); err != nil {
		return err
	}
	if c.file == "" {
		return fmt.Errorf("account file is not provided")
	}
	var file accountFile
	if err := readYAML(c.file, &file); err != nil {
		return err
	}
	if file.Attributes == nil {
		return fmt.Errorf("account file %s has no attributes", c.file)
	}

	conn, err := c.connector()
	if err != nil {
		return err
	}
	account, err := conn.CreateAccount(ctx, file.Attributes, file.Password)
	if err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	return writeYAML(c.Stdout(), account)
}

type AccountsUpdateCommand struct {
	forumCommand

	file string
}

func (c *AccountsUpdateCommand) Desc() string {
	return `Reconcile an account to a desired state`
}

func (c *AccountsUpdateCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] IDENTITY

  Reconcile an account to the desired state in a YAML file. Attributes
  that are left empty keep their current value. Listing groups replaces
  the account's groups, admins and moderators included. Automatic groups
  such as trust levels are kept.

  discourse-link accounts update -file desired.yaml 101

  where desired.yaml contains:

    attributes:
      title: Lead
      groups: [employees, admins]
    changes:
      - op: Remove
        attribute: groups
        value: designers
`
}

func (c *AccountsUpdateCommand) Flags() *cli.FlagSet {
	set := c.newFlagSet()

	f := set.NewSection("COMMAND OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "file",
		Target:  &c.file,
		Aliases: []string{"f"},
		Example: "desired.yaml",
		Usage:   `YAML file with the desired attributes and changes.`,
	})

	return set
}

func (c *AccountsUpdateCommand) Run(ctx context.Context, args []string) error {
	args, err := c.parse(c.Flags(), args, 1)
	if err != nil {
		return err
	}
	if c.file == "" {
		return fmt.Errorf("desired state file is not provided")
	}
	var file accountFile
	if err := readYAML(c.file, &file); err != nil {
		return err
	}
	changes := append(connector.ChangesFor(file.Attributes), file.Changes...)
	if len(changes) == 0 {
		return fmt.Errorf("desired state file %s has no changes", c.file)
	}

	conn, err := c.connector()
	if err != nil {
		return err
	}
	account, err := conn.UpdateAccount(ctx, args[0], changes)
	if err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	return writeYAML(c.Stdout(), account)
}

type AccountsDeleteCommand struct {
	forumCommand
}

func (c *AccountsDeleteCommand) Desc() string {
	return `Delete an account`
}

func (c *AccountsDeleteCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] IDENTITY

  Delete the account with the given forum user id.
`
}

func (c *AccountsDeleteCommand) Flags() *cli.FlagSet {
	return c.newFlagSet()
}

func (c *AccountsDeleteCommand) Run(ctx context.Context, args []string) error {
	args, err := c.parse(c.Flags(), args, 1)
	if err != nil {
		return err
	}
	conn, err := c.connector()
	if err != nil {
		return err
	}
	if err := conn.DeleteAccount(ctx, args[0]); err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	c.Outf("deleted account %s", args[0])
	return nil
}

type AccountsEnableCommand struct {
	forumCommand
}

func (c *AccountsEnableCommand) Desc() string {
	return `Lift an account's suspension`
}

func (c *AccountsEnableCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] IDENTITY

  Lift the suspension of the account with the given forum user id.
`
}

func (c *AccountsEnableCommand) Flags() *cli.FlagSet {
	return c.newFlagSet()
}

func (c *AccountsEnableCommand) Run(ctx context.Context, args []string) error {
	args, err := c.parse(c.Flags(), args, 1)
	if err != nil {
		return err
	}
	conn, err := c.connector()
	if err != nil {
		return err
	}
	account, err := conn.EnableAccount(ctx, args[0])
	if err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	return writeYAML(c.Stdout(), account)
}

type AccountsDisableCommand struct {
	forumCommand
}

func (c *AccountsDisableCommand) Desc() string {
	return `Suspend an account`
}

func (c *AccountsDisableCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] IDENTITY

  Suspend the account with the given forum user id indefinitely.
`
}

func (c *AccountsDisableCommand) Flags() *cli.FlagSet {
	return c.newFlagSet()
}

func (c *AccountsDisableCommand) Run(ctx context.Context, args []string) error {
	args, err := c.parse(c.Flags(), args, 1)
	if err != nil {
		return err
	}
	conn, err := c.connector()
	if err != nil {
		return err
	}
	account, err := conn.DisableAccount(ctx, args[0])
	if err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	return writeYAML(c.Stdout(), account)
}

type AccountsResetPasswordCommand struct {
	forumCommand
}

func (c *AccountsResetPasswordCommand) Desc() string {
	return `Send an account a password reset email`
}

func (c *AccountsResetPasswordCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] IDENTITY

  Send a password reset email to the account with the given forum user id.
`
}

func (c *AccountsResetPasswordCommand) Flags() *cli.FlagSet {
	return c.newFlagSet()
}

func (c *AccountsResetPasswordCommand) Run(ctx context.Context, args []string) error {
	args, err := c.parse(c.Flags(), args, 1)
	if err != nil {
		return err
	}
	conn, err := c.connector()
	if err != nil {
		return err
	}
	if err := conn.ResetPassword(ctx, args[0]); err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	c.Outf("sent password reset to account %s", args[0])
	return nil
}
