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

// Version is set at build time.
var Version = "source"

// rootCmd defines the starting command structure.
var rootCmd = func() cli.Command {
	return &cli.RootCommand{
		Name:    "discourse-link",
		Version: Version,
		Commands: map[string]cli.CommandFactory{
			"test-connection": func() cli.Command {
				return &TestConnectionCommand{}
			},
			"accounts": func() cli.Command {
				return &cli.RootCommand{
					Name:        "accounts",
					Description: "Manage forum accounts",
					Commands: map[string]cli.CommandFactory{
						"list": func() cli.Command {
							return &AccountsListCommand{}
						},
						"get": func() cli.Command {
							return &AccountsGetCommand{}
						},
						"create": func() cli.Command {
							return &AccountsCreateCommand{}
						},
						"update": func() cli.Command {
							return &AccountsUpdateCommand{}
						},
						"delete": func() cli.Command {
							return &AccountsDeleteCommand{}
						},
						"enable": func() cli.Command {
							return &AccountsEnableCommand{}
						},
						"disable": func() cli.Command {
							return &AccountsDisableCommand{}
						},
						"reset-password": func() cli.Command {
							return &AccountsResetPasswordCommand{}
						},
					},
				}
			},
			"groups": func() cli.Command {
				return &cli.RootCommand{
					Name:        "groups",
					Description: "Inspect forum groups",
					Commands: map[string]cli.CommandFactory{
						"list": func() cli.Command {
							return &GroupsListCommand{}
						},
					},
				}
			},
		},
	}
}

// Run executes the CLI.
func Run(ctx context.Context, args []string) error {
	return rootCmd().Run(ctx, args) //nolint:wrapcheck // Want passthrough
}
