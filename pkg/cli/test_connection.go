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

var _ cli.Command = (*TestConnectionCommand)(nil)

type TestConnectionCommand struct {
	forumCommand
}

func (c *TestConnectionCommand) Desc() string {
	return `Check the forum is reachable with the configured credentials`
}

func (c *TestConnectionCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  Issue a read-only admin call against the forum and report whether it
  succeeded.

  discourse-link test-connection \
    -discourse-url https://forum.example.com \
    -discourse-api-key your-api-key \
    -discourse-api-username system
`
}

func (c *TestConnectionCommand) Flags() *cli.FlagSet {
	return c.newFlagSet()
}

func (c *TestConnectionCommand) Run(ctx context.Context, args []string) error {
	if _, err := c.parse(c.Flags(), args, 0); err != nil {
		return err
	}
	conn, err := c.connector()
	if err != nil {
		return err
	}
	if err := conn.TestConnection(ctx); err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	c.Outf("connection to %s succeeded", c.cfg.BaseURL)
	return nil
}
