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

// Package cli implements the discourse-link commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/abcxyz/discourse-link/pkg/connector"
	"github.com/abcxyz/discourse-link/pkg/discourse"
	"github.com/abcxyz/pkg/cli"
)

// forumCommand holds the flags shared by every command that talks to the
// forum.
type forumCommand struct {
	cli.BaseCommand

	cfg discourse.Config

	suspendReason string
	concurrency   int
	pageSize      int
}

func (c *forumCommand) newFlagSet() *cli.FlagSet {
	set := c.NewFlagSet()
	c.cfg.RegisterFlags(set)

	f := set.NewSection("CONNECTOR OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "suspend-reason",
		EnvVar:  "DISCOURSE_SUSPEND_REASON",
		Target:  &c.suspendReason,
		Default: discourse.DefaultSuspendReason,
		Usage:   `Reason recorded by the forum when an account is disabled.`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "concurrency",
		EnvVar:  "DISCOURSE_CONCURRENCY",
		Target:  &c.concurrency,
		Default: discourse.DefaultConcurrency,
		Usage:   `Maximum concurrent profile fetches while listing accounts.`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "page-size",
		EnvVar:  "DISCOURSE_PAGE_SIZE",
		Target:  &c.pageSize,
		Default: connector.DefaultPageSize,
		Usage:   `Members requested per listing page.`,
	})

	return set
}

// connector builds a connector from the parsed flags.
func (c *forumCommand) connector() (*connector.Connector, error) {
	client, err := discourse.NewClient(&c.cfg,
		discourse.WithSuspendReason(c.suspendReason),
		discourse.WithConcurrency(c.concurrency),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discourse client: %w", err)
	}
	return connector.New(client, connector.WithPageSize(c.pageSize)), nil
}

// parse parses args and returns the positional arguments, which must
// number exactly want.
func (c *forumCommand) parse(set *cli.FlagSet, args []string, want int) ([]string, error) {
	if err := set.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	args = set.Args()
	if len(args) != want {
		if want == 0 {
			return nil, fmt.Errorf("unexpected arguments: %q", args)
		}
		return nil, fmt.Errorf("expected %d argument(s), got %q", want, args)
	}
	return args, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func readYAML(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}
