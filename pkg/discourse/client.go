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

// Package discourse is a client for the Discourse admin REST API that
// creates, updates and reconciles forum users and their group memberships.
package discourse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/abcxyz/pkg/logging"
)

const (
	// DefaultConcurrency bounds concurrent profile fetches when listing.
	DefaultConcurrency = 8
	// DefaultSuspendReason is recorded by the forum on suspension.
	DefaultSuspendReason = "Suspended by identity governance"

	// suspendUntil is far enough out to be indefinite.
	suspendUntil = "3000-01-01"
)

type clientConfig struct {
	httpClient        *http.Client
	maxRetries        uint64
	backoffBase       time.Duration
	backoffCap        time.Duration
	concurrency       int
	passwordGenerator func() string
	suspendReason     string
}

// Option configures a Client.
type Option func(c *clientConfig)

// WithHTTPClient sets the HTTP client. Its timeout is left untouched.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = httpClient
	}
}

// WithMaxRetries sets how many times a rate-limited call is retried.
func WithMaxRetries(n uint64) Option {
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// WithBackoff sets the first retry delay and the cap on any single delay.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *clientConfig) {
		c.backoffBase = base
		c.backoffCap = maxDelay
	}
}

// WithConcurrency bounds concurrent profile fetches when listing users.
func WithConcurrency(n int) Option {
	return func(c *clientConfig) {
		c.concurrency = n
	}
}

// WithPasswordGenerator sets how passwords are generated for new users
// created without one.
func WithPasswordGenerator(fn func() string) Option {
	return func(c *clientConfig) {
		c.passwordGenerator = fn
	}
}

// WithSuspendReason sets the reason recorded on suspension.
func WithSuspendReason(reason string) Option {
	return func(c *clientConfig) {
		c.suspendReason = reason
	}
}

// Client implements user, group and role operations against a forum.
type Client struct {
	transport         *Transport
	primaryGroup      string
	employeeIDFieldID string
	concurrency       int
	passwordGenerator func() string
	suspendReason     string
}

// NewClient validates cfg and creates a Client. No network calls are made.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxRetries := uint64(DefaultMaxRetries)
	if cfg.MaxRetries > 0 {
		maxRetries = uint64(cfg.MaxRetries)
	}
	config := &clientConfig{
		httpClient:        &http.Client{Timeout: timeout},
		maxRetries:        maxRetries,
		backoffBase:       DefaultBackoffBase,
		backoffCap:        DefaultBackoffCap,
		concurrency:       DefaultConcurrency,
		passwordGenerator: generatePassword,
		suspendReason:     DefaultSuspendReason,
	}
	for _, opt := range opts {
		opt(config)
	}
	if config.concurrency < 1 {
		config.concurrency = 1
	}

	transport := NewTransport(config.httpClient, cfg.BaseURL, cfg.APIKey, cfg.APIUsername)
	transport.maxRetries = config.maxRetries
	transport.backoffBase = config.backoffBase
	transport.backoffCap = config.backoffCap

	return &Client{
		transport:         transport,
		primaryGroup:      cfg.PrimaryGroup,
		employeeIDFieldID: cfg.EmployeeIDFieldID,
		concurrency:       config.concurrency,
		passwordGenerator: config.passwordGenerator,
		suspendReason:     config.suspendReason,
	}, nil
}

// PrimaryGroup returns the group that scopes user listing.
func (c *Client) PrimaryGroup() string {
	return c.primaryGroup
}

// TestConnection issues a read-only listing call and succeeds only on a
// 200 response.
func (c *Client) TestConnection(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "testing discourse connection")

	resp, err := c.transport.Get(ctx, "/admin/users/list/active.json", &activeUsersOptions{}, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to discourse: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to connect to discourse: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// mutate runs a single mutation call. A benign conflict means the target
// already has the requested state and is reported as success.
func (c *Client) mutate(ctx context.Context, op, subject string, call func() (*Response, error)) error {
	_, err := call()
	switch ClassifyError(err) {
	case OutcomeSuccess:
		return nil
	case OutcomeBenignConflict:
		logger := logging.FromContext(ctx)
		logger.InfoContext(ctx, "target already in requested state",
			"operation", op,
			"subject", subject,
		)
		return nil
	default:
		return fmt.Errorf("failed to %s %s: %w", op, subject, err)
	}
}

func generatePassword() string {
	return uuid.NewString()
}
