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
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abcxyz/pkg/cli"
)

// DefaultTimeout is the per-request HTTP timeout.
const DefaultTimeout = 30 * time.Second

// ErrInvalidConfig is returned when a required setting is missing or
// malformed.
var ErrInvalidConfig = errors.New("invalid discourse configuration")

// Config is the connection configuration for a forum.
type Config struct {
	BaseURL     string `yaml:"baseUrl"`
	APIKey      string `yaml:"apiKey"`
	APIUsername string `yaml:"apiUsername"`

	// PrimaryGroup scopes bulk user listing.
	PrimaryGroup string `yaml:"primaryGroup"`
	// EmployeeIDFieldID is the id of the custom user field holding the
	// employee id.
	EmployeeIDFieldID string `yaml:"employeeIdFieldId"`

	// MaxRetries and Timeout fall back to their defaults when zero.
	MaxRetries int           `yaml:"maxRetries"`
	Timeout    time.Duration `yaml:"timeout"`

	// ConfigFile is an optional YAML file supplying any of the above.
	// Values given as flags or environment variables take precedence.
	ConfigFile string `yaml:"-"`
}

// RegisterFlags registers the forum connection flags on set.
func (c *Config) RegisterFlags(set *cli.FlagSet) {
	f := set.NewSection("DISCOURSE OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "discourse-url",
		EnvVar:  "DISCOURSE_URL",
		Target:  &c.BaseURL,
		Example: "https://forum.example.com",
		Usage:   `Base URL of the Discourse forum.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "discourse-api-key",
		EnvVar: "DISCOURSE_API_KEY",
		Target: &c.APIKey,
		Usage:  `Admin API key sent as the Api-Key header.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "discourse-api-username",
		EnvVar:  "DISCOURSE_API_USERNAME",
		Target:  &c.APIUsername,
		Example: "system",
		Usage:   `Username sent as the Api-Username header.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "primary-group",
		EnvVar:  "DISCOURSE_PRIMARY_GROUP",
		Target:  &c.PrimaryGroup,
		Example: "employees",
		Usage:   `Group whose members are listed as accounts.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "employee-id-field-id",
		EnvVar:  "DISCOURSE_EMPLOYEE_ID_FIELD_ID",
		Target:  &c.EmployeeIDFieldID,
		Example: "1",
		Usage:   `Id of the custom user field that stores the employee id.`,
	})

	f.IntVar(&cli.IntVar{
		Name:   "max-retries",
		EnvVar: "DISCOURSE_MAX_RETRIES",
		Target: &c.MaxRetries,
		Usage:  fmt.Sprintf(`Retries for rate-limited calls. Defaults to %d.`, DefaultMaxRetries),
	})

	f.DurationVar(&cli.DurationVar{
		Name:    "timeout",
		EnvVar:  "DISCOURSE_TIMEOUT",
		Target:  &c.Timeout,
		Example: "30s",
		Usage:   fmt.Sprintf(`Per-request timeout. Defaults to %s.`, DefaultTimeout),
	})

	f.StringVar(&cli.StringVar{
		Name:    "config-file",
		EnvVar:  "DISCOURSE_CONFIG_FILE",
		Target:  &c.ConfigFile,
		Example: "discourse.yaml",
		Usage:   `YAML file with connection settings. Flags override file values.`,
	})

	set.AfterParse(func(merr error) error {
		if c.ConfigFile == "" {
			return nil
		}
		fileCfg, err := LoadConfigFile(c.ConfigFile)
		if err != nil {
			return err
		}
		c.Merge(fileCfg)
		return nil
	})
}

// LoadConfigFile reads a Config from a YAML file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge fills every unset field of c from other.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if c.BaseURL == "" {
		c.BaseURL = other.BaseURL
	}
	if c.APIKey == "" {
		c.APIKey = other.APIKey
	}
	if c.APIUsername == "" {
		c.APIUsername = other.APIUsername
	}
	if c.PrimaryGroup == "" {
		c.PrimaryGroup = other.PrimaryGroup
	}
	if c.EmployeeIDFieldID == "" {
		c.EmployeeIDFieldID = other.EmployeeIDFieldID
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = other.MaxRetries
	}
	if c.Timeout == 0 {
		c.Timeout = other.Timeout
	}
}

// Validate reports every missing or malformed setting.
func (c *Config) Validate() error {
	var merr error
	if c.APIKey == "" {
		merr = errors.Join(merr, fmt.Errorf("api key is required"))
	}
	if c.APIUsername == "" {
		merr = errors.Join(merr, fmt.Errorf("api username is required"))
	}
	if c.BaseURL == "" {
		merr = errors.Join(merr, fmt.Errorf("base url is required"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		merr = errors.Join(merr, fmt.Errorf("base url %q must be an absolute url", c.BaseURL))
	}
	if c.PrimaryGroup == "" {
		merr = errors.Join(merr, fmt.Errorf("primary group is required"))
	}
	if c.EmployeeIDFieldID == "" {
		merr = errors.Join(merr, fmt.Errorf("employee id field id is required"))
	}
	if c.MaxRetries < 0 {
		merr = errors.Join(merr, fmt.Errorf("max retries must not be negative"))
	}
	if merr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, merr)
	}
	return nil
}
