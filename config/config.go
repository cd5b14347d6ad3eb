package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the allocator configuration loaded from YAML.
type Config struct {
	Regions  []string  `yaml:"regions"`
	TagKeys  []string  `yaml:"tag_keys"`
	DaysBack int       `yaml:"days_back"`
	Method   string    `yaml:"method"`
	Accounts []Account `yaml:"accounts,omitempty"`
}

// Account describes one member account for multi-account runs.
type Account struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name,omitempty"`
	RoleARN string   `yaml:"role"`
	Regions []string `yaml:"regions,omitempty"`
}

// DisplayName returns the account name, falling back to the id.
func (a Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// Default returns the built-in single-account configuration used when no
// config file exists.
func Default() *Config {
	return &Config{
		Regions:  []string{"us-east-1", "us-west-2", "eu-west-1"},
		TagKeys:  []string{"Department", "Team", "Project", "Environment"},
		DaysBack: 30,
		Method:   "weighted",
	}
}

// Load reads configuration from path. A missing file falls back to
// Default; multi-account callers must check Accounts themselves.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures config has usable values.
func (c *Config) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("regions is required")
	}
	if c.Method != "weighted" && c.Method != "equal" {
		return fmt.Errorf("method must be weighted or equal, got %q", c.Method)
	}
	if c.DaysBack <= 0 {
		return fmt.Errorf("days_back must be positive, got %d", c.DaysBack)
	}
	for _, acct := range c.Accounts {
		if acct.ID == "" {
			return fmt.Errorf("account id is required")
		}
		if acct.RoleARN == "" {
			return fmt.Errorf("account %s: role is required", acct.ID)
		}
	}
	return nil
}

// RequireAccounts validates the accounts section for multi-account mode.
func (c *Config) RequireAccounts() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("no accounts section found in config")
	}
	return nil
}

// EnsureAccountTag appends the Account tag key used for per-account
// grouping in consolidated reports.
func (c *Config) EnsureAccountTag() {
	for _, key := range c.TagKeys {
		if key == "Account" {
			return
		}
	}
	c.TagKeys = append(c.TagKeys, "Account")
}

// FilterAccounts keeps only accounts whose id appears in ids.
// An empty filter keeps everything.
func (c *Config) FilterAccounts(ids []string) []Account {
	if len(ids) == 0 {
		return c.Accounts
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []Account
	for _, acct := range c.Accounts {
		if wanted[acct.ID] {
			out = append(out, acct)
		}
	}
	return out
}
