// Package config loads and validates the YAML backup configuration: an
// optional cron schedule, an optional run ledger path, and the list of
// backup policies driving the pipelines.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/forgevault/github-backup/internal/filter"
)

// Sentinel errors for configuration validation.
var (
	ErrNoBackups            = errors.New("at least one backup policy must be configured")
	ErrMissingKind          = errors.New("policy kind is required")
	ErrMissingFrom          = errors.New("policy from is required")
	ErrMissingTo            = errors.New("policy to is required")
	ErrInvalidPolicy        = errors.New("invalid policy")
	ErrEmptyToken           = errors.New("token credentials cannot be empty")
	ErrEmptyUsername        = errors.New("username credentials cannot be empty")
	ErrUnknownCredentialTag = errors.New("unknown credentials tag")
)

// Policy kinds understood by the backup engine.
const (
	KindRepo    = "github/repo"
	KindRelease = "github/release"
	KindGist    = "github/gist"
)

// BackupPolicy is one entry of the `backups` list: a source selector, a
// filter, and a target directory. A policy lives for a single run.
type BackupPolicy struct {
	Kind        string            `yaml:"kind"`
	From        string            `yaml:"from"`
	To          string            `yaml:"to"`
	Credentials Credentials       `yaml:"credentials"`
	Filter      *filter.Filter    `yaml:"filter"`
	Properties  map[string]string `yaml:"properties"`
}

// Property returns a policy property or a fallback when unset.
func (p *BackupPolicy) Property(key, fallback string) string {
	if v, ok := p.Properties[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (p *BackupPolicy) String() string {
	return fmt.Sprintf("%s(%s -> %s)", p.Kind, p.From, p.To)
}

// Config is the top-level configuration document.
type Config struct {
	// Schedule is a five-field POSIX cron expression, evaluated in
	// UTC. When absent the process performs a single run and exits.
	Schedule string `yaml:"schedule"`

	// StateDB is an optional path to a SQLite run ledger.
	StateDB string `yaml:"state_db"`

	Backups []*BackupPolicy `yaml:"backups"`
}

// Load reads and validates a configuration file. Any failure here is a
// configuration error: the process must exit with code 1.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates configuration bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}
	if len(c.Backups) == 0 {
		return ErrNoBackups
	}
	for i, policy := range c.Backups {
		if err := validatePolicy(policy); err != nil {
			return fmt.Errorf("backups[%d]: %w", i, err)
		}
	}
	return nil
}

func validatePolicy(p *BackupPolicy) error {
	if p.Kind == "" {
		return ErrMissingKind
	}
	switch p.Kind {
	case KindRepo, KindRelease, KindGist:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPolicy, p.Kind)
	}
	if p.From == "" {
		return ErrMissingFrom
	}
	if p.To == "" {
		return ErrMissingTo
	}
	if p.Filter == nil {
		p.Filter = filter.Always()
	}
	return nil
}
