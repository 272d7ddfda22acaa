// Package config reads and writes ledgerline.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ledgerline/ledgerline/internal/dedup"
	"github.com/ledgerline/ledgerline/internal/tagging"
)

// FileName is the config file looked for in the working directory.
const FileName = "ledgerline.yaml"

// Integration kinds.
const (
	KindSimpleFIN = "simplefin"
	KindCSV       = "csv"
	KindDemo      = "demo"
)

// Environment overrides.
const (
	EnvDatabase  = "LEDGERLINE_DATABASE"
	EnvLogLevel  = "LEDGERLINE_LOG_LEVEL"
	envPrefix    = "LEDGERLINE_"
	envAccessURL = "_ACCESS_URL"
)

// Config represents the top-level ledgerline.yaml configuration.
type Config struct {
	Database     string         `yaml:"database"`
	LogLevel     string         `yaml:"log_level"`
	ImportDir    string         `yaml:"import_dir"`
	Integrations []Integration  `yaml:"integrations"`
	TagRules     []tagging.Rule `yaml:"tag_rules,omitempty"`
	Sync         SyncConfig     `yaml:"sync"`

	// Root is the directory relative paths resolve against. It is the
	// config file's directory after Load.
	Root string `yaml:"-"`
}

// Integration configures one data source.
type Integration struct {
	Name         string            `yaml:"name"`
	Kind         string            `yaml:"kind"`
	Strategy     dedup.Name        `yaml:"strategy,omitempty"`
	Settings     map[string]string `yaml:"settings,omitempty"`
	BalancesOnly []string          `yaml:"balances_only,omitempty"`
}

// SyncConfig controls the sync engine.
type SyncConfig struct {
	RejectConcurrent bool `yaml:"reject_concurrent"`
	Workers          int  `yaml:"workers,omitempty"`
}

// DefaultStrategy returns the dedup strategy used when an integration of
// kind names none.
func DefaultStrategy(kind string) dedup.Name {
	switch kind {
	case KindSimpleFIN:
		return dedup.NameComposite
	case KindDemo:
		return dedup.NameExternalID
	default:
		return dedup.NameFingerprint
	}
}

// Load reads a ledgerline.yaml file from disk. A .env file beside it is
// loaded into the environment first; environment variables then override
// file values.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(filepath.Join(cfg.Root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read parses the file alone, without environment overrides. Use it when
// the config will be saved back.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.Root = filepath.Dir(abs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project: a
// local database, a CSV inbox and the demo source.
func Default() *Config {
	return &Config{
		Database:  "ledgerline.db",
		LogLevel:  "info",
		ImportDir: "import",
		Integrations: []Integration{
			{Name: KindCSV, Kind: KindCSV, Strategy: dedup.NameFingerprint, Settings: map[string]string{"format": "chase"}},
			{Name: KindDemo, Kind: KindDemo, Strategy: dedup.NameExternalID},
		},
		Sync: SyncConfig{Workers: 4},
	}
}

// Validate checks integrations and fills default strategies.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Integrations))
	for i := range c.Integrations {
		in := &c.Integrations[i]
		if in.Name == "" {
			return fmt.Errorf("integration %d: name is required", i+1)
		}
		if seen[in.Name] {
			return fmt.Errorf("integration %s: duplicate name", in.Name)
		}
		seen[in.Name] = true

		switch in.Kind {
		case KindSimpleFIN, KindCSV, KindDemo:
		default:
			return fmt.Errorf("integration %s: unknown kind %q", in.Name, in.Kind)
		}
		if in.Strategy == "" {
			in.Strategy = DefaultStrategy(in.Kind)
		}
		switch in.Strategy {
		case dedup.NameExternalID, dedup.NameFingerprint, dedup.NameComposite:
		default:
			return fmt.Errorf("integration %s: unknown strategy %q", in.Name, in.Strategy)
		}
		if in.Kind == KindCSV && in.Strategy == dedup.NameExternalID {
			return fmt.Errorf("integration %s: csv files carry no stable ids, use %s or %s",
				in.Name, dedup.NameFingerprint, dedup.NameComposite)
		}
	}
	if c.Sync.Workers < 0 {
		return fmt.Errorf("sync.workers must not be negative")
	}
	return nil
}

// Integration returns the named integration.
func (c *Config) Integration(name string) (Integration, bool) {
	for _, in := range c.Integrations {
		if in.Name == name {
			return in, true
		}
	}
	return Integration{}, false
}

// Path resolves p against Root unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// AccessURLEnv returns the variable that overrides an integration's
// access_url setting: LEDGERLINE_<NAME>_ACCESS_URL.
func AccessURLEnv(integration string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(integration) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return envPrefix + b.String() + envAccessURL
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Database = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	for i := range c.Integrations {
		in := &c.Integrations[i]
		if v, ok := lookup(AccessURLEnv(in.Name)); ok && v != "" {
			if in.Settings == nil {
				in.Settings = make(map[string]string)
			}
			in.Settings["access_url"] = v
		}
	}
}
