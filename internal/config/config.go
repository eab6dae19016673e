// Package config loads the iterata.yaml project configuration, with
// ITERATA_-prefixed environment variables taking precedence over the
// file and file values over the built-in defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigFile is where Load looks when no path is given.
const DefaultConfigFile = "iterata.yaml"

// Defaults applied for missing values.
const (
	DefaultBasePath               = "./corrections"
	DefaultMinCorrectionsForSkill = 10
	DefaultConfidenceThreshold    = 0.8
)

// BackendConfig selects and configures the auto-explanation backend.
type BackendConfig struct {
	// Provider is "anthropic" or "mock". Empty disables auto-explanation.
	Provider string `koanf:"provider"`

	// APIKey may use ${ENV_VAR} syntax to pull the key from the
	// environment instead of storing it in the file.
	APIKey string `koanf:"api_key"`

	Model string `koanf:"model"`
}

// Config is the full project configuration.
type Config struct {
	BasePath  string `koanf:"base_path"`
	SkillPath string `koanf:"skill_path"`

	AutoExplain            bool `koanf:"auto_explain"`
	MinCorrectionsForSkill int  `koanf:"min_corrections_for_skill"`

	// Explanations below this confidence are flagged for review.
	ExplanationConfidenceThreshold float64 `koanf:"explanation_confidence_threshold"`

	Backend BackendConfig `koanf:"backend"`
}

// Load reads configuration from path (DefaultConfigFile when empty). A
// missing file is not an error: defaults and environment variables still
// apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultConfigFile
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults and environment only.
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	// ITERATA_BASE_PATH -> base_path, ITERATA_BACKEND_API_KEY -> backend.api_key
	if err := k.Load(env.Provider("ITERATA_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "ITERATA_"))
		if rest, ok := strings.CutPrefix(key, "backend_"); ok {
			return "backend." + rest
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Backend.APIKey = expandEnvRef(cfg.Backend.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}
	if cfg.MinCorrectionsForSkill == 0 {
		cfg.MinCorrectionsForSkill = DefaultMinCorrectionsForSkill
	}
	if cfg.ExplanationConfidenceThreshold == 0 {
		cfg.ExplanationConfidenceThreshold = DefaultConfidenceThreshold
	}
}

func (c *Config) validate() error {
	switch c.Backend.Provider {
	case "", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown backend provider %q (want anthropic or mock)", c.Backend.Provider)
	}
	if c.MinCorrectionsForSkill < 0 {
		return fmt.Errorf("min_corrections_for_skill must not be negative")
	}
	if c.ExplanationConfidenceThreshold < 0 || c.ExplanationConfidenceThreshold > 1 {
		return fmt.Errorf("explanation_confidence_threshold must be in [0,1]")
	}
	return nil
}

// expandEnvRef resolves the ${ENV_VAR} syntax used for api_key values.
func expandEnvRef(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
