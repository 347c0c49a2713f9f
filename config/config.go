// Package config loads the studio configuration from a YAML file and applies
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider configures one model provider.
type Provider struct {
	// APIKey authenticates against the provider. The SITESMITH_<NAME>_API_KEY
	// environment variable takes precedence so keys can stay out of files.
	APIKey string `yaml:"api_key"`

	// Model is the default model identifier for this provider.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint, for proxies and compatible
	// gateways. Empty means the provider default.
	BaseURL string `yaml:"base_url"`
}

// RoleConfig configures one delegated worker persona.
type RoleConfig struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
	Model        string `yaml:"model"`
}

// Config is the full studio configuration.
type Config struct {
	// StateDir holds persisted session state and audit logs.
	StateDir string `yaml:"state_dir"`

	// WorkspaceRoot holds the project trees.
	WorkspaceRoot string `yaml:"workspace_root"`

	// PreviewBaseURL is where the live preview server serves projects.
	PreviewBaseURL string `yaml:"preview_base_url"`

	// BossKey unlocks the full capability surface including project creation
	// and delegation. Empty runs the studio in plain mode.
	BossKey string `yaml:"boss_key"`

	// MaxToolIterations bounds each run's tool loop.
	MaxToolIterations int `yaml:"max_tool_iterations"`

	// MaxParallelTools bounds concurrent tool executions in one batch.
	MaxParallelTools int `yaml:"max_parallel_tools"`

	// Providers maps provider names (openai, anthropic) to their settings.
	Providers map[string]Provider `yaml:"providers"`

	// Roles lists the delegated worker personas available to the boss.
	Roles []RoleConfig `yaml:"roles"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".sitesmith")
	return Config{
		StateDir:          filepath.Join(base, "state"),
		WorkspaceRoot:     filepath.Join(base, "projects"),
		PreviewBaseURL:    "http://localhost:8080",
		MaxToolIterations: 25,
		MaxParallelTools:  4,
		Providers:         map[string]Provider{},
	}
}

// Load reads the configuration from path, fills unset fields with defaults,
// and applies environment overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	defaults := Default()
	if cfg.StateDir == "" {
		cfg.StateDir = defaults.StateDir
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = defaults.WorkspaceRoot
	}
	if cfg.PreviewBaseURL == "" {
		cfg.PreviewBaseURL = defaults.PreviewBaseURL
	}
	if cfg.MaxToolIterations == 0 {
		cfg.MaxToolIterations = defaults.MaxToolIterations
	}
	if cfg.MaxParallelTools == 0 {
		cfg.MaxParallelTools = defaults.MaxParallelTools
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]Provider{}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv merges environment overrides: SITESMITH_BOSS_KEY and per-provider
// SITESMITH_OPENAI_API_KEY / SITESMITH_ANTHROPIC_API_KEY.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SITESMITH_BOSS_KEY"); v != "" {
		cfg.BossKey = v
	}
	for _, name := range []string{"openai", "anthropic"} {
		env := "SITESMITH_" + strings.ToUpper(name) + "_API_KEY"
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		p := cfg.Providers[name]
		p.APIKey = v
		cfg.Providers[name] = p
	}
}
