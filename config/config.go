// Package config loads and validates SecureFlow configuration from
// YAML files and environment variables. File values are overridden by
// SECUREFLOW_* environment variables so CI pipelines can tune a scan
// without editing the checked-in config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// defaultLocations are searched, in order, when no explicit path is given.
var defaultLocations = []string{
	".secureflow.yml",
	".secureflow.yaml",
	"secureflow.config.yml",
	"secureflow.config.yaml",
}

// ScanningConfig controls which categories run and which backend serves
// each one.
type ScanningConfig struct {
	EnableSAST      bool `yaml:"enable_sast"`
	EnableSCA       bool `yaml:"enable_sca"`
	EnableSecrets   bool `yaml:"enable_secrets"`
	EnableIaC       bool `yaml:"enable_iac"`
	EnableContainer bool `yaml:"enable_container"`

	// Tool selection per category. Each must name a registered backend
	// for that category.
	SASTTool      string `yaml:"sast_tool" validate:"required"`
	SCATool       string `yaml:"sca_tool" validate:"required"`
	SecretsTool   string `yaml:"secrets_tool" validate:"required"`
	IaCTool       string `yaml:"iac_tool" validate:"required"`
	ContainerTool string `yaml:"container_tool" validate:"required"`

	// SeverityThreshold is the minimum severity to report.
	SeverityThreshold string `yaml:"severity_threshold" validate:"oneof=critical high medium low info"`

	// FailOnHigh and FailOnCritical drive the build-gate decision.
	FailOnHigh     bool `yaml:"fail_on_high"`
	FailOnCritical bool `yaml:"fail_on_critical"`

	// ExcludePaths are passed to backends that support exclusions.
	ExcludePaths []string `yaml:"exclude_paths"`

	// ScanTimeoutSeconds bounds one backend invocation.
	ScanTimeoutSeconds int `yaml:"scan_timeout" validate:"min=0"`

	// MaxConcurrentScans bounds category-level fan-out.
	MaxConcurrentScans int `yaml:"max_concurrent_scans" validate:"min=0"`
}

// CacheConfig controls scan-result memoization.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend selects the store implementation: "file" or "redis".
	Backend string `yaml:"backend" validate:"oneof=file redis"`

	// Dir is the file store's root directory.
	Dir string `yaml:"dir"`

	// RedisURL is the redis store's connection string.
	RedisURL string `yaml:"redis_url"`

	// TTLSeconds is the entry validity window.
	TTLSeconds int `yaml:"ttl" validate:"min=0"`
}

// Config is the root SecureFlow configuration.
type Config struct {
	Scanning ScanningConfig `yaml:"scanning"`
	Cache    CacheConfig    `yaml:"cache"`

	// Plugins maps plugin name to its opaque configuration
	// sub-document, forwarded verbatim at initialization.
	Plugins map[string]map[string]any `yaml:"plugins"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			EnableSAST:         true,
			EnableSCA:          true,
			EnableSecrets:      true,
			EnableIaC:          true,
			EnableContainer:    true,
			SASTTool:           "semgrep",
			SCATool:            "safety",
			SecretsTool:        "gitleaks",
			IaCTool:            "checkov",
			ContainerTool:      "trivy",
			SeverityThreshold:  "medium",
			FailOnHigh:         true,
			FailOnCritical:     true,
			ExcludePaths:       []string{".git", ".venv", "node_modules", "__pycache__", "vendor"},
			ScanTimeoutSeconds: 300,
			MaxConcurrentScans: 4,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "file",
			Dir:        ".secureflow-cache",
			TTLSeconds: 3600,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from path. An empty path searches the
// default locations and falls back to Default when none exists.
// Environment overrides are applied after file values, and the merged
// result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range defaultLocations {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers SECUREFLOW_* environment variables over file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("SECUREFLOW_SAST_TOOL"); v != "" {
		c.Scanning.SASTTool = v
	}
	if v := os.Getenv("SECUREFLOW_SCA_TOOL"); v != "" {
		c.Scanning.SCATool = v
	}
	if v := os.Getenv("SECUREFLOW_SECRETS_TOOL"); v != "" {
		c.Scanning.SecretsTool = v
	}
	if v := os.Getenv("SECUREFLOW_IAC_TOOL"); v != "" {
		c.Scanning.IaCTool = v
	}
	if v := os.Getenv("SECUREFLOW_CONTAINER_TOOL"); v != "" {
		c.Scanning.ContainerTool = v
	}
	if v := os.Getenv("SECUREFLOW_SEVERITY_THRESHOLD"); v != "" {
		c.Scanning.SeverityThreshold = strings.ToLower(v)
	}
	if v := os.Getenv("SECUREFLOW_FAIL_ON_HIGH"); v != "" {
		c.Scanning.FailOnHigh = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("SECUREFLOW_CACHE_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			c.Cache.TTLSeconds = ttl
		}
	}
	if v := os.Getenv("SECUREFLOW_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// Validate checks the configuration's structural constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// EnabledCategories returns the scan categories the configuration turns on.
func (c *Config) EnabledCategories() []scan.Category {
	var out []scan.Category
	if c.Scanning.EnableSAST {
		out = append(out, scan.CategorySAST)
	}
	if c.Scanning.EnableSCA {
		out = append(out, scan.CategorySCA)
	}
	if c.Scanning.EnableSecrets {
		out = append(out, scan.CategorySecrets)
	}
	if c.Scanning.EnableIaC {
		out = append(out, scan.CategoryIaC)
	}
	if c.Scanning.EnableContainer {
		out = append(out, scan.CategoryContainer)
	}
	return out
}

// ToolFor returns the configured backend name for a category, or an
// error for categories without a designated default.
func (c *Config) ToolFor(category scan.Category) (string, error) {
	switch category {
	case scan.CategorySAST:
		return c.Scanning.SASTTool, nil
	case scan.CategorySCA:
		return c.Scanning.SCATool, nil
	case scan.CategorySecrets:
		return c.Scanning.SecretsTool, nil
	case scan.CategoryIaC:
		return c.Scanning.IaCTool, nil
	case scan.CategoryContainer:
		return c.Scanning.ContainerTool, nil
	default:
		return "", fmt.Errorf("no configured tool for category %q", category)
	}
}

// ScanTimeout returns the per-backend timeout as a duration.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.Scanning.ScanTimeoutSeconds) * time.Second
}

// CacheTTL returns the cache validity window as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// FailsBuild decides whether the aggregate result should gate the build
// under the configured fail_on flags.
func (c *Config) FailsBuild(agg scan.Aggregate) bool {
	counts := agg.CountBySeverity()
	if c.Scanning.FailOnCritical && counts[finding.SeverityCritical] > 0 {
		return true
	}
	if c.Scanning.FailOnHigh && counts[finding.SeverityHigh] > 0 {
		return true
	}
	return false
}
