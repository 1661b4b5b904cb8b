// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pydiatra/internal/models"
)

// EnvPrefix starts the names of the environment variables that override
// configuration values.
const EnvPrefix = "PYDIATRA_"

// Config represents the configuration for pydiatra
type Config struct {
	// General settings
	Version     string `yaml:"version" toml:"version" json:"version"`
	ProjectName string `yaml:"project_name,omitempty" toml:"project_name" json:"project_name,omitempty"`

	// Analysis settings
	Analysis AnalysisConfig `yaml:"analysis" toml:"analysis" json:"analysis"`

	// Output settings
	Output OutputConfig `yaml:"output" toml:"output" json:"output"`

	// Tag selection and severities
	Rules RulesConfig `yaml:"rules" toml:"rules" json:"rules"`

	// File patterns
	Files FilesConfig `yaml:"files" toml:"files" json:"files"`
}

type AnalysisConfig struct {
	// Quality score thresholds
	ScoreThresholds ScoreThresholds `yaml:"score_thresholds" toml:"score_thresholds" json:"score_thresholds"`

	// Parallel analysis, 0 means one job per CPU
	Jobs int `yaml:"jobs" toml:"jobs" json:"jobs"`

	// Directory with replacement reference data files
	DataDir string `yaml:"data_dir,omitempty" toml:"data_dir" json:"data_dir,omitempty"`

	Cache CacheConfig `yaml:"cache" toml:"cache" json:"cache"`
}

type ScoreThresholds struct {
	Excellent int `yaml:"excellent" toml:"excellent" json:"excellent"` // >= 90
	Good      int `yaml:"good" toml:"good" json:"good"`                // >= 75
	Fair      int `yaml:"fair" toml:"fair" json:"fair"`                // >= 50
	Poor      int `yaml:"poor" toml:"poor" json:"poor"`                // < 50
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`

	// Empty selects the user cache directory
	Dir string `yaml:"dir,omitempty" toml:"dir" json:"dir,omitempty"`
}

type OutputConfig struct {
	// Default output format
	Format string `yaml:"format" toml:"format" json:"format"`

	// Colorized output
	Colors bool `yaml:"colors" toml:"colors" json:"colors"`

	// Verbosity level
	Verbose bool `yaml:"verbose" toml:"verbose" json:"verbose"`

	// Show the catalogue description under each finding
	ShowDescriptions bool `yaml:"show_descriptions" toml:"show_descriptions" json:"show_descriptions"`

	// Output file path (optional)
	OutputFile string `yaml:"output_file,omitempty" toml:"output_file" json:"output_file,omitempty"`
}

type RulesConfig struct {
	// Tags that are never reported
	Disabled []string `yaml:"disabled" toml:"disabled" json:"disabled"`

	// Severity overrides by tag
	Severity map[string]string `yaml:"severity,omitempty" toml:"severity" json:"severity,omitempty"`
}

type FilesConfig struct {
	// Include patterns
	Include []string `yaml:"include" toml:"include" json:"include"`

	// Exclude patterns
	Exclude []string `yaml:"exclude" toml:"exclude" json:"exclude"`

	// Whether to follow symlinks
	FollowSymlinks bool `yaml:"follow_symlinks" toml:"follow_symlinks" json:"follow_symlinks"`

	// Max file size (in KB)
	MaxFileSize int `yaml:"max_file_size" toml:"max_file_size" json:"max_file_size"`

	// Also pick up extensionless scripts with a python shebang
	SniffShebang bool `yaml:"sniff_shebang" toml:"sniff_shebang" json:"sniff_shebang"`
}

var validFormats = []string{"console", "json", "plain"}

func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Analysis: AnalysisConfig{
			ScoreThresholds: ScoreThresholds{
				Excellent: 90,
				Good:      75,
				Fair:      50,
				Poor:      0,
			},
			Jobs: 0,
			Cache: CacheConfig{
				Enabled: false,
			},
		},
		Output: OutputConfig{
			Format:           "plain",
			Colors:           true,
			Verbose:          false,
			ShowDescriptions: false,
		},
		Rules: RulesConfig{
			Disabled: []string{},
		},
		Files: FilesConfig{
			Include:        []string{"**/*.py"},
			Exclude:        []string{".git/**", ".tox/**", ".venv/**", "venv/**", "**/__pycache__/**", "node_modules/**"},
			FollowSymlinks: false,
			MaxFileSize:    4096, // 4MB
			SniffShebang:   true,
		},
	}
}

// LoadConfig loads configuration from file or returns default. Values
// from a .env file and PYDIATRA_* variables are applied on top.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig() // Start with defaults

	// If no config path provided, look for default config files
	if configPath == "" {
		configPath = findConfigFile()
	}

	switch {
	case configPath == "":
		if err := loadPyproject("pyproject.toml", config); err != nil {
			return nil, err
		}
	case filepath.Base(configPath) == "pyproject.toml":
		if err := loadPyproject(configPath, config); err != nil {
			return nil, err
		}
	default:
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	// .env does not override variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadPyproject reads the [tool.pydiatra] table of a pyproject.toml file.
// A missing file or table leaves config unchanged.
func loadPyproject(path string, config *Config) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	doc := struct {
		Tool struct {
			Pydiatra *Config `toml:"pydiatra"`
		} `toml:"tool"`
	}{}
	doc.Tool.Pydiatra = config
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return nil
}

// findConfigFile looks for config files in common locations
func findConfigFile() string {
	possiblePaths := []string{
		".pydiatra.yml",
		".pydiatra.yaml",
		"pydiatra.yml",
		"pydiatra.yaml",
		".config/pydiatra.yml",
		".config/pydiatra.yaml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// ApplyEnv overrides values from PYDIATRA_* variables looked up with
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok
	}
	parseBool := func(name string, dst *bool) error {
		v, ok := get(name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	if v, ok := get("JOBS"); ok {
		n, err := ParseJobs(v)
		if err != nil {
			return fmt.Errorf("%sJOBS: %w", EnvPrefix, err)
		}
		c.Analysis.Jobs = n
	}
	if v, ok := get("FORMAT"); ok {
		c.Output.Format = v
	}
	if v, ok := get("DATA_DIR"); ok {
		c.Analysis.DataDir = v
	}
	if v, ok := get("CACHE_DIR"); ok {
		c.Analysis.Cache.Dir = v
	}
	if v, ok := get("DISABLE"); ok {
		for _, kind := range strings.Split(v, ",") {
			if kind = strings.TrimSpace(kind); kind != "" {
				c.Rules.Disabled = append(c.Rules.Disabled, kind)
			}
		}
	}
	if err := parseBool("CACHE", &c.Analysis.Cache.Enabled); err != nil {
		return err
	}
	if err := parseBool("COLORS", &c.Output.Colors); err != nil {
		return err
	}
	return parseBool("VERBOSE", &c.Output.Verbose)
}

// ParseJobs accepts a positive number or "auto", which yields 0.
func ParseJobs(s string) (int, error) {
	if s == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number of jobs %q", s)
	}
	return n, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate score thresholds
	st := c.Analysis.ScoreThresholds
	if st.Excellent < st.Good || st.Good < st.Fair || st.Fair < st.Poor {
		return fmt.Errorf("score thresholds must be in descending order")
	}

	// Validate output format
	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, validFormats)
	}

	// Validate worker count
	if c.Analysis.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative")
	}

	if c.Files.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must not be negative")
	}

	// Validate severity overrides
	if _, err := c.SeverityOverrides(); err != nil {
		return err
	}

	return nil
}

// SeverityOverrides returns the parsed rules.severity table.
func (c *Config) SeverityOverrides() (map[string]models.Severity, error) {
	out := make(map[string]models.Severity, len(c.Rules.Severity))
	for kind, name := range c.Rules.Severity {
		s, err := models.ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("rules.severity.%s: %w", kind, err)
		}
		out[kind] = s
	}
	return out, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateConfig creates a sample configuration file
func GenerateConfig(configPath string) error {
	config := DefaultConfig()
	return config.SaveConfig(configPath)
}

// IsTagEnabled reports whether findings of kind are reported.
func (c *Config) IsTagEnabled(kind string) bool {
	return !slices.Contains(c.Rules.Disabled, kind)
}
