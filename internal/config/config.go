// Package config handles configuration loading and validation for the
// indexing daemon.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ProjectDirName is the per-project configuration directory name.
	ProjectDirName = ".localsearch"
	// ProjectConfigFile is the config filename inside the project dir.
	ProjectConfigFile = "config.yaml"
	// DefaultDBDir is the default store directory name inside the project dir.
	DefaultDBDir = "index.db"
)

// IndexRootConfig describes one configured indexing root.
type IndexRootConfig struct {
	// Path is the absolute filesystem path to index.
	Path string `mapstructure:"path"`
}

// Config holds all configuration for the indexing daemon, keyed the way
// ControllerGlue diffs it against the live IndexingTree.
type Config struct {
	// IndexRecursiveDirectories lists roots indexed recursively
	// (tree.Recurse).
	IndexRecursiveDirectories []IndexRootConfig `mapstructure:"index-recursive-directories" yaml:"index-recursive-directories"`
	// IndexSingleDirectories lists roots indexed non-recursively (direct
	// children only).
	IndexSingleDirectories []IndexRootConfig `mapstructure:"index-single-directories" yaml:"index-single-directories"`

	// IgnoredFiles are basename glob patterns that exclude matching files.
	IgnoredFiles []string `mapstructure:"ignored-files" yaml:"ignored-files"`
	// IgnoredDirectories are basename glob patterns that exclude matching
	// directories (and everything under them).
	IgnoredDirectories []string `mapstructure:"ignored-directories" yaml:"ignored-directories"`
	// IgnoredDirectoriesWithContent names literal child entries (e.g.
	// ".noindex") that disqualify their parent directory from indexing
	// when present.
	IgnoredDirectoriesWithContent []string `mapstructure:"ignored-directories-with-content" yaml:"ignored-directories-with-content"`

	// TextAllowlist lists mimetypes or extensions treated as indexable
	// text content by the extractor hand-off.
	TextAllowlist []string `mapstructure:"text-allowlist" yaml:"text-allowlist"`

	// EnableMonitors turns on live fsnotify-backed monitoring in addition
	// to the reconciliation of each queued root.
	EnableMonitors bool `mapstructure:"enable-monitors" yaml:"enable-monitors"`
	// IndexRemovableDevices opts removable media in; ControllerGlue adds
	// Recurse|Preserve|Priority|IsVolume roots for mounts that appear
	// while this is set.
	IndexRemovableDevices bool `mapstructure:"index-removable-devices" yaml:"index-removable-devices"`

	// StorePath is the path to the badger store directory.
	StorePath string `mapstructure:"store-path" yaml:"store-path"`

	// ConfigDir is the resolved .localsearch directory path (not persisted
	// in YAML).
	ConfigDir string `mapstructure:"-" yaml:"-"`
}

// DiscoverProjectDir walks up from startDir looking for a .localsearch/
// directory. Returns the full path if found, or empty string if not.
func DiscoverProjectDir(startDir string) string {
	dir := startDir
	for {
		candidate := filepath.Join(dir, ProjectDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return ""
}

// ResolveStorePath determines the store path using this priority:
//  1. flagValue (CLI --store-path flag) if non-empty
//  2. store-path from config YAML if non-empty
//  3. <ConfigDir>/index.db if ConfigDir is set
//  4. empty string (caller should handle)
func (c *Config) ResolveStorePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if c.StorePath != "" {
		return c.StorePath
	}
	if c.ConfigDir != "" {
		return filepath.Join(c.ConfigDir, DefaultDBDir)
	}
	return ""
}

// Load loads configuration from file, environment variables, and defaults.
// Search order:
//  1. --config flag (explicit path via global viper)
//  2. Walk up from CWD for .localsearch/config.yaml
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LOCALSEARCHD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	var configDir string

	globalViper := viper.GetViper()
	if configFile := globalViper.GetString("config_file"); configFile != "" {
		v.SetConfigFile(configFile)
		cfgParent := filepath.Dir(configFile)
		if filepath.Base(cfgParent) == ProjectDirName {
			configDir = cfgParent
		}
	} else if v.ConfigFileUsed() == "" {
		cwd, err := os.Getwd()
		if err == nil {
			if projDir := DiscoverProjectDir(cwd); projDir != "" {
				configDir = projDir
				configFile := filepath.Join(projDir, ProjectConfigFile)
				if _, err := os.Stat(configFile); err == nil {
					v.SetConfigFile(configFile)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if configDir != "" {
		loadEnvFile(filepath.Join(configDir, ".env"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.ConfigDir = configDir
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if len(c.IndexRecursiveDirectories) == 0 && len(c.IndexSingleDirectories) == 0 {
		return fmt.Errorf("at least one of index-recursive-directories or index-single-directories must be configured")
	}

	seen := make(map[string]struct{})
	for _, r := range c.IndexRecursiveDirectories {
		if r.Path == "" {
			return fmt.Errorf("index-recursive-directories: path is required")
		}
		if !filepath.IsAbs(r.Path) {
			return fmt.Errorf("index-recursive-directories: %q must be absolute", r.Path)
		}
		seen[r.Path] = struct{}{}
	}
	for _, r := range c.IndexSingleDirectories {
		if r.Path == "" {
			return fmt.Errorf("index-single-directories: path is required")
		}
		if !filepath.IsAbs(r.Path) {
			return fmt.Errorf("index-single-directories: %q must be absolute", r.Path)
		}
		if _, dup := seen[r.Path]; dup {
			return fmt.Errorf("index-single-directories: %q is already configured as recursive", r.Path)
		}
	}

	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ignored-files", []string{
		"*.tmp",
		"*.swp",
		".DS_Store",
	})
	v.SetDefault("ignored-directories", []string{
		".git",
		"node_modules",
		"__pycache__",
	})
	v.SetDefault("ignored-directories-with-content", []string{
		".noindex",
	})
	v.SetDefault("text-allowlist", []string{
		"text/plain",
		"text/markdown",
		"text/x-go",
	})
	v.SetDefault("enable-monitors", true)
	v.SetDefault("index-removable-devices", false)
}

// loadEnvFile reads a .env file and sets environment variables from it.
// Each line should be in KEY=VALUE format. Lines starting with # and blank
// lines are skipped. Values are not overridden if the environment variable
// is already set.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // file doesn't exist or can't be read; silently skip
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
