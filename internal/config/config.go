package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"vaultrecon/internal/common"
	"vaultrecon/pkg/errors"
	"vaultrecon/pkg/models"
)

const (
	DefaultSampleLimit  = 10
	DefaultQueryTimeout = 5 * time.Minute
	DefaultLoginTimeout = 60 * time.Second

	configEnvVar = "VAULTRECON_CONFIG"
)

func GetConfigPath() string {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vaultrecon")
}

func GetConfigFile() string {
	if configFile := os.Getenv(configEnvVar); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// DefaultHistoryPath is where run history lives unless history.path says otherwise.
func DefaultHistoryPath() string {
	return filepath.Join(GetConfigPath(), "history.db")
}

// Load reads the configuration at path, or the default location when path is empty.
// Defaults are applied but the result is not validated.
func Load(path string) (*models.Config, error) {
	if path == "" {
		path = GetConfigFile()
	}

	cleanedPath, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid config file path").
			WithContext("path", path)
	}

	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeConfigNotFound, "Configuration file not found").
			WithContext("path", cleanedPath).
			WithSuggestions(
				fmt.Sprintf("Create %s with a snowflake section and a tables list", cleanedPath),
				"Pass --config or set "+configEnvVar,
			)
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read config file").
			WithContext("path", cleanedPath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse config file").
			WithContext("path", cleanedPath)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*models.Config, error) {
	var cfg models.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := DecryptConfigPasswords(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills unset tuning values.
func ApplyDefaults(cfg *models.Config) {
	if cfg.Reconcile.SampleLimit <= 0 {
		cfg.Reconcile.SampleLimit = DefaultSampleLimit
	}
	if cfg.Reconcile.QueryTimeout == "" {
		cfg.Reconcile.QueryTimeout = DefaultQueryTimeout.String()
	}
	if cfg.Snowflake.Timeout == "" {
		cfg.Snowflake.Timeout = DefaultLoginTimeout.String()
	}
	if cfg.History.Enabled == nil {
		enabled := true
		cfg.History.Enabled = &enabled
	}
	if cfg.History.IsEnabled() && cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath()
	}
}

// QueryTimeout returns the per-statement timeout, falling back to the default
// when the configured value does not parse.
func QueryTimeout(cfg *models.Config) time.Duration {
	return parseDuration(cfg.Reconcile.QueryTimeout, DefaultQueryTimeout)
}

// LoginTimeout returns the Snowflake login timeout.
func LoginTimeout(cfg *models.Config) time.Duration {
	return parseDuration(cfg.Snowflake.Timeout, DefaultLoginTimeout)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func Save(path string, cfg *models.Config) error {
	if path == "" {
		path = GetConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists(path string) bool {
	if path == "" {
		path = GetConfigFile()
	}
	_, err := os.Stat(path)
	return err == nil
}
