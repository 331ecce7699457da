package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"whisk/internal/common"
	"whisk/pkg/models"
)

func GetConfigPath() string {
	// Check for environment variable first
	if configPath := os.Getenv("WHISK_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".whisk")
}

func GetConfigFile() string {
	// Check for environment variable first
	if configFile := os.Getenv("WHISK_CONFIG"); configFile != "" {
		// Validate the path to prevent directory traversal
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			// Fall back to default if invalid
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	cleanedPath, err := common.CleanPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		return ApplyDefaults(&models.Config{}), nil
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return ApplyDefaults(&config), nil
}

func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := GetConfigFile()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

// ApplyDefaults fills in the settings most configs leave implicit.
func ApplyDefaults(cfg *models.Config) *models.Config {
	if cfg.Shop.APIVersion == "" {
		cfg.Shop.APIVersion = "2024-01"
	}
	if cfg.Snowflake.RawSchema == "" {
		cfg.Snowflake.RawSchema = "RAW"
	}
	if cfg.Snowflake.Schema == "" {
		cfg.Snowflake.Schema = "ANALYTICS"
	}
	if cfg.Snowflake.Timeout == "" {
		cfg.Snowflake.Timeout = "30s"
	}
	if len(cfg.Sync.Entities) == 0 {
		cfg.Sync.Entities = []string{"orders", "customers"}
	}
	if cfg.Sync.PageSize <= 0 || cfg.Sync.PageSize > 250 {
		cfg.Sync.PageSize = 250
	}
	if cfg.Sync.Parallel <= 0 {
		cfg.Sync.Parallel = 2
	}
	if cfg.Sync.BatchSize <= 0 {
		cfg.Sync.BatchSize = 500
	}
	if cfg.Transform.ModelsDir == "" {
		cfg.Transform.ModelsDir = "models"
	}
	return cfg
}
