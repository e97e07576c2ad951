// Package config manages configuration for the propdesk CLI and client SDK.
// It uses Viper for unified configuration management from files and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/propdesk/propdesk/internal/constants"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the configuration of the API client and the notification channel.
// It supports loading from a YAML file and PROPDESK_* environment variables.
type Config struct {
	// APIBaseURL overrides the API base URL. When empty it is derived from Origin.
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url" validate:"omitempty,url"`
	// Origin plays the role of the current page origin, e.g. https://app.propdesk.io.
	Origin string `mapstructure:"origin" yaml:"origin" validate:"omitempty,url"`

	NotificationsURL      string `mapstructure:"notifications_url" yaml:"notifications_url" validate:"omitempty,url"`
	NotificationsPath     string `mapstructure:"notifications_path" yaml:"notifications_path" validate:"omitempty,startswith=/"`
	NotificationsDisabled bool   `mapstructure:"notifications_disabled" yaml:"notifications_disabled"`

	TokenFile      string        `mapstructure:"token_file" yaml:"token_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gte=0"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	// Dev enables logging of client internals.
	Dev bool `mapstructure:"dev" yaml:"dev"`
}

var validate = validator.New()

// Load loads the configuration from ~/.propdesk/config.yaml and the environment.
// A missing config file is not an error. Environment variables take precedence.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from the given file and the environment.
func LoadFrom(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := loadConfigFile(v, configFile); err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	cfg.Origin = strings.TrimRight(strings.TrimSpace(cfg.Origin), "/")

	if cfg.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("error getting home directory: %w", err)
		}
		cfg.TokenFile = constants.TokenFilePath(home)
	}

	return &cfg, nil
}

// Save writes the persistent subset of the configuration to the user's config file.
// Overwrites the existing config file if it exists.
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the persistent subset of the configuration to the given file.
func SaveTo(cfg *Config, configFile string) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.Set("api_base_url", cfg.APIBaseURL)
	v.Set("origin", cfg.Origin)
	v.Set("notifications_url", cfg.NotificationsURL)
	v.Set("notifications_path", cfg.NotificationsPath)
	v.Set("notifications_disabled", cfg.NotificationsDisabled)

	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	if err := os.Chmod(configFile, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("error setting config file permissions: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}
	return constants.ConfigFilePath(home), nil
}

// GetLogLevel returns the slog.Level from the string configuration.
// Defaults to INFO if the level string is invalid.
func (c *Config) GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "")
	v.SetDefault("origin", "")
	v.SetDefault("notifications_url", "")
	v.SetDefault("notifications_path", "")
	v.SetDefault("notifications_disabled", false)
	v.SetDefault("token_file", "")
	v.SetDefault("request_timeout", constants.DefaultRequestTimeout)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("dev", false)
}

func loadConfigFile(v *viper.Viper, configFile string) error {
	if configFile == "" {
		return nil
	}
	if _, err := os.Stat(configFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	return v.ReadInConfig()
}

func bindEnvVars(v *viper.Viper) {
	envVars := []string{
		"API_BASE_URL",
		"DEV",
		"LOG_LEVEL",
		"NOTIFICATIONS_DISABLED",
		"NOTIFICATIONS_PATH",
		"NOTIFICATIONS_URL",
		"ORIGIN",
		"REQUEST_TIMEOUT",
		"TOKEN_FILE",
	}

	for _, envVar := range envVars {
		_ = v.BindEnv(strings.ToLower(envVar), constants.EnvPrefix+"_"+envVar)
	}
}
