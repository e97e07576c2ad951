package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/propdesk/propdesk/internal/client/output"
	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/constants"

	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure the API endpoint and notification settings",
	Long: fmt.Sprintf(`Configure the API base URL, the application origin and the real-time
notification endpoint. This creates or updates the configuration file at ~/%s/%s
unless --config points elsewhere. Press enter to keep the current value.`,
		constants.ConfigDirName, constants.ConfigFileName),
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, _ []string) error {
	pathGetter := NewConfigPathGetter()
	service := NewConfigureService(
		NewOutputWrapper(),
		ConfigSaverFunc(func(cfg *config.Config) error {
			path, err := pathGetter.GetConfigPath()
			if err != nil {
				return err
			}
			return config.SaveTo(cfg, path)
		}),
		ConfigLoaderFunc(func() (*config.Config, error) {
			path, err := pathGetter.GetConfigPath()
			if err != nil {
				return nil, err
			}
			return config.LoadFrom(path)
		}),
		pathGetter,
	)
	return service.Configure(cmd.Context())
}

// ConfigLoader defines an interface for loading configuration
type ConfigLoader interface {
	Load() (*config.Config, error)
}

// ConfigSaver defines an interface for saving configuration
type ConfigSaver interface {
	Save(*config.Config) error
}

// ConfigPathGetter defines an interface for retrieving the configuration path
type ConfigPathGetter interface {
	GetConfigPath() (string, error)
}

// ConfigLoaderFunc adapts a function to the ConfigLoader interface
type ConfigLoaderFunc func() (*config.Config, error)

// Load executes the underlying function to load configuration
func (f ConfigLoaderFunc) Load() (*config.Config, error) {
	return f()
}

// ConfigSaverFunc adapts a function to the ConfigSaver interface
type ConfigSaverFunc func(*config.Config) error

// Save executes the underlying function to persist configuration
func (f ConfigSaverFunc) Save(cfg *config.Config) error {
	return f(cfg)
}

// ConfigPathGetterFunc adapts a function to the ConfigPathGetter interface
type ConfigPathGetterFunc func() (string, error)

// GetConfigPath executes the underlying function to retrieve the config path
func (f ConfigPathGetterFunc) GetConfigPath() (string, error) {
	return f()
}

// NewConfigPathGetter returns the --config path when set, else the default location
func NewConfigPathGetter() ConfigPathGetter {
	return ConfigPathGetterFunc(func() (string, error) {
		if configFile != "" {
			return configFile, nil
		}
		return config.GetConfigPath()
	})
}

// ConfigureService handles configuration logic
type ConfigureService struct {
	output           OutputInterface
	configSaver      ConfigSaver
	configLoader     ConfigLoader
	configPathGetter ConfigPathGetter
}

// NewConfigureService creates a new ConfigureService with the provided dependencies
func NewConfigureService(
	outputter OutputInterface,
	configSaver ConfigSaver,
	configLoader ConfigLoader,
	configPathGetter ConfigPathGetter,
) *ConfigureService {
	return &ConfigureService{
		output:           outputter,
		configSaver:      configSaver,
		configLoader:     configLoader,
		configPathGetter: configPathGetter,
	}
}

// Configure runs the interactive configuration flow
func (s *ConfigureService) Configure(_ context.Context) error {
	existing, err := s.configLoader.Load()
	if err == nil {
		s.output.Successf("Found existing configuration")
	} else {
		existing = &config.Config{}
		s.output.Infof("Creating new configuration")
	}

	cfg := &config.Config{
		APIBaseURL:            s.ask("API base URL (e.g. https://app.propdesk.io/api)", existing.APIBaseURL),
		Origin:                s.ask("Application origin (optional)", existing.Origin),
		NotificationsURL:      s.ask("Notifications URL (optional)", existing.NotificationsURL),
		NotificationsPath:     s.ask("Notifications path override (optional)", existing.NotificationsPath),
		NotificationsDisabled: existing.NotificationsDisabled,
	}
	if cfg.APIBaseURL == "" && cfg.Origin == "" {
		return fmt.Errorf("an API base URL or an application origin is required")
	}
	if cfg.NotificationsPath != "" && !strings.HasPrefix(cfg.NotificationsPath, "/") {
		cfg.NotificationsPath = "/" + cfg.NotificationsPath
	}

	if err = s.configSaver.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	configPath, err := s.configPathGetter.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	s.output.Successf("Configuration saved successfully")
	s.output.KeyValue("Configuration path", configPath)
	s.output.Infof("Run %s to sign in", output.Bold("propdesk login"))
	return nil
}

// ask prompts for a value, keeping current when the answer is empty.
func (s *ConfigureService) ask(prompt, current string) string {
	if current != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, current)
	}
	answer := strings.TrimSpace(s.output.Prompt(prompt))
	if answer == "" {
		return current
	}
	return answer
}
