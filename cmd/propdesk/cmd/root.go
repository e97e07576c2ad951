// Package cmd implements the CLI commands for the propdesk tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/propdesk/propdesk/internal/client/output"
	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/constants"
	"github.com/propdesk/propdesk/internal/logger"

	"github.com/spf13/cobra"
)

var (
	configFile    string
	debug         bool
	timeout       string
	timeoutCancel context.CancelFunc
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   constants.ProjectName,
	Short: constants.ProjectName,
	Long: fmt.Sprintf(`%s - %s
Sign in to your property workspace and follow its notifications from the terminal`,
		constants.ProjectName, *constants.GetVersion()),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		startTime := time.Now().UTC()
		cmd.SetContext(context.WithValue(cmd.Context(), constants.StartTimeCtxKey, startTime))
		printHeader(cmd)

		if verbose {
			output.Infof("CLI build: " + output.Bold(*constants.GetVersion()))
			output.Infof("Verbose output enabled")
		}

		path, cfg, cfgErr := loadConfig()
		logLevel, logEnv := logSettings(cfg, debug)
		log := logger.Initialize(logEnv, logLevel)

		// NOTICE: this runs after flags are parsed but before the command runs
		timeoutDuration, err := parseTimeout(timeout)
		if err != nil {
			return fmt.Errorf("error parsing timeout: %w", err)
		}
		if timeoutDuration > 0 {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeoutDuration)
			timeoutCancel = cancel // Store for cleanup in Execute()
			cmd.SetContext(ctx)
			if verbose {
				output.Infof("Timeout: %s", timeoutDuration)
			}
		} else if verbose {
			output.Infof("Timeout disabled")
		}

		if cfgErr != nil {
			log.Warn("failed to load configuration", "path", path, "error", cfgErr)
			return nil
		}
		if debug {
			cfg.Dev = true
		}

		cmd.SetContext(context.WithValue(cmd.Context(), constants.ConfigCtxKey, cfg))
		if verbose {
			output.Infof("Loaded configuration from %s", output.Bold(path))
			if cfg.APIBaseURL != "" {
				output.Infof("API base URL: %s", output.Bold(cfg.APIBaseURL))
			}
			if cfg.Origin != "" {
				output.Infof("Origin: %s", output.Bold(cfg.Origin))
			}
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if verbose {
			startTime := getStartTimeFromContext(cmd)
			if !startTime.IsZero() {
				output.Infof("Time elapsed: %s", output.Bold(output.Duration(time.Since(startTime))))
			}
		}
		if timeoutCancel != nil {
			timeoutCancel()
		}
	},
}

// Execute runs the root command and handles cleanup of timeout context.
func Execute() {
	err := rootCmd.Execute()
	if timeoutCancel != nil {
		timeoutCancel()
	}

	if err != nil {
		output.Errorf("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		fmt.Sprintf("Config file (default ~/%s/%s)", constants.ConfigDirName, constants.ConfigFileName))
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "10m", "Timeout for command execution (e.g., 10m, 30s, 1h, 0 to disable)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debugging logs, including HTTP and socket internals")
}

// parseTimeout parses timeout string to time.Duration
// defaults to 10 minutes if empty, "0" disables the timeout
// Supports formats: "10m", "30s", "1h", "600" (number of seconds)
// loadConfig reads the configuration named by --config, or the default file.
func loadConfig() (string, *config.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return "", nil, err
		}
	}
	cfg, err := config.LoadFrom(path)
	return path, cfg, err
}

// logSettings picks the CLI log level. --debug wins over the configured log_level.
func logSettings(cfg *config.Config, debug bool) (slog.Level, constants.Environment) {
	if debug {
		return slog.LevelDebug, constants.Development
	}
	if cfg == nil {
		return slog.LevelInfo, constants.CLI
	}
	return cfg.GetLogLevel(), constants.CLI
}

func parseTimeout(timeoutStr string) (time.Duration, error) {
	if timeoutStr == "" {
		timeoutStr = "10m"
	}

	duration, err := time.ParseDuration(timeoutStr)
	if err == nil {
		if duration < 0 {
			return 0, fmt.Errorf("invalid timeout: %s must not be negative", timeoutStr)
		}
		return duration, nil
	}

	seconds, err := strconv.Atoi(timeoutStr)
	if err != nil || seconds < 0 {
		errMsg := fmt.Sprintf(
			"invalid timeout format: %s (use duration like '10m' or '30s', or seconds like '600')",
			timeoutStr)
		return 0, errors.New(errMsg)
	}

	return time.Duration(seconds) * time.Second, nil
}

func printHeader(cmd *cobra.Command) {
	output.Header(output.Bold("🏠 " + constants.ProjectName + " " + cmd.CalledAs()))
}

// getConfigFromContext retrieves the config from the command context
func getConfigFromContext(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(constants.ConfigCtxKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("config not found in context")
	}
	return cfg, nil
}

func getStartTimeFromContext(cmd *cobra.Command) time.Time {
	startTime, ok := cmd.Context().Value(constants.StartTimeCtxKey).(time.Time)
	if !ok {
		return time.Time{}
	}
	return startTime
}

// RootCmd returns the root command for use by tools like doc generators.
func RootCmd() *cobra.Command {
	return rootCmd
}
