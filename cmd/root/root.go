// Package root contains the root command for the application
package root

import (
	"context"
	"os"

	"fjacquet/budget-sync/internal/config"
	"fjacquet/budget-sync/internal/container"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/validation"

	"github.com/spf13/cobra"
)

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// ConfigFile is an explicit configuration file, empty for the default lookup
	ConfigFile string

	// LogLevel and LogFormat override the configured logging when set
	LogLevel  string
	LogFormat string

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "budget-sync",
		Short: "Synchronize bank movements into a budgeting service with automatic categorization.",
		Long: `budget-sync fetches bank movements from an aggregator, e-mail notifications or
statement files, drops the ones the budgeting service already has, categorizes the
rest from manual rules and a learned payee memory, and inserts them in batches.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env must be loaded before viper reads the environment
			if path := config.LoadEnv(); path != "" {
				Log.Debug("Loaded environment file", logging.F(logging.FieldFile, path))
			}
		},
	}
)

// Init registers the persistent flags.
func Init() {
	Cmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", "", "Configuration file (default: config.yaml in $HOME/.budget-sync, .budget-sync or .)")
	Cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")
	Cmd.PersistentFlags().StringVar(&LogFormat, "log-format", "", "Log format override (text, json)")
}

// LoadConfig loads the configuration, applies the logging flags and
// reconfigures Log accordingly.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigFile)
	if err != nil {
		return nil, err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	if LogFormat != "" {
		cfg.Log.Format = LogFormat
	}
	Log = config.ConfigureLogging(cfg)
	warnPermissions(ConfigFile)
	return cfg, nil
}

// NewContainer loads the configuration and wires the application.
// With requireRemote the budgeting service and aggregator settings are checked too.
func NewContainer(ctx context.Context, requireRemote bool) (*container.Container, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if requireRemote {
		if err := cfg.ValidateSync(); err != nil {
			return nil, err
		}
	}
	return container.NewContainerWithLogger(ctx, cfg, Log)
}

// warnPermissions flags an explicit config file readable by others, since it
// may hold tokens and DSNs.
func warnPermissions(path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if err := validation.IsValidFilePermissions(info.Mode().Perm()); err != nil {
		Log.Warn("Configuration file permissions", logging.F(logging.FieldFile, path), logging.F("reason", err.Error()))
	}
}
