// Package config loads the hierarchical application configuration: defaults,
// then an optional YAML file, then BUDGET_SYNC_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/budget-sync/internal/memory"
	"fjacquet/budget-sync/internal/retry"
	"fjacquet/budget-sync/internal/statementsource"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// MaxBatchSize is the largest insert batch the budgeting service accepts.
const MaxBatchSize = 50

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Budget struct {
		BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
		Token     string `mapstructure:"token" yaml:"-"`
		AccountID string `mapstructure:"account_id" yaml:"account_id"`
		PageSize  int    `mapstructure:"page_size" yaml:"page_size"`
	} `mapstructure:"budget" yaml:"budget"`

	Aggregator struct {
		Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
		BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
		Token     string `mapstructure:"token" yaml:"-"`
		AccountID string `mapstructure:"account_id" yaml:"account_id"`
	} `mapstructure:"aggregator" yaml:"aggregator"`

	Email struct {
		Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
		Directory    string `mapstructure:"directory" yaml:"directory"`
		ProfilesFile string `mapstructure:"profiles_file" yaml:"profiles_file"`
	} `mapstructure:"email" yaml:"email"`

	Statement struct {
		Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
		Directory   string   `mapstructure:"directory" yaml:"directory"`
		Delimiter   string   `mapstructure:"delimiter" yaml:"delimiter"`
		DateLayouts []string `mapstructure:"date_layouts" yaml:"date_layouts"`
		Columns     struct {
			Date      string `mapstructure:"date" yaml:"date"`
			Payee     string `mapstructure:"payee" yaml:"payee"`
			Amount    string `mapstructure:"amount" yaml:"amount"`
			Debit     string `mapstructure:"debit" yaml:"debit"`
			Credit    string `mapstructure:"credit" yaml:"credit"`
			Reference string `mapstructure:"reference" yaml:"reference"`
			Notes     string `mapstructure:"notes" yaml:"notes"`
		} `mapstructure:"columns" yaml:"columns"`
	} `mapstructure:"statement" yaml:"statement"`

	Sync struct {
		DaysBack     int  `mapstructure:"days_back" yaml:"days_back"`
		BatchSize    int  `mapstructure:"batch_size" yaml:"batch_size"`
		MaxRetries   int  `mapstructure:"max_retries" yaml:"max_retries"`
		RetryDelayMs int  `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
		DryRun       bool `mapstructure:"dry_run" yaml:"dry_run"`
	} `mapstructure:"sync" yaml:"sync"`

	Memory struct {
		Backend     string `mapstructure:"backend" yaml:"backend"`
		File        string `mapstructure:"file" yaml:"file"`
		PostgresDSN string `mapstructure:"postgres_dsn" yaml:"-"`
		MySQLDSN    string `mapstructure:"mysql_dsn" yaml:"-"`
	} `mapstructure:"memory" yaml:"memory"`

	Rules struct {
		File string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"rules" yaml:"rules"`

	Schedule struct {
		Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
		Cron     string `mapstructure:"cron" yaml:"cron"`
		Timezone string `mapstructure:"timezone" yaml:"timezone"`
	} `mapstructure:"schedule" yaml:"schedule"`

	Server struct {
		Address string `mapstructure:"address" yaml:"address"`
	} `mapstructure:"server" yaml:"server"`
}

// InitializeConfig loads the configuration from the default locations.
func InitializeConfig() (*Config, error) {
	return Load("")
}

// Load builds the configuration. An explicit configFile must exist; without
// one, config.yaml is looked up in $HOME/.budget-sync, .budget-sync and the
// working directory and is optional.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.budget-sync")
		v.AddConfigPath(".budget-sync")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix("BUDGET_SYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config file: %v", syncerror.ErrInvalidConfig, err)
		}
	}

	// 5. Tokens may also come from the unprefixed variables used by the services
	if err := v.BindEnv("budget.token", "BUDGET_SYNC_BUDGET_TOKEN", "BUDGET_TOKEN"); err != nil {
		return nil, fmt.Errorf("binding BUDGET_TOKEN: %w", err)
	}
	if err := v.BindEnv("aggregator.token", "BUDGET_SYNC_AGGREGATOR_TOKEN", "AGGREGATOR_TOKEN"); err != nil {
		return nil, fmt.Errorf("binding AGGREGATOR_TOKEN: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", syncerror.ErrInvalidConfig, err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("budget.base_url", "")
	v.SetDefault("budget.token", "")
	v.SetDefault("budget.account_id", "")
	v.SetDefault("budget.page_size", 100)

	v.SetDefault("aggregator.enabled", true)
	v.SetDefault("aggregator.base_url", "")
	v.SetDefault("aggregator.token", "")
	v.SetDefault("aggregator.account_id", "")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.directory", "inbox")
	v.SetDefault("email.profiles_file", "database/email_profiles.yaml")

	def := statementsource.DefaultMapping()
	v.SetDefault("statement.enabled", false)
	v.SetDefault("statement.directory", "statements")
	v.SetDefault("statement.delimiter", ",")
	v.SetDefault("statement.date_layouts", []string{})
	v.SetDefault("statement.columns.date", def.Date)
	v.SetDefault("statement.columns.payee", def.Payee)
	v.SetDefault("statement.columns.amount", def.Amount)
	v.SetDefault("statement.columns.debit", "")
	v.SetDefault("statement.columns.credit", "")
	v.SetDefault("statement.columns.reference", def.Reference)
	v.SetDefault("statement.columns.notes", "")

	v.SetDefault("sync.days_back", 30)
	v.SetDefault("sync.batch_size", MaxBatchSize)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.retry_delay_ms", 500)
	v.SetDefault("sync.dry_run", false)

	v.SetDefault("memory.backend", memory.BackendYAML)
	v.SetDefault("memory.file", memory.DefaultFile)
	v.SetDefault("memory.postgres_dsn", "")
	v.SetDefault("memory.mysql_dsn", "")

	v.SetDefault("rules.file", "database/rules.yaml")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.cron", "0 6 * * *")
	v.SetDefault("schedule.timezone", "UTC")

	v.SetDefault("server.address", ":8080")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Sync.BatchSize < 1 || config.Sync.BatchSize > MaxBatchSize {
		return fmt.Errorf("sync.batch_size must be between 1 and %d, got: %d", MaxBatchSize, config.Sync.BatchSize)
	}
	if config.Sync.DaysBack < 0 {
		return fmt.Errorf("sync.days_back must not be negative, got: %d", config.Sync.DaysBack)
	}
	if config.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync.max_retries must be at least 1, got: %d", config.Sync.MaxRetries)
	}

	switch config.Memory.Backend {
	case memory.BackendYAML, memory.BackendMemory:
	case memory.BackendPostgres:
		if config.Memory.PostgresDSN == "" {
			return fmt.Errorf("memory.postgres_dsn required when memory.backend is postgres")
		}
	case memory.BackendMySQL:
		if config.Memory.MySQLDSN == "" {
			return fmt.Errorf("memory.mysql_dsn required when memory.backend is mysql")
		}
	default:
		return fmt.Errorf("unknown memory backend: %s", config.Memory.Backend)
	}

	if config.Schedule.Enabled {
		if _, err := cron.ParseStandard(config.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid schedule.cron %q: %v", config.Schedule.Cron, err)
		}
		if _, err := time.LoadLocation(config.Schedule.Timezone); err != nil {
			return fmt.Errorf("invalid schedule.timezone %q: %v", config.Schedule.Timezone, err)
		}
	}

	if !config.Aggregator.Enabled && !config.Email.Enabled && !config.Statement.Enabled {
		return fmt.Errorf("at least one of aggregator, email or statement sources must be enabled")
	}

	if config.Statement.Enabled {
		if len([]rune(config.Statement.Delimiter)) != 1 {
			return fmt.Errorf("statement.delimiter must be a single character, got: %s", config.Statement.Delimiter)
		}
		if err := config.StatementMapping().Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSync checks the settings needed to talk to the remote services.
// Commands that only work on local state do not call it.
func (c *Config) ValidateSync() error {
	if c.Budget.BaseURL == "" || c.Budget.AccountID == "" {
		return fmt.Errorf("%w: budget.base_url and budget.account_id are required", syncerror.ErrInvalidConfig)
	}
	if c.Aggregator.Enabled && (c.Aggregator.BaseURL == "" || c.Aggregator.AccountID == "") {
		return fmt.Errorf("%w: aggregator.base_url and aggregator.account_id are required when the aggregator is enabled", syncerror.ErrInvalidConfig)
	}
	return nil
}

// RetryPolicy converts the sync retry settings.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.Sync.MaxRetries
	p.InitialDelay = time.Duration(c.Sync.RetryDelayMs) * time.Millisecond
	return p
}

// StatementMapping converts the statement column settings.
func (c *Config) StatementMapping() statementsource.Mapping {
	cols := c.Statement.Columns
	m := statementsource.Mapping{
		Date:        cols.Date,
		Payee:       cols.Payee,
		Amount:      cols.Amount,
		Debit:       cols.Debit,
		Credit:      cols.Credit,
		Reference:   cols.Reference,
		Notes:       cols.Notes,
		DateLayouts: c.Statement.DateLayouts,
		Delimiter:   ',',
	}
	if r := []rune(c.Statement.Delimiter); len(r) == 1 {
		m.Delimiter = r[0]
	}
	// an explicit debit/credit pair replaces the default amount column
	if (cols.Debit != "" || cols.Credit != "") && cols.Amount == statementsource.DefaultMapping().Amount {
		m.Amount = ""
	}
	return m
}

// Location returns the scheduler time zone, UTC when unset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil || c.Schedule.Timezone == "" {
		return time.UTC
	}
	return loc
}
