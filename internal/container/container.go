// Package container wires the application dependencies from a configuration.
// Commands build one Container and take everything they need from it.
package container

import (
	"context"
	"fmt"
	"time"

	"fjacquet/budget-sync/internal/aggregator"
	"fjacquet/budget-sync/internal/budget"
	"fjacquet/budget-sync/internal/categorizer"
	"fjacquet/budget-sync/internal/category"
	"fjacquet/budget-sync/internal/config"
	"fjacquet/budget-sync/internal/emailsource"
	"fjacquet/budget-sync/internal/history"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/memory"
	"fjacquet/budget-sync/internal/report"
	"fjacquet/budget-sync/internal/rules"
	"fjacquet/budget-sync/internal/statementsource"
	"fjacquet/budget-sync/internal/syncer"
)

// Container holds the wired dependencies. It is immutable after creation.
type Container struct {
	logger       logging.Logger
	config       *config.Config
	store        memory.Store
	cache        *memory.Cache
	budget       *budget.Client
	resolver     *category.Resolver
	engine       *categorizer.Engine
	sources      *syncer.MultiSource
	rules        *rules.File
	orchestrator *syncer.Orchestrator
	reporter     *report.Generator

	closers []func() error
}

// NewContainer creates and wires all application dependencies. Database
// backed memory stores connect here, so ctx bounds the connection attempt.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	return NewContainerWithLogger(ctx, cfg, config.ConfigureLogging(cfg))
}

// NewContainerWithLogger is NewContainer with a caller supplied logger.
func NewContainerWithLogger(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	logger = logging.OrDefault(logger)
	c := &Container{logger: logger, config: cfg}

	store, err := c.newStore(ctx)
	if err != nil {
		return nil, err
	}
	c.store = store
	c.cache = memory.NewCache(store, logger)

	policy := cfg.RetryPolicy()
	c.budget = budget.NewClient(cfg.Budget.BaseURL, cfg.Budget.Token, logger,
		budget.WithRetry(policy),
		budget.WithPageSize(cfg.Budget.PageSize))
	c.resolver = category.NewResolver(c.budget, logger)
	c.engine = categorizer.NewEngine(c.cache, c.resolver, logger)

	sources, err := c.newSources()
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.sources = syncer.NewMultiSource(logger, sources...)

	c.rules = rules.NewFile(cfg.Rules.File, logger)
	c.orchestrator = syncer.NewOrchestrator(c.sources, c.budget, c.engine, c.rules, syncer.Settings{
		AccountID: cfg.Budget.AccountID,
		BatchSize: cfg.Sync.BatchSize,
		DaysBack:  cfg.Sync.DaysBack,
		Retry:     policy,
	}, logger)
	c.reporter = report.NewGenerator(logger)

	logger.Info("Container initialized successfully",
		logging.F(logging.FieldBackend, cfg.Memory.Backend),
		logging.F("sources", c.sources.Name()))
	return c, nil
}

func (c *Container) newStore(ctx context.Context) (memory.Store, error) {
	cfg := c.config.Memory
	switch cfg.Backend {
	case memory.BackendYAML, "":
		return memory.NewYAMLStore(cfg.File, c.logger), nil
	case memory.BackendMemory:
		return memory.NewInMemoryStore(), nil
	case memory.BackendPostgres:
		s, err := memory.NewPostgresStore(ctx, cfg.PostgresDSN, c.logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error { s.Close(); return nil })
		return s, nil
	case memory.BackendMySQL:
		s, err := memory.NewMySQLStore(ctx, cfg.MySQLDSN, c.logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown memory backend: %s", cfg.Backend)
	}
}

func (c *Container) newSources() ([]syncer.Source, error) {
	cfg := c.config
	var sources []syncer.Source

	if cfg.Aggregator.Enabled {
		sources = append(sources, aggregator.NewClient(
			cfg.Aggregator.BaseURL, cfg.Aggregator.Token, cfg.Aggregator.AccountID,
			cfg.RetryPolicy(), c.logger))
	}
	if cfg.Email.Enabled {
		profiles, err := emailsource.LoadProfiles(cfg.Email.ProfilesFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, emailsource.NewSource(cfg.Email.Directory, profiles, c.logger))
	}
	if cfg.Statement.Enabled {
		sources = append(sources, statementsource.NewSource(cfg.Statement.Directory, cfg.StatementMapping(), c.logger))
	}
	return sources, nil
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the configuration the container was built from.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetMemory returns the payee memory cache.
func (c *Container) GetMemory() *memory.Cache {
	return c.cache
}

// GetStore returns the persistent backend behind the memory cache.
func (c *Container) GetStore() memory.Store {
	return c.store
}

// GetBudgetClient returns the budgeting service client.
func (c *Container) GetBudgetClient() *budget.Client {
	return c.budget
}

// GetCategorizer returns the categorization engine.
func (c *Container) GetCategorizer() *categorizer.Engine {
	return c.engine
}

// GetResolver returns the category name resolver.
func (c *Container) GetResolver() *category.Resolver {
	return c.resolver
}

// GetSources returns the enabled movement sources combined.
func (c *Container) GetSources() *syncer.MultiSource {
	return c.sources
}

// GetRules returns the manual rules file.
func (c *Container) GetRules() *rules.File {
	return c.rules
}

// GetOrchestrator returns the sync orchestrator.
func (c *Container) GetOrchestrator() *syncer.Orchestrator {
	return c.orchestrator
}

// GetReporter returns the report generator.
func (c *Container) GetReporter() *report.Generator {
	return c.reporter
}

// HistoryFetcher reads categorized history from the budgeting service.
func (c *Container) HistoryFetcher(now func() time.Time) *history.BudgetFetcher {
	return &history.BudgetFetcher{
		Transactions: c.budget,
		Categories:   c.resolver,
		AccountID:    c.config.Budget.AccountID,
		Now:          now,
	}
}

// Close releases database connections.
func (c *Container) Close() error {
	var first error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	c.logger.Debug("Container closed")
	return first
}
