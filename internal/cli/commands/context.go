package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/cli/querydoc"
	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/mapping"
	"github.com/leapstack-labs/leapquery/pkg/plan"
	"github.com/leapstack-labs/leapquery/pkg/translate"
	"github.com/spf13/cobra"
)

type configKey struct{}

type loggerKey struct{}

// WithConfig stores cfg in ctx for the commands.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores logger in ctx for the commands.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// getConfig returns the loaded configuration, or the defaults when the
// root command did not load one.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		Dialect:   config.DefaultDialect,
		LogLevel:  config.DefaultLogLevel,
		Output:    config.DefaultOutput,
		StatePath: config.DefaultStateFile,
		Cache:     config.CacheConfig{Enabled: true, MaxEntries: config.DefaultMaxEntries},
	}
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer of cmd.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := getConfig(ctx)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   GetLogger(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}
}

// Translator builds a translator for the named dialect, or the configured
// one when name is empty.
func (c *CommandContext) Translator(name string) (*translate.Translator, error) {
	if name == "" {
		name = c.Cfg.Dialect
	}
	d, err := dialect.Lookup(name)
	if err != nil {
		return nil, err
	}
	var cache *plan.Cache
	if c.Cfg.Cache.Enabled {
		cache = plan.NewCache(c.Cfg.Cache.MaxEntries)
	}
	return translate.New(translate.Config{
		Dialect:       d,
		Cache:         cache,
		MaxIterations: c.Cfg.Optimizer.MaxIterations,
		Logger:        c.Logger,
	})
}

// Query loads the query document at path and builds its tree against the
// configured mappings.
func (c *CommandContext) Query(path string, params map[string]string) (core.Node, error) {
	if c.Cfg.Mappings == "" {
		return nil, fmt.Errorf("no entity mappings configured\nHint: set mappings in %s or pass --mappings", config.ConfigFileName)
	}
	entities, err := mapping.LoadFile(c.Cfg.Mappings)
	if err != nil {
		return nil, err
	}
	doc, err := querydoc.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return doc.Build(entities, params)
}

// Record appends res to the query history unless history is off. Failures
// are logged, not returned: the translation itself succeeded.
func (c *CommandContext) Record(ctx context.Context, res *translate.Result, source string) {
	if !c.Cfg.History || c.Cfg.StatePath == "" {
		return
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(ctx, c.Cfg.StatePath); err != nil {
		c.Logger.Warn("query history unavailable", slog.String("path", c.Cfg.StatePath), slog.Any("error", err))
		return
	}
	defer func() { _ = store.Close() }()
	if err := store.Log(ctx, historyEntry(res, source)); err != nil {
		c.Logger.Warn("failed to record query", slog.Any("error", err))
	}
}

func historyEntry(res *translate.Result, source string) *state.Entry {
	e := &state.Entry{
		ID:        res.ID,
		Dialect:   res.Dialect,
		ShapeHash: res.ShapeHash,
		Commands:  len(res.Commands),
		CacheHit:  res.CacheHit,
		Source:    source,
	}
	for i, cmd := range res.Commands {
		if i > 0 {
			e.CommandText += ";\n"
		}
		e.CommandText += cmd.CommandText
		e.Parameters += len(cmd.Parameters) + len(cmd.Variables)
	}
	return e
}

// openHistory opens the query history for reading.
func (c *CommandContext) openHistory(ctx context.Context) (*state.SQLiteStore, error) {
	if c.Cfg.StatePath != ":memory:" {
		if _, err := os.Stat(c.Cfg.StatePath); err != nil {
			return nil, fmt.Errorf("no query history at %s: %w", c.Cfg.StatePath, err)
		}
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(ctx, c.Cfg.StatePath); err != nil {
		return nil, err
	}
	return store, nil
}
