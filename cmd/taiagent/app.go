package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taiagent/taiagent/internal/agent"
	"github.com/taiagent/taiagent/internal/config"
	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/logging"
	"github.com/taiagent/taiagent/internal/registry"
	"github.com/taiagent/taiagent/internal/store"
	"github.com/taiagent/taiagent/internal/tasks"
	"github.com/taiagent/taiagent/internal/telemetry"
	"github.com/taiagent/taiagent/internal/tools"
	"github.com/taiagent/taiagent/internal/tools/builtin"
)

const shutdownTimeout = 5 * time.Second

// app is the process wiring shared by the subcommands. Each open* step is
// optional so that cheap commands (tools, history) skip the provider.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.DB
	logs   *store.LogStore
	client core.ChatClient
	tools  *tools.Registry

	shutdownTrace func(context.Context) error
}

// loadApp resolves the configuration and builds the stderr logger.
func loadApp(v *viper.Viper, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// setup loads the app for cmd and opens the requested parts. The caller must
// Close the returned app.
func setup(cmd *cobra.Command, v *viper.Viper, withStore, withAgent bool) (*app, error) {
	a, err := loadApp(v, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if withStore {
		if err := a.openStore(ctx); err != nil {
			return nil, err
		}
	}
	if withAgent {
		if err := a.openAgent(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// openStore opens the database and mirrors warnings into its log table.
func (a *app) openStore(ctx context.Context) error {
	if err := a.cfg.EnsureDir(); err != nil {
		return err
	}
	db, err := store.Open(ctx, a.cfg.DBPath)
	if err != nil {
		return err
	}
	a.db = db
	a.logs = store.NewLogStore(db)
	if err := a.logs.Prune(ctx); err != nil {
		a.logger.Warn("log prune failed", "component", "store", "error", err)
	}
	a.logger = slog.New(logging.NewStoreHandler(a.logger.Handler(), a.logs))
	return nil
}

// openAgent sets up tracing, the chat client and the tool registry.
func (a *app) openAgent(ctx context.Context) error {
	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled: a.cfg.Trace,
		Path:    a.cfg.TracePath,
		Version: version,
	})
	if err != nil {
		return err
	}
	a.shutdownTrace = shutdown

	// Provider clients log through the default logger.
	slog.SetDefault(a.logger)
	client, err := registry.NewClient(a.cfg)
	if err != nil {
		return err
	}
	a.client = client
	return a.openTools()
}

func (a *app) openTools() error {
	reg, err := builtin.NewRegistry(builtin.Options{
		Logger:       a.logger,
		GoogleAPIKey: a.cfg.Google.APIKey,
		GoogleCX:     a.cfg.Google.CX,
	})
	if err != nil {
		return err
	}
	a.tools = reg
	return nil
}

func (a *app) loop() (*agent.Loop, error) {
	policy, err := agent.ParseUnknownToolPolicy(a.cfg.UnknownTools)
	if err != nil {
		return nil, err
	}
	return &agent.Loop{
		Client:             a.client,
		Tools:              a.tools,
		Logger:             a.logger.With("component", "agent"),
		Tracer:             telemetry.Tracer(),
		MaxRounds:          a.cfg.MaxRounds,
		UnknownTools:       policy,
		MaxToolOutputRunes: a.cfg.ToolOutputMaxRunes,
	}, nil
}

func (a *app) systemPrompt() (string, error) {
	return agent.LoadSystemPrompt(a.cfg.ConfigDir)
}

func (a *app) backoff() tasks.BackoffPolicy {
	return tasks.BackoffPolicy{
		Attempts:   a.cfg.Retry.Attempts,
		Delay:      a.cfg.Retry.Delay,
		Multiplier: a.cfg.Retry.Multiplier,
		Jitter:     a.cfg.Retry.Jitter,
		MaxDelay:   a.cfg.Retry.MaxDelay,
	}
}

// Close flushes spans and closes the database.
func (a *app) Close() error {
	var errs []error
	if a.shutdownTrace != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.shutdownTrace(ctx))
		cancel()
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
