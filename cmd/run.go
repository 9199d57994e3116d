package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/config"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/engine"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/random"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store/pgstore"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store/redisstore"
)

// runtime is everything a command needs, with one cleanup for all of it.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	engine  *engine.Engine
	release func()
}

func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if p, _ := cmd.Flags().GetString("bank"); p != "" {
		cfg.Bank.Path = p
	}
	return cfg, newLogger(cmd, cfg.LogLevel), nil
}

func loadBank(ctx context.Context, path string, logger *slog.Logger) (*bank.Bank, error) {
	if path == "" {
		return nil, fmt.Errorf("no question bank: set --bank or bank.path")
	}
	b, err := bank.NewFileLoader(path, bank.LoadOptions{Logger: logger}).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	return b, nil
}

// openRuntime loads config and the bank, opens the configured store, and
// builds the engine.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	b, err := loadBank(ctx, cfg.Bank.Path, logger)
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		Bank:            b,
		CooldownEnabled: cfg.CooldownEnabled,
		Adaptive:        cfg.Adaptive,
		Bands:           cfg.Scoring.Bands,
		Logger:          logger,
	}
	if cfg.Seed != 0 {
		opts.Source = random.New(cfg.Seed)
	}

	cleanup := func() {}
	switch cfg.Store.Driver {
	case config.DriverMemory:
		mem := store.NewMemoryStore()
		opts.Sessions, opts.Scores, opts.Events = mem, mem, mem
	case config.DriverSQLite:
		dbPath, err := resolveDBPath(cmd, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		opts.Sessions, opts.Scores, opts.Events = st, st, st
		cleanup = func() { st.Close() }
	case config.DriverRedis:
		rs, err := redisstore.Open(cfg.Store.DSN, cfg.Store.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		opts.Sessions = rs
		cleanup = func() { rs.Close() }
	case config.DriverPostgres:
		ps, err := pgstore.Open(cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		opts.Sessions = ps
		cleanup = ps.Close
	}

	e, err := engine.New(opts)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, engine: e, release: cleanup}, nil
}
