package main

import (
	"context"
	"fmt"

	"artha-ledger-go/internal/coach"
	"artha-ledger-go/internal/config"
	"artha-ledger-go/internal/database"
	"artha-ledger-go/internal/game"
	"artha-ledger-go/internal/journal"
	"artha-ledger-go/internal/logger"
	"artha-ledger-go/internal/market"
	"artha-ledger-go/internal/store"
	"go.uber.org/zap"
)

// memoryDSN selects the in-memory store; games do not outlive the process.
const memoryDSN = "memory"

type gameStore interface {
	game.Store
	LatestGameID(ctx context.Context) (string, error)
}

// app holds the collaborators shared by every command.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	settings game.Settings
	store    gameStore
	journal  *journal.Journal
	deps     game.Deps
}

func openApp() (*app, error) {
	// Load application configuration
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}

	settings, err := game.SettingsFromConfig(&cfg)
	if err != nil {
		return nil, err
	}

	rt := &app{cfg: cfg, log: log, settings: settings}

	// Initialize persistence
	if cfg.Database.DSN == memoryDSN {
		rt.store = store.NewMemoryStore()
	} else {
		db, err := database.NewDatabase(&cfg)
		if err != nil {
			return nil, err
		}
		rt.store = store.NewSQLStore(db, log)
	}

	// Initialize price source
	var prices market.PriceSource
	if cfg.Market.SnapshotFile != "" {
		src, err := market.LoadSnapshotFile(cfg.Market.SnapshotFile)
		if err != nil {
			return nil, err
		}
		log.Info("Using price snapshot", zap.String("file", cfg.Market.SnapshotFile), zap.Strings("symbols", src.Symbols()))
		prices = src
	} else {
		prices = market.NewRestClient(&cfg.Market, log)
	}

	// Initialize coach
	var renderer coach.Renderer
	if cfg.Coach.Enabled {
		renderer = coach.NewOllamaClient(&cfg.Coach, log)
	}

	rt.deps = game.Deps{
		Store:  rt.store,
		Prices: prices,
		Coach:  coach.New(renderer, log),
		Logger: log,
	}

	// Initialize journal
	if cfg.Journal.Dir != "" {
		j, err := journal.Open(cfg.Journal.Dir)
		if err != nil {
			return nil, err
		}
		rt.journal = j
		rt.deps.Journal = j
	}

	return rt, nil
}

// loadGame resumes the game named by --game, or the most recent one.
func (rt *app) loadGame(ctx context.Context) (*game.Engine, error) {
	id := gameID
	if id == "" {
		latest, err := rt.store.LatestGameID(ctx)
		if err != nil {
			return nil, fmt.Errorf("no game to resume, start one with 'artha new': %w", err)
		}
		id = latest
	}
	return game.LoadGame(ctx, id, rt.settings, rt.deps)
}

func (rt *app) Close() {
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			rt.log.Error("Failed to close journal", zap.Error(err))
		}
	}
	_ = rt.log.Sync()
}

// withApp opens the app for the duration of fn.
func withApp(fn func(ctx context.Context, rt *app) error) error {
	rt, err := openApp()
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(context.Background(), rt)
}
