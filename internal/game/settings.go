package game

import (
	"fmt"
	"time"

	"artha-ledger-go/internal/coach"
	"artha-ledger-go/internal/commission"
	"artha-ledger-go/internal/config"
	"artha-ledger-go/internal/ledger"
	"artha-ledger-go/internal/reconcile"
	"github.com/shopspring/decimal"
)

// Settings are the rules a game is played under.
type Settings struct {
	InitialCapital decimal.Decimal
	Commission     commission.Model
	Limits         ledger.Limits
	Policy         ledger.Policy
	TotalDays      int
	Symbols        []string
	Checkpoint     reconcile.Options
	TradeMemory    int
	SnapshotMemory int
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		InitialCapital: decimal.NewFromInt(1000000),
		Commission:     commission.Default(),
		Limits:         ledger.DefaultLimits(),
		Policy:         ledger.PolicyTransactions,
		TotalDays:      30,
		Symbols:        []string{"RELIANCE", "TCS", "INFY"},
		Checkpoint:     reconcile.Options{MaxAttempts: 3, Backoff: 200 * time.Millisecond},
		TradeMemory:    coach.DefaultTradeMemory,
		SnapshotMemory: coach.DefaultSnapshotMemory,
	}
}

// SettingsFromConfig converts the loaded configuration.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	policy, err := ledger.ParsePolicy(cfg.Ledger.Policy)
	if err != nil {
		return Settings{}, err
	}
	if cfg.Ledger.InitialCapital <= 0 {
		return Settings{}, fmt.Errorf("initial capital must be positive, got %v", cfg.Ledger.InitialCapital)
	}
	if cfg.Ledger.TotalDays <= 0 {
		return Settings{}, fmt.Errorf("total days must be positive, got %d", cfg.Ledger.TotalDays)
	}

	symbols := make([]string, 0, len(cfg.Ledger.DefaultSymbols))
	for _, s := range cfg.Ledger.DefaultSymbols {
		if sym := ledger.NormalizeSymbol(s); sym != "" {
			symbols = append(symbols, sym)
		}
	}

	return Settings{
		InitialCapital: decimal.NewFromFloat(cfg.Ledger.InitialCapital),
		Commission: commission.NewModel(
			decimal.NewFromFloat(cfg.Ledger.CommissionRate),
			decimal.NewFromFloat(cfg.Ledger.CommissionCap),
		),
		Limits: ledger.Limits{
			MaxQuantity:   cfg.Ledger.MaxQuantity,
			MaxPrice:      decimal.NewFromFloat(cfg.Ledger.MaxPrice),
			MinTradeValue: decimal.NewFromFloat(cfg.Ledger.MinTradeValue),
			MaxTradeValue: decimal.NewFromFloat(cfg.Ledger.MaxTradeValue),
		},
		Policy:    policy,
		TotalDays: cfg.Ledger.TotalDays,
		Symbols:   symbols,
		Checkpoint: reconcile.Options{
			MaxAttempts: cfg.Checkpoint.MaxAttempts,
			Backoff:     time.Duration(cfg.Checkpoint.BackoffMS) * time.Millisecond,
		},
		TradeMemory:    cfg.Coach.MemorySize,
		SnapshotMemory: coach.DefaultSnapshotMemory,
	}, nil
}
