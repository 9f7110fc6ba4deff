package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"artha-ledger-go/internal/ledger"
	"artha-ledger-go/internal/models"
	"artha-ledger-go/internal/reconcile"
	"github.com/shopspring/decimal"
)

var (
	// ErrGameNotFound is returned when no game exists for a portfolio id.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameExists is returned when creating a game whose portfolio id is taken.
	ErrGameExists = errors.New("game already exists")
)

// GameState is the persisted header of a game.
type GameState struct {
	PortfolioID    string
	PlayerName     string
	InitialCapital decimal.Decimal
	Account        reconcile.AccountState
	TotalDays      int
	StartDate      time.Time
	Policy         string
	Symbols        []string
	CheckpointedAt *time.Time
}

func gameToModel(g GameState) models.Game {
	return models.Game{
		PortfolioID:    g.PortfolioID,
		PlayerName:     g.PlayerName,
		InitialCapital: g.InitialCapital.String(),
		Cash:           g.Account.Cash.String(),
		RealizedPnL:    g.Account.RealizedPnL.String(),
		CurrentDay:     g.Account.CurrentDay,
		TotalDays:      g.TotalDays,
		StartDate:      g.StartDate,
		Policy:         g.Policy,
		Symbols:        strings.Join(g.Symbols, ","),
		LastSeq:        g.Account.LastSeq,
		CheckpointedAt: g.CheckpointedAt,
	}
}

func gameFromModel(m models.Game) (GameState, error) {
	capital, err := decimal.NewFromString(m.InitialCapital)
	if err != nil {
		return GameState{}, fmt.Errorf("corrupt initial capital for game %s: %w", m.PortfolioID, err)
	}
	cash, err := decimal.NewFromString(m.Cash)
	if err != nil {
		return GameState{}, fmt.Errorf("corrupt cash for game %s: %w", m.PortfolioID, err)
	}
	realized, err := decimal.NewFromString(m.RealizedPnL)
	if err != nil {
		return GameState{}, fmt.Errorf("corrupt realized pnl for game %s: %w", m.PortfolioID, err)
	}

	var symbols []string
	if m.Symbols != "" {
		symbols = strings.Split(m.Symbols, ",")
	}

	return GameState{
		PortfolioID:    m.PortfolioID,
		PlayerName:     m.PlayerName,
		InitialCapital: capital,
		Account: reconcile.AccountState{
			Cash:        cash,
			RealizedPnL: realized,
			CurrentDay:  m.CurrentDay,
			LastSeq:     m.LastSeq,
		},
		TotalDays:      m.TotalDays,
		StartDate:      m.StartDate.UTC(),
		Policy:         m.Policy,
		Symbols:        symbols,
		CheckpointedAt: m.CheckpointedAt,
	}, nil
}

func positionToModel(portfolioID string, s ledger.HoldingSnapshot) models.Position {
	return models.Position{
		PortfolioID: portfolioID,
		Symbol:      s.Symbol,
		Quantity:    s.Quantity,
		AvgCost:     s.AvgCost.String(),
		LastPrice:   s.LastPrice.String(),
		OpenedAt:    s.OpenedAt,
	}
}

func positionFromModel(m models.Position) (ledger.HoldingSnapshot, error) {
	avg, err := decimal.NewFromString(m.AvgCost)
	if err != nil {
		return ledger.HoldingSnapshot{}, fmt.Errorf("corrupt avg cost for %s: %w", m.Symbol, err)
	}
	last, err := decimal.NewFromString(m.LastPrice)
	if err != nil {
		return ledger.HoldingSnapshot{}, fmt.Errorf("corrupt last price for %s: %w", m.Symbol, err)
	}
	return ledger.HoldingSnapshot{
		Symbol:    m.Symbol,
		Quantity:  m.Quantity,
		AvgCost:   avg,
		LastPrice: last,
		OpenedAt:  m.OpenedAt.UTC(),
	}, nil
}

func transactionToModel(portfolioID string, t ledger.Transaction) models.Transaction {
	return models.Transaction{
		PortfolioID: portfolioID,
		Seq:         t.Seq,
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		Quantity:    t.Quantity,
		Price:       t.Price.String(),
		Fee:         t.Fee.String(),
		ExecutedAt:  t.Time,
	}
}

func transactionFromModel(m models.Transaction) (ledger.Transaction, error) {
	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("corrupt price for transaction %d: %w", m.Seq, err)
	}
	fee, err := decimal.NewFromString(m.Fee)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("corrupt fee for transaction %d: %w", m.Seq, err)
	}
	return ledger.Transaction{
		Seq:      m.Seq,
		Symbol:   m.Symbol,
		Side:     ledger.Side(m.Side),
		Quantity: m.Quantity,
		Price:    price,
		Fee:      fee,
		Time:     m.ExecutedAt.UTC(),
	}, nil
}
