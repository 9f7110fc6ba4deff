package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"artha-ledger-go/internal/coach"
	"artha-ledger-go/internal/ledger"
	"artha-ledger-go/internal/market"
	"artha-ledger-go/internal/reconcile"
	"artha-ledger-go/internal/store"
	"artha-ledger-go/internal/valuation"
	"artha-ledger-go/internal/xirr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrGameOver is returned once the simulated calendar is exhausted.
var ErrGameOver = errors.New("game is over")

// Store is the persistence the engine needs.
type Store interface {
	reconcile.Store
	CreateGame(ctx context.Context, g store.GameState) error
	LoadGame(ctx context.Context, portfolioID string) (store.GameState, error)
	LoadTransactions(ctx context.Context, portfolioID string) ([]ledger.Transaction, error)
}

// Journal records every applied transaction before it is checkpointed.
type Journal interface {
	Append(portfolioID string, tx ledger.Transaction) error
	Replay(portfolioID string, afterSeq uint64) ([]ledger.Transaction, error)
}

// Deps are the collaborators of an Engine. Journal and Coach may be nil.
type Deps struct {
	Store   Store
	Prices  market.PriceSource
	Journal Journal
	Coach   *coach.Coach
	Logger  *zap.Logger
}

// Engine runs one game. It is the single writer of its portfolio: trades,
// valuations and checkpoints are serialized by mu.
type Engine struct {
	mu sync.Mutex

	state      store.GameState
	ledger     *ledger.Ledger
	validator  *ledger.Validator
	valuer     *valuation.Engine
	reconciler *reconcile.Reconciler
	memory     *coach.Memory

	store   Store
	prices  market.PriceSource
	journal Journal
	coach   *coach.Coach
	logger  *zap.Logger

	checkpointedSeq uint64
	dirty           bool
	// unjournaled is set when a change since the last checkpoint exists only
	// in memory: day advances, price marks and trades the journal missed.
	unjournaled bool

	StartTime time.Time
}

func newEngine(state store.GameState, p *ledger.Portfolio, settings Settings, deps Deps) *Engine {
	logger := deps.Logger.With(zap.String("portfolio_id", state.PortfolioID))
	c := deps.Coach
	if c == nil {
		c = coach.New(nil, logger)
	}
	policy := ledger.Policy(state.Policy)
	if policy == "" {
		policy = settings.Policy
	}

	return &Engine{
		state:      state,
		ledger:     ledger.NewLedger(p, policy, logger),
		validator:  ledger.NewValidator(settings.Limits, settings.Commission),
		valuer:     valuation.NewEngine(xirr.DefaultSolver(), logger),
		reconciler: reconcile.NewReconciler(deps.Store, settings.Checkpoint, logger),
		memory:     coach.NewMemory(settings.TradeMemory, settings.SnapshotMemory),
		store:      deps.Store,
		prices:     deps.Prices,
		journal:    deps.Journal,
		coach:      c,
		logger:     logger.Named("game"),
		StartTime:  time.Now(),
	}
}

// NewGame creates and persists a fresh game for player.
func NewGame(ctx context.Context, player string, settings Settings, deps Deps) (*Engine, error) {
	start := time.Now().UTC().Truncate(24 * time.Hour)
	state := store.GameState{
		PortfolioID:    uuid.New().String(),
		PlayerName:     player,
		InitialCapital: settings.InitialCapital,
		Account: reconcile.AccountState{
			Cash:        settings.InitialCapital,
			RealizedPnL: decimal.Zero,
		},
		TotalDays: settings.TotalDays,
		StartDate: start,
		Policy:    string(settings.Policy),
		Symbols:   settings.Symbols,
	}
	if err := deps.Store.CreateGame(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	p := ledger.NewPortfolio(state.PortfolioID, state.InitialCapital)
	e := newEngine(state, p, settings, deps)
	e.logger.Info("New game started",
		zap.String("player", player),
		zap.String("capital", settings.InitialCapital.String()),
		zap.Int("total_days", settings.TotalDays),
	)
	return e, nil
}

// LoadGame restores a persisted game. Transactions journaled after the last
// checkpoint are re-applied, leaving the engine dirty until the next one.
func LoadGame(ctx context.Context, portfolioID string, settings Settings, deps Deps) (*Engine, error) {
	state, err := deps.Store.LoadGame(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	persisted, err := deps.Store.LoadSnapshot(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}
	txs, err := deps.Store.LoadTransactions(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	snapshots := make([]ledger.HoldingSnapshot, 0, len(persisted))
	for _, sym := range persisted.Keys() {
		snapshots = append(snapshots, persisted[sym])
	}
	policy := ledger.Policy(state.Policy)
	p := ledger.RestorePortfolio(portfolioID, state.Account.Cash, state.Account.RealizedPnL, snapshots, txs, policy)

	e := newEngine(state, p, settings, deps)
	e.checkpointedSeq = state.Account.LastSeq

	if err := e.recoverJournal(); err != nil {
		return nil, err
	}

	e.logger.Info("Game loaded",
		zap.Int("day", state.Account.CurrentDay),
		zap.Int("holdings", p.HoldingCount()),
		zap.Uint64("last_seq", p.LastSeq()),
		zap.Bool("dirty", e.dirty),
	)
	return e, nil
}

// recoverJournal re-applies journaled transactions the store never received.
func (e *Engine) recoverJournal() error {
	if e.journal == nil {
		return nil
	}
	pending, err := e.journal.Replay(e.state.PortfolioID, e.checkpointedSeq)
	if err != nil {
		return fmt.Errorf("failed to replay journal: %w", err)
	}

	for _, tx := range pending {
		o := ledger.Order{
			Symbol:   tx.Symbol,
			Side:     tx.Side,
			Quantity: decimal.NewFromInt(tx.Quantity),
			Price:    tx.Price,
			Time:     tx.Time,
		}
		vo, err := e.validator.Validate(o, e.ledger.Portfolio())
		if err != nil {
			e.logger.Error("Journaled transaction no longer applies, stopping recovery",
				zap.Uint64("seq", tx.Seq), zap.Error(err))
			break
		}
		res := e.ledger.Apply(vo)
		if res.Execution.Transaction.Seq != tx.Seq {
			e.logger.Warn("Recovered transaction got a different sequence id",
				zap.Uint64("journaled", tx.Seq), zap.Uint64("applied", res.Execution.Transaction.Seq))
		}
		e.dirty = true
	}
	if len(pending) > 0 {
		e.logger.Info("Recovered transactions from journal", zap.Int("count", len(pending)))
	}
	return nil
}

// ID returns the portfolio id.
func (e *Engine) ID() string {
	return e.state.PortfolioID
}

// Day returns the current simulated day.
func (e *Engine) Day() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Account.CurrentDay
}

// now is the simulated date of the current day. Callers hold mu.
func (e *Engine) now() time.Time {
	return e.state.StartDate.AddDate(0, 0, e.state.Account.CurrentDay)
}

func (e *Engine) over() bool {
	return e.state.Account.CurrentDay >= e.state.TotalDays
}

// SubmitOrder validates and applies o. A zero price trades at the current
// market price. Rejections are reported in the result, never as errors.
// Coaching feedback is rendered after the engine is unlocked.
func (e *Engine) SubmitOrder(ctx context.Context, o ledger.Order) ledger.TradeResult {
	res, event, mem := e.submit(ctx, o)
	if res.Success {
		res.Feedback = e.coach.TradeFeedback(ctx, event, mem)
	}
	return res
}

// submit applies o under mu and returns the coach's view of the trade with a
// copy of its memory.
func (e *Engine) submit(ctx context.Context, o ledger.Order) (ledger.TradeResult, coach.TradeEvent, *coach.Memory) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.logger.With(zap.String("symbol", o.Symbol), zap.String("side", string(o.Side)))

	if e.over() {
		return ledger.Failed(ErrGameOver.Error()), coach.TradeEvent{}, nil
	}

	if o.Price.IsZero() && e.prices != nil {
		sym := ledger.NormalizeSymbol(o.Symbol)
		if sym != "" {
			price, err := e.prices.PriceAt(ctx, sym, e.state.Account.CurrentDay)
			if err != nil {
				l.Warn("No market price for order", zap.Error(err))
				return ledger.Failed(fmt.Sprintf("no market price for %s: %v", sym, err)), coach.TradeEvent{}, nil
			}
			o.Price = price
		}
	}
	o.Time = e.now()

	p := e.ledger.Portfolio()
	vo, err := e.validator.Validate(o, p)
	if err != nil {
		l.Info("Order rejected", zap.Error(err))
		return ledger.Failed(err.Error()), coach.TradeEvent{}, nil
	}

	res := e.ledger.Apply(vo)
	e.dirty = true
	tx := res.Execution.Transaction

	if e.journal == nil {
		e.unjournaled = true
	} else if err := e.journal.Append(e.state.PortfolioID, tx); err != nil {
		l.Error("Failed to journal transaction", zap.Uint64("seq", tx.Seq), zap.Error(err))
		e.unjournaled = true
	}

	event := coach.TradeEvent{
		Action:         string(tx.Side),
		Symbol:         tx.Symbol,
		Quantity:       tx.Quantity,
		Price:          tx.Price,
		Cash:           p.Cash,
		HoldingCount:   p.HoldingCount(),
		PortfolioValue: p.TotalValue(),
		Day:            e.state.Account.CurrentDay,
	}
	e.memory.RecordTrade(event)

	l.Info("Order executed",
		zap.Uint64("seq", tx.Seq),
		zap.Int64("quantity", tx.Quantity),
		zap.String("price", tx.Price.String()),
		zap.String("cash", p.Cash.String()),
	)
	return res, event, e.memory.Clone()
}

// ValueNow prices the portfolio with the price source for the current day.
func (e *Engine) ValueNow(ctx context.Context) valuation.PortfolioValuation {
	e.mu.Lock()
	defer e.mu.Unlock()

	prices := make(map[string]decimal.Decimal)
	if e.prices != nil {
		for _, sym := range e.ledger.Portfolio().Symbols() {
			price, err := e.prices.PriceAt(ctx, sym, e.state.Account.CurrentDay)
			if err != nil {
				e.logger.Debug("Price lookup failed", zap.String("symbol", sym), zap.Error(err))
				continue
			}
			prices[sym] = price
		}
	}
	return e.valueWith(valuation.StaticPrices(prices))
}

// ValueWith prices the portfolio through lookup.
func (e *Engine) ValueWith(lookup valuation.PriceLookup) valuation.PortfolioValuation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.valueWith(lookup)
}

func (e *Engine) valueWith(lookup valuation.PriceLookup) valuation.PortfolioValuation {
	p := e.ledger.Portfolio()
	v := e.valuer.Value(p, lookup, e.now())

	for sym, price := range v.Refreshed {
		if h, ok := p.Holding(sym); ok && !h.LastPrice.Equal(price) {
			p.MarkPrice(sym, price)
			e.dirty = true
			e.unjournaled = true
		}
	}

	e.memory.RecordSnapshot(coach.PortfolioSnapshot{
		Day:            e.state.Account.CurrentDay,
		TotalValue:     v.TotalValue,
		Cash:           v.Cash,
		PositionsValue: v.MarketValue,
		PnL:            v.TotalValue.Sub(e.state.InitialCapital),
		HoldingCount:   len(v.Holdings),
	})
	return v
}

// Insights returns coaching text for the current portfolio.
func (e *Engine) Insights(ctx context.Context) string {
	v := e.ValueNow(ctx)

	e.mu.Lock()
	snapshot := coach.PortfolioSnapshot{
		Day:            e.state.Account.CurrentDay,
		TotalValue:     v.TotalValue,
		Cash:           v.Cash,
		PositionsValue: v.MarketValue,
		PnL:            v.TotalValue.Sub(e.state.InitialCapital),
		HoldingCount:   len(v.Holdings),
	}
	mem := e.memory.Clone()
	e.mu.Unlock()

	return e.coach.PortfolioInsights(ctx, snapshot, mem)
}

// Checkpoint persists the portfolio. On failure the portfolio stays playable
// and Dirty keeps reporting true until a checkpoint succeeds.
func (e *Engine) Checkpoint(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.ledger.Portfolio()
	account := reconcile.AccountState{
		Cash:        p.Cash,
		RealizedPnL: p.RealizedPnL,
		CurrentDay:  e.state.Account.CurrentDay,
		LastSeq:     p.LastSeq(),
	}
	txs := p.TransactionsSince(e.checkpointedSeq)

	if _, err := e.reconciler.Checkpoint(ctx, e.state.PortfolioID, p.Snapshot(), account, txs); err != nil {
		return err
	}

	e.state.Account = account
	e.checkpointedSeq = account.LastSeq
	e.dirty = false
	e.unjournaled = false
	return nil
}

// AdvanceDay moves the simulated calendar forward one day.
func (e *Engine) AdvanceDay(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.over() {
		return e.state.Account.CurrentDay, ErrGameOver
	}
	e.state.Account.CurrentDay++
	e.dirty = true
	e.unjournaled = true
	e.logger.Info("Advanced day", zap.Int("day", e.state.Account.CurrentDay), zap.Int("total_days", e.state.TotalDays))
	return e.state.Account.CurrentDay, nil
}

// Dirty reports whether state changed since the last successful checkpoint.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Recoverable reports whether every change since the last successful
// checkpoint is in the journal, so a failed checkpoint loses nothing.
func (e *Engine) Recoverable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.journal != nil && !e.unjournaled
}

// Transactions returns the applied transactions in sequence order.
func (e *Engine) Transactions() []ledger.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Portfolio().Transactions()
}

// Holding returns a copy of the open holding for symbol.
func (e *Engine) Holding(symbol string) (ledger.Holding, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Portfolio().Holding(symbol)
}

// Status summarizes the game.
type Status struct {
	PortfolioID  string          `json:"portfolio_id"`
	Player       string          `json:"player"`
	Day          int             `json:"day"`
	TotalDays    int             `json:"total_days"`
	GameOver     bool            `json:"game_over"`
	Cash         decimal.Decimal `json:"cash"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	Holdings     int             `json:"holdings"`
	Transactions uint64          `json:"transactions"`
	Dirty        bool            `json:"dirty"`
	Symbols      []string        `json:"symbols"`
	RiskLevel    string          `json:"risk_level"`
}

// Status returns a summary of the game.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.ledger.Portfolio()
	return Status{
		PortfolioID:  e.state.PortfolioID,
		Player:       e.state.PlayerName,
		Day:          e.state.Account.CurrentDay,
		TotalDays:    e.state.TotalDays,
		GameOver:     e.over(),
		Cash:         p.Cash,
		RealizedPnL:  p.RealizedPnL,
		Holdings:     p.HoldingCount(),
		Transactions: p.LastSeq(),
		Dirty:        e.dirty,
		Symbols:      e.state.Symbols,
		RiskLevel:    string(e.memory.RiskLevel()),
	}
}
