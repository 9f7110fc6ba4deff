package coach

import (
	"github.com/shopspring/decimal"
)

const (
	// DefaultTradeMemory is how many trades a Memory keeps.
	DefaultTradeMemory = 100
	// DefaultSnapshotMemory is how many portfolio snapshots a Memory keeps.
	DefaultSnapshotMemory = 300

	// riskWindow is how many recent trades RiskLevel looks at.
	riskWindow = 20
)

// RiskLevel classifies recent trading behaviour.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// TradeEvent is what the coach learns about one executed trade.
type TradeEvent struct {
	Action         string          `json:"action"`
	Symbol         string          `json:"symbol"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Cash           decimal.Decimal `json:"cash"`
	HoldingCount   int             `json:"holding_count"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Day            int             `json:"day"`
}

// Notional returns quantity * price.
func (e TradeEvent) Notional() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(e.Quantity))
}

// PortfolioSnapshot is one end-of-turn portfolio summary.
type PortfolioSnapshot struct {
	Day            int             `json:"day"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Cash           decimal.Decimal `json:"cash"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	PnL            decimal.Decimal `json:"pnl"`
	HoldingCount   int             `json:"holding_count"`
}

// ring keeps the newest cap items.
type ring[T any] struct {
	items []T
	start int
	cap   int
}

func newRing[T any](capacity int) ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return ring[T]{items: make([]T, 0, capacity), cap: capacity}
}

func (r *ring[T]) push(v T) {
	if len(r.items) < r.cap {
		r.items = append(r.items, v)
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % r.cap
}

func (r ring[T]) clone() ring[T] {
	c := r
	c.items = append(make([]T, 0, r.cap), r.items...)
	return c
}

// all returns the items oldest first.
func (r *ring[T]) all() []T {
	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.start:]...)
	return append(out, r.items[:r.start]...)
}

// Memory is the bounded trade and portfolio history handed to the coach.
// It is owned by the caller and not safe for concurrent use.
type Memory struct {
	trades    ring[TradeEvent]
	snapshots ring[PortfolioSnapshot]
}

// NewMemory creates a memory holding at most maxTrades trades and
// maxSnapshots snapshots.
func NewMemory(maxTrades, maxSnapshots int) *Memory {
	return &Memory{
		trades:    newRing[TradeEvent](maxTrades),
		snapshots: newRing[PortfolioSnapshot](maxSnapshots),
	}
}

// Clone returns an independent copy of m.
func (m *Memory) Clone() *Memory {
	return &Memory{
		trades:    m.trades.clone(),
		snapshots: m.snapshots.clone(),
	}
}

// RecordTrade appends a trade, evicting the oldest when full.
func (m *Memory) RecordTrade(e TradeEvent) {
	m.trades.push(e)
}

// RecordSnapshot appends a portfolio snapshot, evicting the oldest when full.
func (m *Memory) RecordSnapshot(s PortfolioSnapshot) {
	m.snapshots.push(s)
}

// Trades returns the remembered trades, oldest first.
func (m *Memory) Trades() []TradeEvent {
	return m.trades.all()
}

// Snapshots returns the remembered snapshots, oldest first.
func (m *Memory) Snapshots() []PortfolioSnapshot {
	return m.snapshots.all()
}

// AggressiveShare is the fraction of the last 20 trades whose notional was
// more than 10% of the portfolio value at the time.
func (m *Memory) AggressiveShare() float64 {
	trades := m.Trades()
	if len(trades) > riskWindow {
		trades = trades[len(trades)-riskWindow:]
	}
	if len(trades) == 0 {
		return 0
	}

	threshold := decimal.NewFromFloat(0.1)
	aggressive := 0
	for _, t := range trades {
		if !t.PortfolioValue.IsPositive() {
			continue
		}
		if t.Notional().Div(t.PortfolioValue).GreaterThan(threshold) {
			aggressive++
		}
	}
	return float64(aggressive) / float64(len(trades))
}

// RiskLevel classifies AggressiveShare: above 0.5 is high, above 0.2 moderate.
// With no trades it reports moderate.
func (m *Memory) RiskLevel() RiskLevel {
	if len(m.trades.items) == 0 {
		return RiskModerate
	}
	share := m.AggressiveShare()
	switch {
	case share > 0.5:
		return RiskHigh
	case share > 0.2:
		return RiskModerate
	default:
		return RiskLow
	}
}

// DiversificationScore rates the latest snapshot from 1 to 10, two points per
// holding. It is 5 before any snapshot is recorded.
func (m *Memory) DiversificationScore() int {
	snaps := m.Snapshots()
	if len(snaps) == 0 {
		return 5
	}
	score := snaps[len(snaps)-1].HoldingCount * 2
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}
