package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or transaction.
type Side string

const (
	// SideBuy spends cash to acquire shares.
	SideBuy Side = "BUY"
	// SideSell returns shares for cash.
	SideSell Side = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order is an unvalidated trade instruction as received from a caller.
// Quantity is a decimal so fractional input can be rejected instead of truncated.
type Order struct {
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Time     time.Time       `json:"time"`
}

// ValidatedOrder is produced only by Validator.Validate. The Ledger applies it
// without re-checking.
type ValidatedOrder struct {
	symbol   string
	side     Side
	quantity int64
	price    decimal.Decimal
	notional decimal.Decimal
	fee      decimal.Decimal
	time     time.Time
}

// Symbol returns the normalized ticker.
func (o ValidatedOrder) Symbol() string { return o.symbol }

// Side returns BUY or SELL.
func (o ValidatedOrder) Side() Side { return o.side }

// Quantity returns the whole number of shares.
func (o ValidatedOrder) Quantity() int64 { return o.quantity }

// Price returns the unit price.
func (o ValidatedOrder) Price() decimal.Decimal { return o.price }

// Notional returns quantity * price.
func (o ValidatedOrder) Notional() decimal.Decimal { return o.notional }

// Fee returns the commission charged on the notional.
func (o ValidatedOrder) Fee() decimal.Decimal { return o.fee }

// Time returns the execution time.
func (o ValidatedOrder) Time() time.Time { return o.time }

// Transaction is an immutable record of an applied trade.
type Transaction struct {
	Seq      uint64          `json:"seq"`
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	Time     time.Time       `json:"time"`
}

// Notional returns quantity * price.
func (t Transaction) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// CashFlow returns the signed investor cash flow of the transaction:
// negative notional for a BUY, positive for a SELL. Fees are excluded.
func (t Transaction) CashFlow() decimal.Decimal {
	if t.Side == SideBuy {
		return t.Notional().Neg()
	}
	return t.Notional()
}

// HoldingSnapshot is the persisted view of an open holding.
type HoldingSnapshot struct {
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	LastPrice decimal.Decimal `json:"last_price"`
	OpenedAt  time.Time       `json:"opened_at"`
}

// Equal reports whether two snapshots describe the same persisted state.
func (s HoldingSnapshot) Equal(o HoldingSnapshot) bool {
	return s.Symbol == o.Symbol &&
		s.Quantity == o.Quantity &&
		s.AvgCost.Equal(o.AvgCost) &&
		s.LastPrice.Equal(o.LastPrice) &&
		s.OpenedAt.Equal(o.OpenedAt)
}

// Execution holds the fields of a successful trade.
type Execution struct {
	Transaction Transaction     `json:"transaction"`
	Commission  decimal.Decimal `json:"commission"`
	Cash        decimal.Decimal `json:"cash"`
	Holding     HoldingSnapshot `json:"holding"`
	Closed      bool            `json:"closed"`
	// RealizedPnL is set for sells: (price - avg cost) * quantity - commission.
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// TradeResult is the outcome of an execution attempt. Execution is nil on failure.
type TradeResult struct {
	Success   bool       `json:"success"`
	Reason    string     `json:"reason"`
	Execution *Execution `json:"execution,omitempty"`
	// Feedback is optional coaching text attached by the game engine.
	Feedback string `json:"feedback,omitempty"`
}

// Failed builds a failure result carrying only the reason.
func Failed(reason string) TradeResult {
	return TradeResult{Success: false, Reason: reason}
}
