package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Policy controls how much per-trade history a holding keeps.
type Policy string

const (
	// PolicyTransactions retains every transaction of an open holding and
	// archives the holding when it is fully liquidated.
	PolicyTransactions Policy = "transactions"
	// PolicyAverage collapses a holding to one synthetic lot at its running
	// average cost after every trade.
	PolicyAverage Policy = "average"
)

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyTransactions, "":
		return PolicyTransactions, nil
	case PolicyAverage:
		return PolicyAverage, nil
	default:
		return "", fmt.Errorf("unknown ledger policy %q", s)
	}
}

// Ledger applies validated orders to the portfolio it owns.
type Ledger struct {
	portfolio *Portfolio
	policy    Policy
	logger    *zap.Logger
}

// NewLedger creates a ledger over p.
func NewLedger(p *Portfolio, policy Policy, logger *zap.Logger) *Ledger {
	if policy == "" {
		policy = PolicyTransactions
	}
	return &Ledger{
		portfolio: p,
		policy:    policy,
		logger:    logger.Named("ledger"),
	}
}

// Portfolio returns the owned portfolio.
func (l *Ledger) Portfolio() *Portfolio {
	return l.portfolio
}

// Policy returns the history policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// Apply executes a validated order. It cannot fail: every rejectable
// condition was checked by the Validator.
func (l *Ledger) Apply(o ValidatedOrder) TradeResult {
	p := l.portfolio
	p.lastSeq++
	tx := Transaction{
		Seq:      p.lastSeq,
		Symbol:   o.symbol,
		Side:     o.side,
		Quantity: o.quantity,
		Price:    o.price,
		Fee:      o.fee,
		Time:     o.time,
	}
	p.log = append(p.log, tx)

	var result TradeResult
	if o.side == SideBuy {
		result = l.applyBuy(o, tx)
	} else {
		result = l.applySell(o, tx)
	}

	l.logger.Debug("Applied transaction",
		zap.Uint64("seq", tx.Seq),
		zap.String("symbol", tx.Symbol),
		zap.String("side", string(tx.Side)),
		zap.Int64("quantity", tx.Quantity),
		zap.String("price", tx.Price.String()),
		zap.String("cash", p.Cash.String()),
	)
	return result
}

func (l *Ledger) applyBuy(o ValidatedOrder, tx Transaction) TradeResult {
	p := l.portfolio
	p.Cash = p.Cash.Sub(o.notional.Add(o.fee))

	h, ok := p.holdings[o.symbol]
	if !ok {
		h = &Holding{
			Symbol:    o.symbol,
			AvgCost:   decimal.Zero,
			OpenedAt:  o.time,
			costBasis: decimal.Zero,
		}
		p.holdings[o.symbol] = h
	}
	h.buy(o.quantity, o.price)
	h.LastPrice = o.price
	l.record(h, tx)

	return TradeResult{
		Success: true,
		Reason:  fmt.Sprintf("Bought %d shares of %s at %s", o.quantity, o.symbol, o.price.StringFixed(2)),
		Execution: &Execution{
			Transaction: tx,
			Commission:  o.fee,
			Cash:        p.Cash,
			Holding:     h.Snapshot(),
			RealizedPnL: decimal.Zero,
		},
	}
}

func (l *Ledger) applySell(o ValidatedOrder, tx Transaction) TradeResult {
	p := l.portfolio
	h := p.holdings[o.symbol]

	p.Cash = p.Cash.Add(o.notional.Sub(o.fee))
	soldCost := h.sell(o.quantity)
	realized := o.notional.Sub(soldCost).Sub(o.fee)
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	h.LastPrice = o.price
	l.record(h, tx)

	snapshot := h.Snapshot()
	closed := h.Quantity == 0
	if closed {
		delete(p.holdings, o.symbol)
		if l.policy == PolicyTransactions {
			p.closed = append(p.closed, h.clone())
		}
	}

	return TradeResult{
		Success: true,
		Reason:  fmt.Sprintf("Sold %d shares of %s at %s", o.quantity, o.symbol, o.price.StringFixed(2)),
		Execution: &Execution{
			Transaction: tx,
			Commission:  o.fee,
			Cash:        p.Cash,
			Holding:     snapshot,
			Closed:      closed,
			RealizedPnL: realized,
		},
	}
}

func (l *Ledger) record(h *Holding, tx Transaction) {
	if l.policy == PolicyAverage {
		if h.Quantity == 0 {
			h.Transactions = nil
			return
		}
		h.Transactions = []Transaction{h.syntheticLot(tx.Seq)}
		return
	}
	h.Transactions = append(h.Transactions, tx)
}
