package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Portfolio owns the cash balance and the open holdings keyed by symbol.
// It is not safe for concurrent use; callers serialize trades and checkpoints.
type Portfolio struct {
	ID          string
	Cash        decimal.Decimal
	RealizedPnL decimal.Decimal

	holdings map[string]*Holding
	closed   []Holding
	log      []Transaction
	lastSeq  uint64
}

// NewPortfolio creates an empty portfolio funded with cash.
func NewPortfolio(id string, cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		ID:          id,
		Cash:        cash,
		RealizedPnL: decimal.Zero,
		holdings:    make(map[string]*Holding),
	}
}

// RestorePortfolio rebuilds a portfolio from persisted state. Each open
// holding gets the transactions since its symbol last went flat, so the
// transaction history survives a reload.
func RestorePortfolio(id string, cash, realized decimal.Decimal, snapshots []HoldingSnapshot, txs []Transaction, policy Policy) *Portfolio {
	p := NewPortfolio(id, cash)
	p.RealizedPnL = realized

	sorted := append([]Transaction(nil), txs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	runs := make(map[string][]Transaction)
	running := make(map[string]int64)
	for _, t := range sorted {
		runs[t.Symbol] = append(runs[t.Symbol], t)
		if t.Side == SideBuy {
			running[t.Symbol] += t.Quantity
		} else {
			running[t.Symbol] -= t.Quantity
		}
		if running[t.Symbol] <= 0 {
			running[t.Symbol] = 0
			runs[t.Symbol] = nil
		}
		if t.Seq > p.lastSeq {
			p.lastSeq = t.Seq
		}
	}
	p.log = sorted

	for _, s := range snapshots {
		if s.Quantity <= 0 {
			continue
		}
		h := &Holding{
			Symbol:       s.Symbol,
			Quantity:     s.Quantity,
			AvgCost:      s.AvgCost,
			LastPrice:    s.LastPrice,
			OpenedAt:     s.OpenedAt,
			Transactions: runs[s.Symbol],
			costBasis:    s.AvgCost.Mul(decimal.NewFromInt(s.Quantity)),
		}
		if policy == PolicyAverage || running[s.Symbol] != s.Quantity {
			// history does not explain the persisted quantity; fall back to one
			// synthetic lot at the average cost
			h.Transactions = []Transaction{h.syntheticLot(p.lastSeq)}
		}
		p.holdings[s.Symbol] = h
	}
	return p
}

// Holding returns a copy of the open holding for symbol.
func (p *Portfolio) Holding(symbol string) (Holding, bool) {
	h, ok := p.holdings[NormalizeSymbol(symbol)]
	if !ok {
		return Holding{}, false
	}
	return h.clone(), true
}

// Holdings returns copies of the open holdings sorted by symbol.
func (p *Portfolio) Holdings() []Holding {
	out := make([]Holding, 0, len(p.holdings))
	for _, sym := range p.Symbols() {
		out = append(out, p.holdings[sym].clone())
	}
	return out
}

// Symbols returns the open symbols in sorted order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.holdings))
	for sym := range p.holdings {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// HoldingCount returns the number of open holdings.
func (p *Portfolio) HoldingCount() int {
	return len(p.holdings)
}

// Snapshot returns the persisted view of every open holding, keyed by symbol.
func (p *Portfolio) Snapshot() map[string]HoldingSnapshot {
	out := make(map[string]HoldingSnapshot, len(p.holdings))
	for sym, h := range p.holdings {
		out[sym] = h.Snapshot()
	}
	return out
}

// Closed returns fully liquidated holdings archived under PolicyTransactions.
func (p *Portfolio) Closed() []Holding {
	out := make([]Holding, len(p.closed))
	copy(out, p.closed)
	return out
}

// Transactions returns every applied transaction in sequence order.
func (p *Portfolio) Transactions() []Transaction {
	return append([]Transaction(nil), p.log...)
}

// TransactionsSince returns transactions with Seq greater than seq.
func (p *Portfolio) TransactionsSince(seq uint64) []Transaction {
	i := sort.Search(len(p.log), func(i int) bool { return p.log[i].Seq > seq })
	return append([]Transaction(nil), p.log[i:]...)
}

// LastSeq returns the sequence id of the latest transaction.
func (p *Portfolio) LastSeq() uint64 {
	return p.lastSeq
}

// MarkPrice records the latest known price for an open holding.
// Non-positive prices are ignored.
func (p *Portfolio) MarkPrice(symbol string, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	if h, ok := p.holdings[NormalizeSymbol(symbol)]; ok {
		h.LastPrice = price
	}
}

// MarketValue returns the sum of holding values at their last known prices.
func (p *Portfolio) MarketValue() decimal.Decimal {
	total := decimal.Zero
	for _, h := range p.holdings {
		total = total.Add(h.MarketValue(h.LastPrice))
	}
	return total
}

// TotalValue returns cash plus MarketValue.
func (p *Portfolio) TotalValue() decimal.Decimal {
	return p.Cash.Add(p.MarketValue())
}

func (h *Holding) syntheticLot(seq uint64) Transaction {
	return Transaction{
		Seq:      seq,
		Symbol:   h.Symbol,
		Side:     SideBuy,
		Quantity: h.Quantity,
		Price:    h.AvgCost,
		Fee:      decimal.Zero,
		Time:     h.OpenedAt,
	}
}
