package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the aggregate position in one symbol.
// Quantity is the net of its BUY and SELL transactions; AvgCost changes only on BUY.
type Holding struct {
	Symbol       string
	Quantity     int64
	AvgCost      decimal.Decimal
	LastPrice    decimal.Decimal
	OpenedAt     time.Time
	Transactions []Transaction

	// costBasis is the running total cost of the shares held, quantity * AvgCost.
	costBasis decimal.Decimal
}

// CostBasis returns quantity * average cost.
func (h Holding) CostBasis() decimal.Decimal {
	return h.costBasis
}

// MarketValue returns quantity * price.
func (h Holding) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(h.Quantity))
}

// Snapshot returns the persisted view of the holding.
func (h Holding) Snapshot() HoldingSnapshot {
	return HoldingSnapshot{
		Symbol:    h.Symbol,
		Quantity:  h.Quantity,
		AvgCost:   h.AvgCost,
		LastPrice: h.LastPrice,
		OpenedAt:  h.OpenedAt,
	}
}

func (h *Holding) clone() Holding {
	c := *h
	c.Transactions = append([]Transaction(nil), h.Transactions...)
	return c
}

// buy adds shares and recomputes the average from total cost, never from
// an average of averages.
func (h *Holding) buy(qty int64, price decimal.Decimal) {
	h.costBasis = h.costBasis.Add(price.Mul(decimal.NewFromInt(qty)))
	h.Quantity += qty
	h.AvgCost = h.costBasis.Div(decimal.NewFromInt(h.Quantity))
}

// sell removes shares at the current average cost and returns the cost of the
// shares sold. AvgCost is left untouched.
func (h *Holding) sell(qty int64) decimal.Decimal {
	sold := h.AvgCost.Mul(decimal.NewFromInt(qty))
	h.Quantity -= qty
	if h.Quantity == 0 {
		h.costBasis = decimal.Zero
	} else {
		h.costBasis = h.AvgCost.Mul(decimal.NewFromInt(h.Quantity))
	}
	return sold
}

// TransactionPnL returns the unrealized gain of the BUY transaction at index
// against price. Non-BUY or out-of-range indexes yield zero.
func (h Holding) TransactionPnL(index int, price decimal.Decimal) decimal.Decimal {
	if index < 0 || index >= len(h.Transactions) {
		return decimal.Zero
	}
	t := h.Transactions[index]
	if t.Side != SideBuy {
		return decimal.Zero
	}
	return price.Sub(t.Price).Mul(decimal.NewFromInt(t.Quantity))
}

// LotMatch pairs shares of a BUY transaction with the SELL that closed them.
type LotMatch struct {
	BuySeq   uint64
	SellSeq  uint64
	Quantity int64
	PnL      decimal.Decimal
}

// FIFOMatches matches sells against the oldest open buys. It is a report only;
// the ledger accounts with average cost.
func (h Holding) FIFOMatches() []LotMatch {
	type openLot struct {
		seq       uint64
		price     decimal.Decimal
		remaining int64
	}

	var queue []openLot
	var matches []LotMatch

	for _, t := range h.Transactions {
		if t.Side == SideBuy {
			queue = append(queue, openLot{seq: t.Seq, price: t.Price, remaining: t.Quantity})
			continue
		}

		toSell := t.Quantity
		for toSell > 0 && len(queue) > 0 {
			lot := &queue[0]
			qty := lot.remaining
			if qty > toSell {
				qty = toSell
			}
			matches = append(matches, LotMatch{
				BuySeq:   lot.seq,
				SellSeq:  t.Seq,
				Quantity: qty,
				PnL:      t.Price.Sub(lot.price).Mul(decimal.NewFromInt(qty)),
			})
			lot.remaining -= qty
			toSell -= qty
			if lot.remaining == 0 {
				queue = queue[1:]
			}
		}
	}
	return matches
}
