package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_BuyDeductsNotionalAndFee(t *testing.T) {
	// Arrange
	l, v := setupLedger(t, "100000", PolicyTransactions)

	// Act
	res := mustTrade(t, l, v, order(SideBuy, "TEST", "100", "100"))

	// Assert
	exec := res.Execution
	assert.True(t, exec.Commission.Equal(d("3")))
	assert.True(t, exec.Cash.Equal(d("89997")), "got %s", exec.Cash)
	assert.Equal(t, int64(100), exec.Holding.Quantity)
	assert.True(t, exec.Holding.AvgCost.Equal(d("100")))
	assert.Equal(t, uint64(1), exec.Transaction.Seq)
	assert.Equal(t, SideBuy, exec.Transaction.Side)
	assert.Contains(t, res.Reason, "Bought 100 shares of TEST")
}

func TestApply_BuyExactCash(t *testing.T) {
	// 100 * 100 = 10000, fee 3
	l, v := setupLedger(t, "10003", PolicyTransactions)

	res := mustTrade(t, l, v, order(SideBuy, "TEST", "100", "100"))

	assert.True(t, res.Execution.Cash.IsZero(), "cash should be exactly zero, got %s", res.Execution.Cash)
	assert.True(t, l.Portfolio().Cash.IsZero())
}

func TestApply_AveragingUsesTotalCost(t *testing.T) {
	expected := d("16000").Div(d("150"))

	t.Run("CheapFirst", func(t *testing.T) {
		l, v := setupLedger(t, "100000", PolicyTransactions)
		mustTrade(t, l, v, order(SideBuy, "TEST", "100", "100"))
		mustTrade(t, l, v, order(SideBuy, "TEST", "50", "120"))

		h, ok := l.Portfolio().Holding("TEST")
		require.True(t, ok)
		assert.Equal(t, int64(150), h.Quantity)
		assert.True(t, h.AvgCost.Equal(expected), "got %s", h.AvgCost)
		assert.Equal(t, "106.67", h.AvgCost.StringFixed(2))
	})

	t.Run("ExpensiveFirst", func(t *testing.T) {
		l, v := setupLedger(t, "100000", PolicyTransactions)
		mustTrade(t, l, v, order(SideBuy, "TEST", "50", "120"))
		mustTrade(t, l, v, order(SideBuy, "TEST", "100", "100"))

		h, _ := l.Portfolio().Holding("TEST")
		assert.True(t, h.AvgCost.Equal(expected), "got %s", h.AvgCost)
	})

	t.Run("ThreeBuysAnyOrder", func(t *testing.T) {
		orders := [][3]string{{"7", "101.13"}, {"13", "99.71"}, {"29", "103.07"}}
		permutations := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}

		var first decimal.Decimal
		for i, perm := range permutations {
			l, v := setupLedger(t, "100000", PolicyTransactions)
			for _, idx := range perm {
				mustTrade(t, l, v, order(SideBuy, "X", orders[idx][0], orders[idx][1]))
			}
			h, _ := l.Portfolio().Holding("X")
			if i == 0 {
				first = h.AvgCost
				continue
			}
			assert.True(t, h.AvgCost.Equal(first), "permutation %v: %s != %s", perm, h.AvgCost, first)
		}
	})
}

func TestApply_PartialSellKeepsAverage(t *testing.T) {
	l, v := setupLedger(t, "100000", PolicyTransactions)
	mustTrade(t, l, v, order(SideBuy, "TEST", "100", "100"))
	mustTrade(t, l, v, order(SideBuy, "TEST", "50", "120"))
	before, _ := l.Portfolio().Holding("TEST")

	res := mustTrade(t, l, v, order(SideSell, "TEST", "60", "130"))

	after, ok := l.Portfolio().Holding("TEST")
	require.True(t, ok)
	assert.Equal(t, int64(90), after.Quantity)
	assert.True(t, after.AvgCost.Equal(before.AvgCost))
	assert.False(t, res.Execution.Closed)
	assert.Len(t, after.Transactions, 3)
}

func TestApply_FullSellRemovesHolding(t *testing.T) {
	l, v := setupLedger(t, "100000", PolicyTransactions)
	mustTrade(t, l, v, order(SideBuy, "TEST", "100", "100"))

	res := mustTrade(t, l, v, order(SideSell, "TEST", "100", "100"))

	_, ok := l.Portfolio().Holding("TEST")
	assert.False(t, ok)
	assert.True(t, res.Execution.Closed)
	assert.Equal(t, int64(0), res.Execution.Holding.Quantity)
	assert.Equal(t, 0, l.Portfolio().HoldingCount())
	assert.NotContains(t, l.Portfolio().Snapshot(), "TEST")

	closed := l.Portfolio().Closed()
	require.Len(t, closed, 1)
	assert.Len(t, closed[0].Transactions, 2)

	// round trip at the same price loses exactly the two commissions
	assert.True(t, l.Portfolio().Cash.Equal(d("99994")), "got %s", l.Portfolio().Cash)
}

func TestApply_RealizedPnL(t *testing.T) {
	l, v := setupLedger(t, "100000", PolicyTransactions)
	mustTrade(t, l, v, order(SideBuy, "TEST", "100", "100"))

	res := mustTrade(t, l, v, order(SideSell, "TEST", "40", "120"))

	// (120 - 100) * 40 - 1.44
	assert.True(t, res.Execution.RealizedPnL.Equal(d("798.56")), "got %s", res.Execution.RealizedPnL)
	assert.True(t, l.Portfolio().RealizedPnL.Equal(d("798.56")))

	res = mustTrade(t, l, v, order(SideSell, "TEST", "60", "80"))

	// (80 - 100) * 60 - 1.44
	assert.True(t, res.Execution.RealizedPnL.Equal(d("-1201.44")), "got %s", res.Execution.RealizedPnL)
	assert.True(t, l.Portfolio().RealizedPnL.Equal(d("-402.88")))
}

func TestApply_QuantityAndCashInvariants(t *testing.T) {
	l, v := setupLedger(t, "1000000", PolicyTransactions)
	cm := v.Commission()
	trades := []Order{
		order(SideBuy, "A", "10", "250"),
		order(SideBuy, "B", "5", "1000"),
		order(SideBuy, "A", "20", "240"),
		order(SideSell, "A", "15", "260"),
		order(SideBuy, "B", "7", "990"),
		order(SideSell, "B", "12", "1010"),
	}

	cash := l.Portfolio().Cash
	net := map[string]int64{}
	for _, o := range trades {
		res := mustTrade(t, l, v, o)
		notional := o.Price.Mul(o.Quantity)
		fee := cm.Fee(notional)
		if o.Side == SideBuy {
			cash = cash.Sub(notional.Add(fee))
			net[o.Symbol] += o.Quantity.IntPart()
		} else {
			cash = cash.Add(notional.Sub(fee))
			net[o.Symbol] -= o.Quantity.IntPart()
		}
		assert.True(t, res.Execution.Cash.Equal(cash))
		assert.False(t, l.Portfolio().Cash.IsNegative())
		// cash + market value == total value at last prices
		assert.True(t, l.Portfolio().TotalValue().Equal(l.Portfolio().Cash.Add(l.Portfolio().MarketValue())))
	}

	a, ok := l.Portfolio().Holding("A")
	require.True(t, ok)
	assert.Equal(t, net["A"], a.Quantity)
	_, ok = l.Portfolio().Holding("B")
	assert.False(t, ok)
	assert.Len(t, l.Portfolio().Transactions(), len(trades))
	assert.Equal(t, uint64(len(trades)), l.Portfolio().LastSeq())
}

func TestApply_AveragePolicyCollapsesHistory(t *testing.T) {
	l, v := setupLedger(t, "100000", PolicyAverage)
	mustTrade(t, l, v, order(SideBuy, "TEST", "100", "100"))
	mustTrade(t, l, v, order(SideBuy, "TEST", "50", "120"))
	mustTrade(t, l, v, order(SideSell, "TEST", "30", "110"))

	h, ok := l.Portfolio().Holding("TEST")
	require.True(t, ok)
	require.Len(t, h.Transactions, 1)
	lot := h.Transactions[0]
	assert.Equal(t, int64(120), lot.Quantity)
	assert.True(t, lot.Price.Equal(h.AvgCost))
	assert.Equal(t, day0, lot.Time)

	// the portfolio log still has every real transaction
	assert.Len(t, l.Portfolio().TransactionsSince(0), 3)
	assert.Len(t, l.Portfolio().TransactionsSince(2), 1)

	mustTrade(t, l, v, order(SideSell, "TEST", "120", "110"))
	assert.Empty(t, l.Portfolio().Closed())
}

func TestHolding_FIFOMatches(t *testing.T) {
	l, v := setupLedger(t, "1000000", PolicyTransactions)
	mustTrade(t, l, v, order(SideBuy, "R", "100", "2000"))
	mustTrade(t, l, v, order(SideBuy, "R", "50", "2200"))
	mustTrade(t, l, v, order(SideSell, "R", "120", "2400"))

	h, _ := l.Portfolio().Holding("R")
	matches := h.FIFOMatches()

	require.Len(t, matches, 2)
	assert.Equal(t, uint64(1), matches[0].BuySeq)
	assert.Equal(t, uint64(3), matches[0].SellSeq)
	assert.Equal(t, int64(100), matches[0].Quantity)
	assert.True(t, matches[0].PnL.Equal(d("40000")))
	assert.Equal(t, uint64(2), matches[1].BuySeq)
	assert.Equal(t, int64(20), matches[1].Quantity)
	assert.True(t, matches[1].PnL.Equal(d("4000")))

	assert.True(t, h.TransactionPnL(1, d("2500")).Equal(d("15000")))
	assert.True(t, h.TransactionPnL(2, d("2500")).IsZero(), "sell transactions have no per-lot pnl")
	assert.True(t, h.TransactionPnL(7, d("2500")).IsZero())
}

func TestRestorePortfolio(t *testing.T) {
	l, v := setupLedger(t, "1000000", PolicyTransactions)
	mustTrade(t, l, v, order(SideBuy, "A", "10", "100"))
	mustTrade(t, l, v, order(SideSell, "A", "10", "110"))
	o := order(SideBuy, "A", "5", "120")
	o.Time = day0.Add(48 * time.Hour)
	mustTrade(t, l, v, o)
	mustTrade(t, l, v, order(SideBuy, "B", "3", "50"))
	src := l.Portfolio()

	snaps := make([]HoldingSnapshot, 0)
	for _, s := range src.Snapshot() {
		snaps = append(snaps, s)
	}
	restored := RestorePortfolio(src.ID, src.Cash, src.RealizedPnL, snaps, src.Transactions(), PolicyTransactions)

	assert.True(t, restored.Cash.Equal(src.Cash))
	assert.True(t, restored.RealizedPnL.Equal(src.RealizedPnL))
	assert.Equal(t, src.LastSeq(), restored.LastSeq())
	assert.Equal(t, src.Snapshot(), restored.Snapshot())

	a, ok := restored.Holding("A")
	require.True(t, ok)
	require.Len(t, a.Transactions, 1, "history before the holding went flat is dropped")
	assert.Equal(t, uint64(3), a.Transactions[0].Seq)
	assert.True(t, a.CostBasis().Equal(d("600")))

	// trading continues from the restored sequence
	l2 := NewLedger(restored, PolicyTransactions, l.logger)
	res := mustTrade(t, l2, v, order(SideBuy, "A", "1", "120"))
	assert.Equal(t, uint64(5), res.Execution.Transaction.Seq)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyTransactions, p)

	p, err = ParsePolicy("average")
	require.NoError(t, err)
	assert.Equal(t, PolicyAverage, p)

	_, err = ParsePolicy("lifo")
	assert.Error(t, err)
}
