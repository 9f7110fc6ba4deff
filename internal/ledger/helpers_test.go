package ledger

import (
	"testing"
	"time"

	"artha-ledger-go/internal/commission"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func order(side Side, symbol string, qty, price string) Order {
	return Order{Symbol: symbol, Side: side, Quantity: d(qty), Price: d(price), Time: day0}
}

// setupLedger creates a funded portfolio with the default validator.
func setupLedger(t *testing.T, cash string, policy Policy) (*Ledger, *Validator) {
	t.Helper()
	p := NewPortfolio("test", d(cash))
	return NewLedger(p, policy, zap.NewNop()), NewValidator(DefaultLimits(), commission.Default())
}

// mustTrade validates and applies an order, failing the test on rejection.
func mustTrade(t *testing.T, l *Ledger, v *Validator, o Order) TradeResult {
	t.Helper()
	vo, err := v.Validate(o, l.Portfolio())
	require.NoError(t, err)
	res := l.Apply(vo)
	require.True(t, res.Success)
	require.NotNil(t, res.Execution)
	return res
}
