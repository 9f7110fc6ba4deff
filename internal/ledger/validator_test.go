package ledger

import (
	"errors"
	"testing"

	"artha-ledger-go/internal/commission"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidate_Rejections(t *testing.T) {
	l, v := setupLedger(t, "100000", PolicyTransactions)
	mustTrade(t, l, v, order(SideBuy, "TCS", "10", "100"))

	tests := []struct {
		name  string
		order Order
		want  error
	}{
		{"EmptySymbol", order(SideBuy, "  ", "1", "100"), ErrEmptySymbol},
		{"InvalidSide", order(Side("HOLD"), "TCS", "1", "100"), ErrInvalidSide},
		{"ZeroQuantity", order(SideBuy, "TCS", "0", "100"), ErrInvalidQuantity},
		{"NegativeQuantity", order(SideBuy, "TCS", "-5", "100"), ErrInvalidQuantity},
		{"FractionalQuantity", order(SideBuy, "TCS", "1.5", "100"), ErrFractionalQuantity},
		{"QuantityTooLarge", order(SideBuy, "TCS", "10001", "1"), ErrQuantityTooLarge},
		{"ZeroPrice", order(SideBuy, "TCS", "1", "0"), ErrInvalidPrice},
		{"PriceTooHigh", order(SideBuy, "TCS", "1", "100001"), ErrPriceTooHigh},
		{"InsufficientFunds", order(SideBuy, "TCS", "1000", "100"), ErrInsufficientFunds},
		{"NoHolding", order(SideSell, "INFY", "1", "100"), ErrNoHolding},
		{"InsufficientQuantity", order(SideSell, "TCS", "11", "100"), ErrInsufficientQuantity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(tc.order, l.Portfolio())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "expected %v, got %v", tc.want, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.NotEmpty(t, verr.Error())
		})
	}
}

func TestValidate_ShortCircuitsInOrder(t *testing.T) {
	_, v := setupLedger(t, "0", PolicyTransactions)
	p := NewPortfolio("p", decimal.Zero)

	// empty symbol wins over every other problem
	_, err := v.Validate(Order{Symbol: "", Side: "X", Quantity: d("-1"), Price: d("-1")}, p)
	assert.ErrorIs(t, err, ErrEmptySymbol)

	// quantity is checked before price
	_, err = v.Validate(Order{Symbol: "TCS", Side: SideBuy, Quantity: d("0"), Price: d("-1")}, p)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestValidate_CarriesOffendingValue(t *testing.T) {
	_, v := setupLedger(t, "1000", PolicyTransactions)
	p := NewPortfolio("p", d("1000"))

	_, err := v.Validate(order(SideBuy, "TCS", "10", "100"), p)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindInsufficientFunds, verr.Kind)
	assert.True(t, verr.Value.Equal(d("1000.3")), "cost should include the fee, got %s", verr.Value)
	assert.True(t, verr.Limit.Equal(d("1000")))
	assert.Contains(t, verr.Error(), "need 1000.30, have 1000.00")
}

func TestValidate_UnboundedQuantityStaysInRange(t *testing.T) {
	// Arrange
	l := NewLedger(NewPortfolio("p", d("100000")), PolicyTransactions, zap.NewNop())
	v := NewValidator(Limits{MaxQuantity: 0, MaxPrice: d("100000")}, commission.Default())
	mustTrade(t, l, v, order(SideBuy, "TCS", "10", "100"))
	cash := l.Portfolio().Cash

	// Act
	// 2^64 + 5 would wrap to 5 shares as an int64
	_, err := v.Validate(order(SideSell, "TCS", "18446744073709551621", "100"), l.Portfolio())

	// Assert
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindQuantityTooLarge, verr.Kind)
	assert.True(t, verr.Limit.Equal(d("9223372036854775807")))
	assert.True(t, l.Portfolio().Cash.Equal(cash))
	h, ok := l.Portfolio().Holding("TCS")
	require.True(t, ok)
	assert.Equal(t, int64(10), h.Quantity)

	// below the ceiling the usual holding check still applies
	_, err = v.Validate(order(SideSell, "TCS", "20000", "100"), l.Portfolio())
	assert.True(t, errors.Is(err, ErrInsufficientQuantity))
}

func TestValidate_TradeValueBounds(t *testing.T) {
	limits := DefaultLimits()
	limits.MinTradeValue = d("500")
	limits.MaxTradeValue = d("50000")
	v := NewValidator(limits, commission.Default())
	p := NewPortfolio("p", d("1000000"))

	_, err := v.Validate(order(SideBuy, "TCS", "4", "100"), p)
	assert.ErrorIs(t, err, ErrTradeValueTooSmall)

	_, err = v.Validate(order(SideBuy, "TCS", "501", "100"), p)
	assert.ErrorIs(t, err, ErrTradeValueTooLarge)

	vo, err := v.Validate(order(SideBuy, "TCS", "500", "100"), p)
	require.NoError(t, err)
	assert.Equal(t, int64(500), vo.Quantity())
}

func TestValidate_NormalizesInput(t *testing.T) {
	_, v := setupLedger(t, "100000", PolicyTransactions)
	p := NewPortfolio("p", d("100000"))

	vo, err := v.Validate(Order{Symbol: " reliance ", Side: "buy", Quantity: d("3"), Price: d("2500")}, p)

	require.NoError(t, err)
	assert.Equal(t, "RELIANCE", vo.Symbol())
	assert.Equal(t, SideBuy, vo.Side())
	assert.True(t, vo.Notional().Equal(d("7500")))
	assert.True(t, vo.Fee().Equal(d("2.25")))
	assert.False(t, vo.Time().IsZero())
}
