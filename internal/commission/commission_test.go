package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFee(t *testing.T) {
	m := Default()

	t.Run("BelowCap", func(t *testing.T) {
		fee := m.Fee(decimal.NewFromInt(10000))
		assert.True(t, fee.Equal(decimal.NewFromInt(3)), "expected 3, got %s", fee)
	})

	t.Run("Capped", func(t *testing.T) {
		fee := m.Fee(decimal.NewFromInt(1000000))
		assert.True(t, fee.Equal(decimal.NewFromInt(20)), "expected capped 20, got %s", fee)
	})

	t.Run("ExactlyAtCap", func(t *testing.T) {
		// 20 / 0.0003 = 66666.67
		fee := m.Fee(decimal.RequireFromString("66666.666666"))
		assert.True(t, fee.LessThanOrEqual(decimal.NewFromInt(20)))
	})

	t.Run("ZeroAndNegative", func(t *testing.T) {
		assert.True(t, m.Fee(decimal.Zero).IsZero())
		assert.True(t, m.Fee(decimal.NewFromInt(-100)).IsZero())
	})

	t.Run("NoCap", func(t *testing.T) {
		uncapped := NewModel(DefaultRate, decimal.Zero)
		fee := uncapped.Fee(decimal.NewFromInt(1000000))
		assert.True(t, fee.Equal(decimal.NewFromInt(300)), "expected 300, got %s", fee)
	})
}

func TestFee_Monotonic(t *testing.T) {
	m := Default()
	prev := decimal.Zero
	for n := int64(0); n <= 200000; n += 2500 {
		fee := m.Fee(decimal.NewFromInt(n))
		assert.True(t, fee.GreaterThanOrEqual(prev), "fee decreased at notional %d", n)
		assert.True(t, fee.LessThanOrEqual(m.Cap))
		prev = fee
	}
}
