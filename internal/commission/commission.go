package commission

import "github.com/shopspring/decimal"

var (
	// DefaultRate is the brokerage rate applied to trade notional (0.03%).
	DefaultRate = decimal.RequireFromString("0.0003")
	// DefaultCap is the maximum fee charged on a single trade.
	DefaultCap = decimal.NewFromInt(20)
)

// Model computes the brokerage fee for a trade.
// Fee is notional * Rate, capped at Cap. A zero Cap means no cap.
type Model struct {
	Rate decimal.Decimal
	Cap  decimal.Decimal
}

// NewModel creates a commission model with the given rate and cap.
func NewModel(rate, cap decimal.Decimal) Model {
	return Model{Rate: rate, Cap: cap}
}

// Default returns the standard 0.03% / 20 commission model.
func Default() Model {
	return Model{Rate: DefaultRate, Cap: DefaultCap}
}

// Fee returns the commission due on notional. Non-positive notionals cost nothing.
func (m Model) Fee(notional decimal.Decimal) decimal.Decimal {
	if !notional.IsPositive() || !m.Rate.IsPositive() {
		return decimal.Zero
	}
	fee := notional.Mul(m.Rate)
	if m.Cap.IsPositive() && fee.GreaterThan(m.Cap) {
		return m.Cap
	}
	return fee
}
