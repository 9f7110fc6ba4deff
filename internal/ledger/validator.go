package ledger

import (
	"math"
	"strings"
	"time"

	"artha-ledger-go/internal/commission"
	"github.com/shopspring/decimal"
)

// Limits are the configured admissibility bounds for an order.
// A zero MinTradeValue or MaxTradeValue disables that bound.
type Limits struct {
	MaxQuantity   int64
	MaxPrice      decimal.Decimal
	MinTradeValue decimal.Decimal
	MaxTradeValue decimal.Decimal
}

// DefaultLimits returns the bounds of the simulator: at most 10,000 shares,
// prices up to 1,00,000 and no trade value bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxQuantity: 10000,
		MaxPrice:    decimal.NewFromInt(100000),
	}
}

// Validator checks orders against Limits and the current portfolio.
type Validator struct {
	limits     Limits
	commission commission.Model
}

// NewValidator creates a validator.
func NewValidator(limits Limits, model commission.Model) *Validator {
	return &Validator{limits: limits, commission: model}
}

// Commission returns the commission model used for cost previews.
func (v *Validator) Commission() commission.Model {
	return v.commission
}

// Validate runs the checks in order and stops at the first failure.
// The portfolio is only read.
func (v *Validator) Validate(o Order, p *Portfolio) (ValidatedOrder, error) {
	symbol := NormalizeSymbol(o.Symbol)
	if symbol == "" {
		return ValidatedOrder{}, &ValidationError{Kind: KindEmptySymbol}
	}

	side := Side(strings.ToUpper(strings.TrimSpace(string(o.Side))))
	if !side.Valid() {
		return ValidatedOrder{}, &ValidationError{Kind: KindInvalidSide, Symbol: symbol, Input: string(o.Side)}
	}

	if !o.Quantity.IsPositive() {
		return ValidatedOrder{}, &ValidationError{Kind: KindInvalidQuantity, Symbol: symbol, Value: o.Quantity}
	}
	if !o.Quantity.IsInteger() {
		return ValidatedOrder{}, &ValidationError{Kind: KindFractionalQuantity, Symbol: symbol, Value: o.Quantity}
	}
	// quantities are int64 shares; without a configured bound the type's
	// range still applies so IntPart never wraps
	maxQty := decimal.NewFromInt(math.MaxInt64)
	if v.limits.MaxQuantity > 0 {
		maxQty = decimal.NewFromInt(v.limits.MaxQuantity)
	}
	if o.Quantity.GreaterThan(maxQty) {
		return ValidatedOrder{}, &ValidationError{Kind: KindQuantityTooLarge, Symbol: symbol, Value: o.Quantity, Limit: maxQty}
	}

	if !o.Price.IsPositive() {
		return ValidatedOrder{}, &ValidationError{Kind: KindInvalidPrice, Symbol: symbol, Value: o.Price}
	}
	if v.limits.MaxPrice.IsPositive() && o.Price.GreaterThan(v.limits.MaxPrice) {
		return ValidatedOrder{}, &ValidationError{Kind: KindPriceTooHigh, Symbol: symbol, Value: o.Price, Limit: v.limits.MaxPrice}
	}

	notional := o.Price.Mul(o.Quantity)
	if v.limits.MinTradeValue.IsPositive() && notional.LessThan(v.limits.MinTradeValue) {
		return ValidatedOrder{}, &ValidationError{Kind: KindTradeValueTooSmall, Symbol: symbol, Value: notional, Limit: v.limits.MinTradeValue}
	}
	if v.limits.MaxTradeValue.IsPositive() && notional.GreaterThan(v.limits.MaxTradeValue) {
		return ValidatedOrder{}, &ValidationError{Kind: KindTradeValueTooLarge, Symbol: symbol, Value: notional, Limit: v.limits.MaxTradeValue}
	}

	fee := v.commission.Fee(notional)
	qty := o.Quantity.IntPart()

	switch side {
	case SideBuy:
		cost := notional.Add(fee)
		// inclusive: spending the last rupee is allowed
		if p.Cash.LessThan(cost) {
			return ValidatedOrder{}, &ValidationError{Kind: KindInsufficientFunds, Symbol: symbol, Value: cost, Limit: p.Cash}
		}
	case SideSell:
		h, ok := p.holdings[symbol]
		if !ok || h.Quantity == 0 {
			return ValidatedOrder{}, &ValidationError{Kind: KindNoHolding, Symbol: symbol}
		}
		if h.Quantity < qty {
			return ValidatedOrder{}, &ValidationError{
				Kind:   KindInsufficientQuantity,
				Symbol: symbol,
				Value:  o.Quantity,
				Limit:  decimal.NewFromInt(h.Quantity),
			}
		}
	}

	ts := o.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return ValidatedOrder{
		symbol:   symbol,
		side:     side,
		quantity: qty,
		price:    o.Price,
		notional: notional,
		fee:      fee,
		time:     ts,
	}, nil
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
