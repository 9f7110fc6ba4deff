package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationKind identifies which admissibility check rejected an order.
type ValidationKind int

const (
	KindEmptySymbol ValidationKind = iota + 1
	KindInvalidSide
	KindInvalidQuantity
	KindFractionalQuantity
	KindQuantityTooLarge
	KindInvalidPrice
	KindPriceTooHigh
	KindTradeValueTooSmall
	KindTradeValueTooLarge
	KindInsufficientFunds
	KindNoHolding
	KindInsufficientQuantity
)

var kindNames = map[ValidationKind]string{
	KindEmptySymbol:          "empty symbol",
	KindInvalidSide:          "invalid side",
	KindInvalidQuantity:      "invalid quantity",
	KindFractionalQuantity:   "fractional quantity",
	KindQuantityTooLarge:     "quantity too large",
	KindInvalidPrice:         "invalid price",
	KindPriceTooHigh:         "price too high",
	KindTradeValueTooSmall:   "trade value too small",
	KindTradeValueTooLarge:   "trade value too large",
	KindInsufficientFunds:    "insufficient funds",
	KindNoHolding:            "no holding",
	KindInsufficientQuantity: "insufficient quantity",
}

func (k ValidationKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("validation kind %d", int(k))
}

// ValidationError is returned by Validator.Validate. Value carries the
// offending input and Limit the bound it violated, when there is one.
type ValidationError struct {
	Kind   ValidationKind
	Symbol string
	Input  string
	Value  decimal.Decimal
	Limit  decimal.Decimal
}

// Sentinels for errors.Is. Only Kind is compared.
var (
	ErrEmptySymbol          = &ValidationError{Kind: KindEmptySymbol}
	ErrInvalidSide          = &ValidationError{Kind: KindInvalidSide}
	ErrInvalidQuantity      = &ValidationError{Kind: KindInvalidQuantity}
	ErrFractionalQuantity   = &ValidationError{Kind: KindFractionalQuantity}
	ErrQuantityTooLarge     = &ValidationError{Kind: KindQuantityTooLarge}
	ErrInvalidPrice         = &ValidationError{Kind: KindInvalidPrice}
	ErrPriceTooHigh         = &ValidationError{Kind: KindPriceTooHigh}
	ErrTradeValueTooSmall   = &ValidationError{Kind: KindTradeValueTooSmall}
	ErrTradeValueTooLarge   = &ValidationError{Kind: KindTradeValueTooLarge}
	ErrInsufficientFunds    = &ValidationError{Kind: KindInsufficientFunds}
	ErrNoHolding            = &ValidationError{Kind: KindNoHolding}
	ErrInsufficientQuantity = &ValidationError{Kind: KindInsufficientQuantity}
)

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindEmptySymbol:
		return "symbol cannot be empty"
	case KindInvalidSide:
		return fmt.Sprintf("side must be BUY or SELL, got %q", e.Input)
	case KindInvalidQuantity:
		return fmt.Sprintf("quantity must be positive, got %s", e.Value)
	case KindFractionalQuantity:
		return fmt.Sprintf("quantity must be a whole number of shares, got %s", e.Value)
	case KindQuantityTooLarge:
		return fmt.Sprintf("quantity too large: %s (max %s)", e.Value, e.Limit)
	case KindInvalidPrice:
		return fmt.Sprintf("price must be positive, got %s", e.Value)
	case KindPriceTooHigh:
		return fmt.Sprintf("price unrealistic: %s (max %s)", e.Value.StringFixed(2), e.Limit.StringFixed(2))
	case KindTradeValueTooSmall:
		return fmt.Sprintf("trade value %s below minimum %s", e.Value.StringFixed(2), e.Limit.StringFixed(2))
	case KindTradeValueTooLarge:
		return fmt.Sprintf("trade value %s above maximum %s", e.Value.StringFixed(2), e.Limit.StringFixed(2))
	case KindInsufficientFunds:
		return fmt.Sprintf("insufficient funds: need %s, have %s", e.Value.StringFixed(2), e.Limit.StringFixed(2))
	case KindNoHolding:
		return fmt.Sprintf("no position in %s", e.Symbol)
	case KindInsufficientQuantity:
		return fmt.Sprintf("insufficient quantity in %s: have %s, trying to sell %s", e.Symbol, e.Limit, e.Value)
	default:
		return e.Kind.String()
	}
}

// Is matches any *ValidationError with the same Kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}
