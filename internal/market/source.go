package market

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when a source has no price for a symbol.
// Callers keep the last known price instead of using zero.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceSource supplies the price of a symbol on a simulated trading day.
type PriceSource interface {
	PriceAt(ctx context.Context, symbol string, day int) (decimal.Decimal, error)
}
