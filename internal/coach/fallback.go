package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the ISO code every amount is rendered in.
const Currency = money.INR

// Rupees formats amount with the currency symbol and grouping, e.g. ₹3,500.00.
func Rupees(amount decimal.Decimal) string {
	cur := money.GetCurrency(Currency)
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0).IntPart()
	return money.New(minor, Currency).Display()
}

// Renderer turns trades and portfolio snapshots into short coaching text.
type Renderer interface {
	TradeFeedback(ctx context.Context, e TradeEvent, mem *Memory) (string, error)
	PortfolioInsights(ctx context.Context, s PortfolioSnapshot, mem *Memory) (string, error)
}

// FallbackRenderer produces fixed coaching text without any model.
type FallbackRenderer struct{}

var _ Renderer = FallbackRenderer{}

// TradeFeedback returns fixed tips for the trade side and portfolio size.
func (FallbackRenderer) TradeFeedback(_ context.Context, e TradeEvent, mem *Memory) (string, error) {
	lines := make([]string, 0, 3)
	if strings.EqualFold(e.Action, "BUY") {
		lines = append(lines,
			fmt.Sprintf("Bought %d shares of %s at %s", e.Quantity, e.Symbol, Rupees(e.Price)),
			"Monitor performance daily",
		)
	} else {
		lines = append(lines,
			fmt.Sprintf("Sold %d shares of %s at %s", e.Quantity, e.Symbol, Rupees(e.Price)),
			"Reinvest or hold cash",
		)
	}

	switch {
	case mem != nil && mem.RiskLevel() == RiskHigh:
		lines = append(lines, "Large trades lately, size positions smaller")
	case e.HoldingCount < 3:
		lines = append(lines, "Consider diversification")
	default:
		lines = append(lines, fmt.Sprintf("Cash left: %s", Rupees(e.Cash)))
	}
	return bullets(lines), nil
}

// PortfolioInsights returns fixed tips based on the number of holdings.
func (FallbackRenderer) PortfolioInsights(_ context.Context, s PortfolioSnapshot, _ *Memory) (string, error) {
	switch {
	case s.HoldingCount == 0:
		return bullets([]string{
			"Portfolio empty - time to invest!",
			"Start with 3-5 different stocks",
			"Diversify across sectors",
		}), nil
	case s.HoldingCount < 3:
		return bullets([]string{
			"Good start! Consider adding more stocks",
			"Diversification reduces risk",
			"Aim for 5-7 positions",
		}), nil
	default:
		return bullets([]string{
			fmt.Sprintf("%d positions - good diversification", s.HoldingCount),
			"Monitor each stock regularly",
			"Rebalance if needed",
		}), nil
	}
}

func bullets(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(l)
	}
	return b.String()
}
