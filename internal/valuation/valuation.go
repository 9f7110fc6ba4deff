package valuation

import (
	"time"

	"artha-ledger-go/internal/ledger"
	"artha-ledger-go/internal/xirr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceLookup returns the current price of symbol, or false when no price is
// available.
type PriceLookup func(symbol string) (decimal.Decimal, bool)

// StaticPrices adapts a price map to a PriceLookup.
func StaticPrices(prices map[string]decimal.Decimal) PriceLookup {
	return func(symbol string) (decimal.Decimal, bool) {
		p, ok := prices[symbol]
		return p, ok
	}
}

// HoldingValuation is one holding priced at a point in time.
type HoldingValuation struct {
	Symbol           string          `json:"symbol"`
	Quantity         int64           `json:"quantity"`
	AvgCost          decimal.Decimal `json:"avg_cost"`
	Price            decimal.Decimal `json:"price"`
	Stale            bool            `json:"stale"`
	MarketValue      decimal.Decimal `json:"market_value"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealized_pnl_pct"`
	XIRR             *float64        `json:"xirr,omitempty"`
	XIRRError        string          `json:"xirr_error,omitempty"`
}

// PortfolioValuation is the whole portfolio priced at AsOf.
type PortfolioValuation struct {
	PortfolioID   string             `json:"portfolio_id"`
	AsOf          time.Time          `json:"as_of"`
	Cash          decimal.Decimal    `json:"cash"`
	MarketValue   decimal.Decimal    `json:"market_value"`
	TotalValue    decimal.Decimal    `json:"total_value"`
	CostBasis     decimal.Decimal    `json:"cost_basis"`
	UnrealizedPnL decimal.Decimal    `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal    `json:"realized_pnl"`
	TotalPnL      decimal.Decimal    `json:"total_pnl"`
	XIRR          *float64           `json:"xirr,omitempty"`
	XIRRError     string             `json:"xirr_error,omitempty"`
	Holdings      []HoldingValuation `json:"holdings"`

	// Refreshed holds the prices the lookup supplied, for the caller to mark
	// on the portfolio. Stale holdings are absent.
	Refreshed map[string]decimal.Decimal `json:"-"`
}

// Holding returns the valuation of symbol.
func (v PortfolioValuation) Holding(symbol string) (HoldingValuation, bool) {
	for _, h := range v.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return HoldingValuation{}, false
}

// Engine prices portfolios. It never mutates them.
type Engine struct {
	solver xirr.Solver
	logger *zap.Logger
}

// NewEngine creates a valuation engine.
func NewEngine(solver xirr.Solver, logger *zap.Logger) *Engine {
	return &Engine{
		solver: solver,
		logger: logger.Named("valuation"),
	}
}

// Value prices every open holding of p through lookup. A holding without a
// positive price keeps its last known price and is flagged stale.
func (e *Engine) Value(p *ledger.Portfolio, lookup PriceLookup, now time.Time) PortfolioValuation {
	v := PortfolioValuation{
		PortfolioID:   p.ID,
		AsOf:          now,
		Cash:          p.Cash,
		MarketValue:   decimal.Zero,
		CostBasis:     decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   p.RealizedPnL,
		Holdings:      make([]HoldingValuation, 0, p.HoldingCount()),
		Refreshed:     make(map[string]decimal.Decimal),
	}

	for _, h := range p.Holdings() {
		price, ok := lookup(h.Symbol)
		stale := !ok || !price.IsPositive()
		if stale {
			price = h.LastPrice
			e.logger.Debug("Price unavailable, using last known price",
				zap.String("symbol", h.Symbol),
				zap.String("last_price", price.String()),
			)
		} else {
			v.Refreshed[h.Symbol] = price
		}

		hv := e.valueHolding(h, price, now)
		hv.Stale = stale
		v.Holdings = append(v.Holdings, hv)

		v.MarketValue = v.MarketValue.Add(hv.MarketValue)
		v.CostBasis = v.CostBasis.Add(hv.CostBasis)
		v.UnrealizedPnL = v.UnrealizedPnL.Add(hv.UnrealizedPnL)
	}

	v.TotalValue = v.Cash.Add(v.MarketValue)
	v.TotalPnL = v.RealizedPnL.Add(v.UnrealizedPnL)

	flows := cashFlows(p.Transactions(), v.MarketValue, now)
	if r, err := e.solver.Solve(flows); err != nil {
		v.XIRRError = err.Error()
	} else {
		v.XIRR = &r
	}
	return v
}

func (e *Engine) valueHolding(h ledger.Holding, price decimal.Decimal, now time.Time) HoldingValuation {
	mv := h.MarketValue(price)
	cost := h.CostBasis()
	pnl := mv.Sub(cost)

	hv := HoldingValuation{
		Symbol:           h.Symbol,
		Quantity:         h.Quantity,
		AvgCost:          h.AvgCost,
		Price:            price,
		MarketValue:      mv,
		CostBasis:        cost,
		UnrealizedPnL:    pnl,
		UnrealizedPnLPct: Percent(pnl, cost),
	}

	r, err := e.solver.Solve(cashFlows(h.Transactions, mv, now))
	if err != nil {
		hv.XIRRError = err.Error()
		return hv
	}
	hv.XIRR = &r
	return hv
}

// Percent returns part / whole * 100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}

// cashFlows converts transactions to XIRR flows and appends the terminal
// market value dated now.
func cashFlows(txs []ledger.Transaction, terminal decimal.Decimal, now time.Time) []xirr.CashFlow {
	flows := make([]xirr.CashFlow, 0, len(txs)+1)
	for _, t := range txs {
		flows = append(flows, xirr.CashFlow{Date: t.Time, Amount: t.CashFlow().InexactFloat64()})
	}
	if terminal.IsPositive() {
		flows = append(flows, xirr.CashFlow{Date: now, Amount: terminal.InexactFloat64()})
	}
	return flows
}
