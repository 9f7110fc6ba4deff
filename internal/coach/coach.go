package coach

import (
	"context"

	"go.uber.org/zap"
)

// Coach renders feedback through a primary renderer and falls back to fixed
// text when it fails. Coaching never blocks or fails a trade.
type Coach struct {
	primary  Renderer
	fallback Renderer
	logger   *zap.Logger
}

// New creates a coach. A nil primary means fallback text only.
func New(primary Renderer, logger *zap.Logger) *Coach {
	return &Coach{
		primary:  primary,
		fallback: FallbackRenderer{},
		logger:   logger.Named("coach"),
	}
}

// TradeFeedback returns coaching text for e.
func (c *Coach) TradeFeedback(ctx context.Context, e TradeEvent, mem *Memory) string {
	if c.primary != nil {
		text, err := c.primary.TradeFeedback(ctx, e, mem)
		if err == nil {
			return text
		}
		c.logger.Warn("Coach unavailable, using fallback feedback", zap.String("symbol", e.Symbol), zap.Error(err))
	}
	text, _ := c.fallback.TradeFeedback(ctx, e, mem)
	return text
}

// PortfolioInsights returns coaching text for s.
func (c *Coach) PortfolioInsights(ctx context.Context, s PortfolioSnapshot, mem *Memory) string {
	if c.primary != nil {
		text, err := c.primary.PortfolioInsights(ctx, s, mem)
		if err == nil {
			return text
		}
		c.logger.Warn("Coach unavailable, using fallback insights", zap.Error(err))
	}
	text, _ := c.fallback.PortfolioInsights(ctx, s, mem)
	return text
}
