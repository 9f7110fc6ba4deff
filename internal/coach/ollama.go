package coach

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"artha-ledger-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const systemPrompt = `You are a friendly trading coach for beginners in the Indian stock market.
Reply with 2-3 bullet points starting with "• ", each at most 60 characters.
Use simple language. Focus on diversification, risk and what to learn from the trade.`

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// OllamaClient asks a local Ollama model for coaching text.
type OllamaClient struct {
	client  *resty.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Renderer = (*OllamaClient)(nil)

// NewOllamaClient creates a client for cfg.BaseURL.
func NewOllamaClient(cfg *config.Coach, logger *zap.Logger) *OllamaClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout)

	return &OllamaClient{
		client:  client,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger.Named("ollama"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// TradeFeedback asks the model to comment on one trade.
func (c *OllamaClient) TradeFeedback(ctx context.Context, e TradeEvent, mem *Memory) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Trade: %s %d shares of %s at %s.\n", e.Action, e.Quantity, e.Symbol, Rupees(e.Price))
	fmt.Fprintf(&b, "Portfolio value: %s. Cash remaining: %s. Positions: %d.\n",
		Rupees(e.PortfolioValue), Rupees(e.Cash), e.HoldingCount)
	if mem != nil {
		fmt.Fprintf(&b, "Recent risk level: %s. Trades remembered: %d.\n", mem.RiskLevel(), len(mem.Trades()))
	}
	b.WriteString("Give educational feedback on this trade.")
	return c.chat(ctx, b.String())
}

// PortfolioInsights asks the model for portfolio improvement tips.
func (c *OllamaClient) PortfolioInsights(ctx context.Context, s PortfolioSnapshot, mem *Memory) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Day %d. Total value: %s. Cash: %s. Invested: %s. P&L: %s. Positions: %d.\n",
		s.Day, Rupees(s.TotalValue), Rupees(s.Cash), Rupees(s.PositionsValue), Rupees(s.PnL), s.HoldingCount)
	if mem != nil {
		fmt.Fprintf(&b, "Diversification score: %d/10. Risk level: %s.\n", mem.DiversificationScore(), mem.RiskLevel())
	}
	b.WriteString("Give 2-3 actionable insights for improving this portfolio.")
	return c.chat(ctx, b.String())
}

func (c *OllamaClient) chat(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: prompt},
			},
			Stream: false,
		}).
		SetResult(&out).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("coach request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("coach request failed with status %s", resp.Status())
	}

	text := strings.TrimSpace(thinkBlock.ReplaceAllString(out.Message.Content, ""))
	if text == "" {
		return "", fmt.Errorf("coach returned an empty answer")
	}
	c.logger.Debug("Coach answered", zap.Int("chars", len(text)))
	return text, nil
}
