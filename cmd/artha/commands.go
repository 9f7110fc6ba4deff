package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"artha-ledger-go/internal/api"
	"artha-ledger-go/internal/coach"
	"artha-ledger-go/internal/game"
	"artha-ledger-go/internal/ledger"
	"artha-ledger-go/internal/valuation"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCmd() *cobra.Command {
	var (
		capital float64
		days    int
	)

	cmd := &cobra.Command{
		Use:   "new <player>",
		Short: "Start a new game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				settings := a.settings
				if capital > 0 {
					settings.InitialCapital = decimal.NewFromFloat(capital)
				}
				if days > 0 {
					settings.TotalDays = days
				}

				e, err := game.NewGame(ctx, args[0], settings, a.deps)
				if err != nil {
					return err
				}
				fmt.Printf("Game %s started for %s with %s over %d days\n",
					e.ID(), args[0], coach.Rupees(settings.InitialCapital), settings.TotalDays)
				fmt.Printf("Symbols: %s\n", strings.Join(settings.Symbols, ", "))
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&capital, "capital", 0, "Initial capital (defaults to ledger.initial_capital)")
	cmd.Flags().IntVar(&days, "days", 0, "Number of simulated days (defaults to ledger.total_days)")
	return cmd
}

func tradeCmd(action string) *cobra.Command {
	var price string
	side, short := ledger.SideBuy, "Buy shares at the market or a limit price"
	if action == "sell" {
		side, short = ledger.SideSell, "Sell shares at the market or a limit price"
	}

	cmd := &cobra.Command{
		Use:   action + " <symbol> <quantity>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			order := ledger.Order{Symbol: args[0], Side: side, Quantity: qty}
			if price != "" {
				if order.Price, err = decimal.NewFromString(price); err != nil {
					return fmt.Errorf("invalid price %q", price)
				}
			}

			return withApp(func(ctx context.Context, a *app) error {
				e, err := a.loadGame(ctx)
				if err != nil {
					return err
				}

				res := e.SubmitOrder(ctx, order)
				if !res.Success {
					return fmt.Errorf("order rejected: %s", res.Reason)
				}
				printExecution(res)
				return checkpoint(ctx, e)
			})
		},
	}

	cmd.Flags().StringVarP(&price, "price", "p", "", "Limit price (defaults to the market price of the current day)")
	return cmd
}

func printExecution(res ledger.TradeResult) {
	ex := res.Execution
	tx := ex.Transaction
	verb := "Bought"
	if tx.Side == ledger.SideSell {
		verb = "Sold"
	}
	fmt.Printf("%s %d %s @ %s (fee %s)\n", verb, tx.Quantity, tx.Symbol, coach.Rupees(tx.Price), coach.Rupees(ex.Commission))
	if tx.Side == ledger.SideSell {
		fmt.Printf("Realized P&L: %s\n", coach.Rupees(ex.RealizedPnL))
	}
	if ex.Closed {
		fmt.Printf("Position in %s closed\n", tx.Symbol)
	} else {
		fmt.Printf("Holding: %d %s, avg cost %s\n", ex.Holding.Quantity, tx.Symbol, coach.Rupees(ex.Holding.AvgCost))
	}
	fmt.Printf("Cash: %s\n", coach.Rupees(ex.Cash))
	if res.Feedback != "" {
		fmt.Printf("\n%s\n", res.Feedback)
	}
}

func valueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "value",
		Short: "Value the portfolio at today's prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				e, err := a.loadGame(ctx)
				if err != nil {
					return err
				}
				printValuation(e.ValueNow(ctx))
				// marked prices are part of the persisted holdings
				return checkpoint(ctx, e)
			})
		},
	}
}

func printValuation(v valuation.PortfolioValuation) {
	fmt.Printf("Portfolio %s as of %s\n\n", v.PortfolioID, v.AsOf.Format("2006-01-02"))
	fmt.Printf("%-10s %8s %14s %14s %16s %16s %9s\n", "SYMBOL", "QTY", "AVG COST", "PRICE", "VALUE", "P&L", "XIRR")
	for _, h := range v.Holdings {
		price := coach.Rupees(h.Price)
		if h.Stale {
			price += "*"
		}
		fmt.Printf("%-10s %8d %14s %14s %16s %16s %9s\n",
			h.Symbol, h.Quantity, coach.Rupees(h.AvgCost), price,
			coach.Rupees(h.MarketValue), coach.Rupees(h.UnrealizedPnL), formatRate(h.XIRR))
	}
	fmt.Println()
	fmt.Printf("Cash:           %s\n", coach.Rupees(v.Cash))
	fmt.Printf("Market value:   %s\n", coach.Rupees(v.MarketValue))
	fmt.Printf("Total value:    %s\n", coach.Rupees(v.TotalValue))
	fmt.Printf("Unrealized P&L: %s\n", coach.Rupees(v.UnrealizedPnL))
	fmt.Printf("Realized P&L:   %s\n", coach.Rupees(v.RealizedPnL))
	fmt.Printf("Total P&L:      %s\n", coach.Rupees(v.TotalPnL))
	fmt.Printf("XIRR:           %s\n", formatRate(v.XIRR))
}

func formatRate(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *r*100)
}

func insightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show coaching insights for the portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				e, err := a.loadGame(ctx)
				if err != nil {
					return err
				}
				fmt.Println(e.Insights(ctx))
				return nil
			})
		},
	}
}

func advanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Move the game to the next trading day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				e, err := a.loadGame(ctx)
				if err != nil {
					return err
				}
				day, err := e.AdvanceDay(ctx)
				if err != nil {
					return err
				}
				st := e.Status()
				fmt.Printf("Day %d of %d\n", day, st.TotalDays)
				if st.GameOver {
					fmt.Println("Game over. Run 'artha value' for the final result.")
				}
				return checkpoint(ctx, e)
			})
		},
	}
}

func checkpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Persist the portfolio, replaying any journaled trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				e, err := a.loadGame(ctx)
				if err != nil {
					return err
				}
				if !e.Dirty() {
					fmt.Println("Nothing to checkpoint")
					return nil
				}
				if err := e.Checkpoint(ctx); err != nil {
					return err
				}
				fmt.Println("Checkpoint complete")
				return nil
			})
		},
	}
}

// checkpoint persists e after a command changed it. A failure is only
// downgraded to a warning when every unsaved change is in the journal, so the
// next run replays it. Anything else, such as a day advance, is an error.
func checkpoint(ctx context.Context, e *game.Engine) error {
	if !e.Dirty() {
		return nil
	}
	if err := e.Checkpoint(ctx); err != nil {
		if !e.Recoverable() {
			return fmt.Errorf("checkpoint failed, changes are not saved: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Warning: checkpoint failed, trades kept in the journal: %v\n", err)
	}
	return nil
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the game over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				e, err := a.loadGame(ctx)
				if err != nil {
					return err
				}
				if port == 0 {
					port = a.cfg.Server.Port
				}

				server := api.NewAPIServer(e, port, a.log)
				server.Start()

				// Wait for shutdown signal
				sigchan := make(chan os.Signal, 1)
				signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
				<-sigchan
				a.log.Info("Shutdown signal received, gracefully shutting down...")

				shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				if err := server.Stop(shutdownCtx); err != nil {
					a.log.Error("API server shutdown failed", zap.Error(err))
				}
				if err := checkpoint(shutdownCtx, e); err != nil {
					return err
				}
				a.log.Info("Server has been shut down.")
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (defaults to server.port)")
	return cmd
}
