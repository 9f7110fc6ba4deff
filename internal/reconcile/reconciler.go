package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"artha-ledger-go/internal/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrCheckpointFailed marks a checkpoint that did not durably succeed.
var ErrCheckpointFailed = errors.New("checkpoint failed")

// AccountState is the non-holding state persisted with every checkpoint.
type AccountState struct {
	Cash        decimal.Decimal
	RealizedPnL decimal.Decimal
	CurrentDay  int
	LastSeq     uint64
}

// Batch is everything one checkpoint writes. Stores apply it atomically.
type Batch struct {
	Plan         Plan
	Account      AccountState
	Transactions []ledger.Transaction
}

// Store is the persistence collaborator.
type Store interface {
	LoadSnapshot(ctx context.Context, portfolioID string) (Persisted, error)
	Apply(ctx context.Context, portfolioID string, batch Batch) error
}

// StoreError reports a persistence failure during a checkpoint. The in-memory
// portfolio is unaffected.
type StoreError struct {
	Op          string
	PortfolioID string
	Attempts    int
	Err         error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("checkpoint %s for portfolio %s failed after %d attempt(s): %v", e.Op, e.PortfolioID, e.Attempts, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches ErrCheckpointFailed.
func (e *StoreError) Is(target error) bool {
	return target == ErrCheckpointFailed
}

// Options bounds the retry loop around store calls.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Reconciler writes the in-memory ledger to a Store.
type Reconciler struct {
	store  Store
	opts   Options
	logger *zap.Logger
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store Store, opts Options, logger *zap.Logger) *Reconciler {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Reconciler{
		store:  store,
		opts:   opts,
		logger: logger.Named("reconciler"),
	}
}

// Checkpoint diffs desired against the stored holdings and applies the plan,
// the account state and txs as one batch. It returns the applied plan.
func (r *Reconciler) Checkpoint(ctx context.Context, portfolioID string, desired map[string]ledger.HoldingSnapshot, account AccountState, txs []ledger.Transaction) (Plan, error) {
	l := r.logger.With(zap.String("portfolio_id", portfolioID))

	var persisted Persisted
	err := r.retry(ctx, l, "load", portfolioID, func() error {
		var err error
		persisted, err = r.store.LoadSnapshot(ctx, portfolioID)
		return err
	})
	if err != nil {
		l.Error("Failed to load persisted holdings", zap.Error(err))
		return Plan{}, err
	}

	plan := Diff(desired, persisted)
	if err := plan.Validate(); err != nil {
		return Plan{}, fmt.Errorf("invalid reconciliation plan: %w", err)
	}

	batch := Batch{Plan: plan, Account: account, Transactions: txs}
	err = r.retry(ctx, l, "apply", portfolioID, func() error {
		return r.store.Apply(ctx, portfolioID, batch)
	})
	if err != nil {
		l.Error("Checkpoint failed", zap.Error(err))
		return Plan{}, err
	}

	l.Info("Checkpoint complete",
		zap.Int("updates", len(plan.Updates)),
		zap.Int("inserts", len(plan.Inserts)),
		zap.Int("deletes", len(plan.Deletes)),
		zap.Int("transactions", len(txs)),
	)
	return plan, nil
}

// retry runs fn up to MaxAttempts times with exponential backoff.
func (r *Reconciler) retry(ctx context.Context, l *zap.Logger, op, portfolioID string, fn func() error) error {
	var err error
	attempts := 0
	for i := 0; i < r.opts.MaxAttempts; i++ {
		attempts++
		if err = fn(); err == nil {
			return nil
		}
		if i == r.opts.MaxAttempts-1 {
			break
		}

		wait := time.Duration(math.Pow(2, float64(i))) * r.opts.Backoff
		l.Warn("Store call failed, retrying...",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", wait),
			zap.Error(err),
		)

		select {
		case <-time.After(wait):
			continue
		case <-ctx.Done():
			err = ctx.Err()
			return &StoreError{Op: op, PortfolioID: portfolioID, Attempts: attempts, Err: err}
		}
	}
	return &StoreError{Op: op, PortfolioID: portfolioID, Attempts: attempts, Err: err}
}
