package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"artha-ledger-go/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStore is a mock implementation of the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadSnapshot(ctx context.Context, portfolioID string) (Persisted, error) {
	args := m.Called(ctx, portfolioID)
	return args.Get(0).(Persisted), args.Error(1)
}

func (m *MockStore) Apply(ctx context.Context, portfolioID string, batch Batch) error {
	args := m.Called(ctx, portfolioID, batch)
	return args.Error(0)
}

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func snap(symbol string, qty int64, avg string) ledger.HoldingSnapshot {
	return ledger.HoldingSnapshot{
		Symbol:    symbol,
		Quantity:  qty,
		AvgCost:   decimal.RequireFromString(avg),
		LastPrice: decimal.RequireFromString(avg),
		OpenedAt:  day0,
	}
}

func symbols(s []ledger.HoldingSnapshot) []string {
	out := make([]string, 0, len(s))
	for _, h := range s {
		out = append(out, h.Symbol)
	}
	return out
}

func TestDiff_UpdateInsertDelete(t *testing.T) {
	desired := map[string]ledger.HoldingSnapshot{
		"TCS":      snap("TCS", 10, "3500"),
		"INFY":     snap("INFY", 5, "1500"),
		"RELIANCE": snap("RELIANCE", 20, "2500"),
	}
	persisted := Persisted{
		"TCS":      snap("TCS", 4, "3400"),
		"RELIANCE": snap("RELIANCE", 20, "2500"),
		"WIPRO":    snap("WIPRO", 7, "400"),
	}

	plan := Diff(desired, persisted)

	assert.Equal(t, []string{"TCS"}, symbols(plan.Updates))
	assert.Equal(t, []string{"INFY"}, symbols(plan.Inserts))
	assert.Equal(t, []string{"WIPRO"}, plan.Deletes)
	assert.NoError(t, plan.Validate())
	assert.Equal(t, 3, plan.Size())
}

func TestDiff_ExistingKeyIsNeverDeleteAndInsert(t *testing.T) {
	desired := map[string]ledger.HoldingSnapshot{"TCS": snap("TCS", 11, "3510")}
	persisted := Persisted{"TCS": snap("TCS", 10, "3500")}

	plan := Diff(desired, persisted)

	assert.Empty(t, plan.Inserts)
	assert.Empty(t, plan.Deletes)
	require.Len(t, plan.Updates, 1)
	assert.Equal(t, int64(11), plan.Updates[0].Quantity)
}

func TestDiff_Idempotent(t *testing.T) {
	desired := map[string]ledger.HoldingSnapshot{
		"TCS":  snap("TCS", 10, "3500"),
		"INFY": snap("INFY", 5, "1500"),
	}
	persisted := Persisted{}

	first := Diff(desired, persisted)
	require.Len(t, first.Inserts, 2)

	// apply the plan to the persisted view
	for _, s := range append(first.Inserts, first.Updates...) {
		persisted[s.Symbol] = s
	}
	for _, sym := range first.Deletes {
		delete(persisted, sym)
	}

	assert.True(t, Diff(desired, persisted).IsEmpty())
}

func TestDiff_EmptyDesiredDeletesEverything(t *testing.T) {
	plan := Diff(nil, Persisted{"B": snap("B", 1, "1"), "A": snap("A", 1, "1")})

	assert.Equal(t, []string{"A", "B"}, plan.Deletes)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Inserts)
}

func TestDiff_ListsAreDisjoint(t *testing.T) {
	syms := []string{"A", "B", "C", "D", "E", "F"}
	for mask := 0; mask < 1<<len(syms); mask++ {
		desired := map[string]ledger.HoldingSnapshot{}
		persisted := Persisted{}
		for i, s := range syms {
			if mask&(1<<i) != 0 {
				desired[s] = snap(s, int64(i+1), "10")
			}
			if (mask>>1)&(1<<i) != 0 || i%3 == 0 {
				persisted[s] = snap(s, int64(i+2), "10")
			}
		}

		plan := Diff(desired, persisted)

		require.NoError(t, plan.Validate(), "mask %b", mask)
		assert.Equal(t, len(desired), len(plan.Updates)+len(plan.Inserts), "mask %b", mask)
	}
}

func TestPlan_ValidateRejectsOverlap(t *testing.T) {
	plan := Plan{
		Updates: []ledger.HoldingSnapshot{snap("TCS", 1, "1")},
		Deletes: []string{"TCS"},
	}

	err := plan.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TCS")
}

func TestReconciler_Checkpoint_AppliesBatch(t *testing.T) {
	// Arrange
	store := new(MockStore)
	r := NewReconciler(store, Options{MaxAttempts: 3, Backoff: time.Millisecond}, zap.NewNop())
	ctx := context.Background()
	desired := map[string]ledger.HoldingSnapshot{"TCS": snap("TCS", 10, "3500")}
	account := AccountState{Cash: decimal.NewFromInt(965000), CurrentDay: 2, LastSeq: 1}
	txs := []ledger.Transaction{{Seq: 1, Symbol: "TCS", Side: ledger.SideBuy, Quantity: 10}}

	store.On("LoadSnapshot", ctx, "p1").Return(Persisted{"WIPRO": snap("WIPRO", 1, "400")}, nil)
	store.On("Apply", ctx, "p1", mock.MatchedBy(func(b Batch) bool {
		return len(b.Plan.Inserts) == 1 && b.Plan.Deletes[0] == "WIPRO" &&
			b.Account.CurrentDay == 2 && len(b.Transactions) == 1
	})).Return(nil).Once()

	// Act
	plan, err := r.Checkpoint(ctx, "p1", desired, account, txs)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"TCS"}, symbols(plan.Inserts))
	store.AssertExpectations(t)
}

func TestReconciler_Checkpoint_RetriesTransientFailure(t *testing.T) {
	store := new(MockStore)
	r := NewReconciler(store, Options{MaxAttempts: 3, Backoff: time.Millisecond}, zap.NewNop())
	ctx := context.Background()

	store.On("LoadSnapshot", ctx, "p1").Return(Persisted{}, nil)
	store.On("Apply", ctx, "p1", mock.Anything).Return(errors.New("database is locked")).Once()
	store.On("Apply", ctx, "p1", mock.Anything).Return(nil).Once()

	_, err := r.Checkpoint(ctx, "p1", nil, AccountState{}, nil)

	assert.NoError(t, err)
	store.AssertNumberOfCalls(t, "Apply", 2)
}

func TestReconciler_Checkpoint_SurfacesStoreError(t *testing.T) {
	store := new(MockStore)
	r := NewReconciler(store, Options{MaxAttempts: 2, Backoff: time.Millisecond}, zap.NewNop())
	ctx := context.Background()
	cause := errors.New("disk full")

	store.On("LoadSnapshot", ctx, "p1").Return(Persisted{}, nil)
	store.On("Apply", ctx, "p1", mock.Anything).Return(cause)

	_, err := r.Checkpoint(ctx, "p1", map[string]ledger.HoldingSnapshot{"A": snap("A", 1, "1")}, AccountState{}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCheckpointFailed)
	assert.ErrorIs(t, err, cause)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "apply", storeErr.Op)
	assert.Equal(t, 2, storeErr.Attempts)
	store.AssertNumberOfCalls(t, "Apply", 2)
}

func TestReconciler_Checkpoint_LoadFailure(t *testing.T) {
	store := new(MockStore)
	r := NewReconciler(store, Options{MaxAttempts: 1}, zap.NewNop())
	ctx := context.Background()

	store.On("LoadSnapshot", ctx, "p1").Return(Persisted(nil), errors.New("no such table"))

	_, err := r.Checkpoint(ctx, "p1", nil, AccountState{}, nil)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "load", storeErr.Op)
	store.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
}
