package main

import (
	"context"
	"errors"
	"testing"

	"artha-ledger-go/internal/game"
	"artha-ledger-go/internal/journal"
	"artha-ledger-go/internal/ledger"
	"artha-ledger-go/internal/market"
	"artha-ledger-go/internal/reconcile"
	"artha-ledger-go/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// brokenStore persists games but rejects every checkpoint.
type brokenStore struct {
	*store.MemoryStore
}

func (brokenStore) Apply(context.Context, string, reconcile.Batch) error {
	return errors.New("database is locked")
}

func setupEngine(t *testing.T) *game.Engine {
	t.Helper()
	j, err := journal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	settings := game.DefaultSettings()
	settings.Checkpoint = reconcile.Options{MaxAttempts: 1}
	e, err := game.NewGame(context.Background(), "asha", settings, game.Deps{
		Store: brokenStore{store.NewMemoryStore()},
		Prices: market.NewSnapshotSource(map[string][]decimal.Decimal{
			"TCS": {decimal.NewFromInt(3500), decimal.NewFromInt(3600)},
		}),
		Journal: j,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	return e
}

func TestCheckpoint_StoreFailure(t *testing.T) {
	ctx := context.Background()
	buy := ledger.Order{Symbol: "TCS", Side: ledger.SideBuy, Quantity: decimal.NewFromInt(10)}

	t.Run("JournaledTradeIsAWarning", func(t *testing.T) {
		e := setupEngine(t)
		require.True(t, e.SubmitOrder(ctx, buy).Success)

		err := checkpoint(ctx, e)

		assert.NoError(t, err)
		assert.True(t, e.Dirty())
	})

	t.Run("AdvanceIsAnError", func(t *testing.T) {
		// Arrange
		e := setupEngine(t)
		_, err := e.AdvanceDay(ctx)
		require.NoError(t, err)

		// Act
		err = checkpoint(ctx, e)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, reconcile.ErrCheckpointFailed)
		assert.True(t, e.Dirty())
	})
}

func TestCheckpoint_CleanEngineSkipsStore(t *testing.T) {
	e := setupEngine(t)

	assert.NoError(t, checkpoint(context.Background(), e))
}
