package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calendar = `
prices:
  RELIANCE: ["2500", "2512.5", "2498"]
  tcs: ["3500"]
`

func TestSnapshotSource_PriceAt(t *testing.T) {
	src, err := ParseSnapshot([]byte(calendar))
	require.NoError(t, err)
	ctx := context.Background()

	p, err := src.PriceAt(ctx, "RELIANCE", 1)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("2512.5")))

	// past the end of the series the last close is carried forward
	p, err = src.PriceAt(ctx, "reliance", 29)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(2498)))

	p, err = src.PriceAt(ctx, "TCS", 0)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(3500)))

	_, err = src.PriceAt(ctx, "INFY", 0)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	_, err = src.PriceAt(ctx, "TCS", -1)
	assert.ErrorIs(t, err, ErrPriceUnavailable)

	assert.Equal(t, []string{"RELIANCE", "TCS"}, src.Symbols())
}

func TestParseSnapshot_RejectsBadPrices(t *testing.T) {
	_, err := ParseSnapshot([]byte("prices:\n  TCS: [\"abc\"]\n"))
	assert.Error(t, err)

	_, err = ParseSnapshot([]byte("prices:\n  TCS: [\"0\"]\n"))
	assert.Error(t, err)

	_, err = ParseSnapshot([]byte("prices: [1, 2"))
	assert.Error(t, err)
}

func TestLoadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yml")
	require.NoError(t, os.WriteFile(path, []byte(calendar), 0o644))

	src, err := LoadSnapshotFile(path)

	require.NoError(t, err)
	assert.Len(t, src.Symbols(), 2)

	_, err = LoadSnapshotFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
