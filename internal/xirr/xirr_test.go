package xirr

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(days int) time.Time {
	return day0.Add(time.Duration(days) * 24 * time.Hour)
}

func TestSolve_SingleBuyTenPercent(t *testing.T) {
	flows := []CashFlow{
		{Date: at(0), Amount: -1000},
		{Date: at(365), Amount: 1100},
	}

	r, err := Solve(flows)

	require.NoError(t, err)
	assert.InDelta(t, 0.10, r, 1e-6)
}

func TestSolve_Loss(t *testing.T) {
	r, err := Solve([]CashFlow{
		{Date: at(0), Amount: -1000},
		{Date: at(365), Amount: 900},
	})

	require.NoError(t, err)
	assert.InDelta(t, -0.10, r, 1e-6)
}

func TestSolve_IrregularFlowsZeroNPV(t *testing.T) {
	flows := []CashFlow{
		{Date: at(200), Amount: 2500},
		{Date: at(0), Amount: -1000},
		{Date: at(45), Amount: -1200},
		{Date: at(120), Amount: 300},
	}

	r, err := Solve(flows)
	require.NoError(t, err)

	var sum float64
	for _, f := range flows {
		sum += f.Amount / math.Pow(1+r, float64(f.Date.Sub(day0).Hours()/24)/365)
	}
	assert.InDelta(t, 0, sum, 1e-3)
	assert.Greater(t, r, 0.0)
}

func TestSolve_DegenerateInput(t *testing.T) {
	cases := []struct {
		name  string
		flows []CashFlow
	}{
		{"Empty", nil},
		{"Single", []CashFlow{{Date: at(0), Amount: -1000}}},
		{"AllNegative", []CashFlow{{Date: at(0), Amount: -1000}, {Date: at(10), Amount: -500}}},
		{"AllPositive", []CashFlow{{Date: at(0), Amount: 1000}, {Date: at(10), Amount: 500}}},
		{"SameDay", []CashFlow{{Date: at(3), Amount: -1000}, {Date: at(3), Amount: 1100}}},
		{"NaN", []CashFlow{{Date: at(0), Amount: -1000}, {Date: at(3), Amount: math.NaN()}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Solve(tc.flows)
			assert.ErrorIs(t, err, ErrDegenerateInput)
		})
	}
}

func TestSolve_NoConvergence(t *testing.T) {
	s := Solver{Guesses: []float64{5.0}, MaxIterations: 1, Tolerance: 1e-9}

	_, err := s.Solve([]CashFlow{
		{Date: at(0), Amount: -1000},
		{Date: at(365), Amount: 1100},
	})

	assert.ErrorIs(t, err, ErrNoConvergence)
}

func TestSolve_FallsBackToLaterGuess(t *testing.T) {
	// the first seed cannot converge in one step, the second starts on the root
	s := Solver{Guesses: []float64{5.0, 0.1}, MaxIterations: 1, Tolerance: 1e-9}

	r, err := s.Solve([]CashFlow{
		{Date: at(0), Amount: -1000},
		{Date: at(365), Amount: 1100},
	})

	require.NoError(t, err)
	assert.InDelta(t, 0.1, r, 1e-9)
}
