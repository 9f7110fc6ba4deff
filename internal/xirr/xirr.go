package xirr

import (
	"errors"
	"math"
	"sort"
	"time"
)

var (
	// ErrDegenerateInput is returned when no rate of return exists for the
	// flows: fewer than two distinct dates or all amounts of the same sign.
	ErrDegenerateInput = errors.New("xirr: degenerate cash flows")
	// ErrNoConvergence is returned when every seeded Newton run exhausted its
	// iteration budget without reaching the tolerance.
	ErrNoConvergence = errors.New("xirr: no convergence")
)

const daysPerYear = 365.0

// CashFlow is a dated amount. Outflows (buys) are negative, inflows (sells and
// terminal valuations) positive.
type CashFlow struct {
	Date   time.Time
	Amount float64
}

// Solver finds the annualized rate r for which Σ amount / (1+r)^(days/365) = 0.
type Solver struct {
	Guesses       []float64
	MaxIterations int
	// Tolerance is relative to the largest absolute cash flow.
	Tolerance float64
}

// DefaultSolver returns a solver with the seeds and bounds used across the app.
func DefaultSolver() Solver {
	return Solver{
		Guesses:       []float64{0.1, -0.3, 1.0, -0.9, 5.0},
		MaxIterations: 100,
		Tolerance:     1e-7,
	}
}

// Solve runs DefaultSolver().Solve.
func Solve(flows []CashFlow) (float64, error) {
	return DefaultSolver().Solve(flows)
}

// Solve returns the annualized money-weighted return of flows.
func (s Solver) Solve(flows []CashFlow) (float64, error) {
	if err := checkFlows(flows); err != nil {
		return 0, err
	}

	sorted := append([]CashFlow(nil), flows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	t0 := sorted[0].Date
	years := make([]float64, len(sorted))
	amounts := make([]float64, len(sorted))
	scale := 0.0
	for i, f := range sorted {
		years[i] = f.Date.Sub(t0).Hours() / 24 / daysPerYear
		amounts[i] = f.Amount
		scale = math.Max(scale, math.Abs(f.Amount))
	}
	tol := s.Tolerance * scale

	for _, guess := range s.Guesses {
		if r, ok := s.newton(guess, years, amounts, tol); ok {
			return r, nil
		}
	}
	return 0, ErrNoConvergence
}

func (s Solver) newton(guess float64, years, amounts []float64, tol float64) (float64, bool) {
	r := guess
	for i := 0; i < s.MaxIterations; i++ {
		if r <= -1 {
			return 0, false
		}
		f, df := npv(r, years, amounts)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		if math.Abs(f) <= tol {
			return r, true
		}
		if df == 0 || math.IsNaN(df) || math.IsInf(df, 0) {
			return 0, false
		}
		next := r - f/df
		// keep (1+r) positive so fractional powers stay real
		if next <= -1 {
			next = (r - 1) / 2
		}
		r = next
	}
	return 0, false
}

// npv returns f(r) and f'(r).
func npv(r float64, years, amounts []float64) (float64, float64) {
	var f, df float64
	base := 1 + r
	for i, t := range years {
		d := math.Pow(base, t)
		f += amounts[i] / d
		df -= t * amounts[i] / (d * base)
	}
	return f, df
}

func checkFlows(flows []CashFlow) error {
	if len(flows) < 2 {
		return ErrDegenerateInput
	}
	var pos, neg bool
	first := flows[0].Date
	distinct := false
	for _, f := range flows {
		if math.IsNaN(f.Amount) || math.IsInf(f.Amount, 0) {
			return ErrDegenerateInput
		}
		switch {
		case f.Amount > 0:
			pos = true
		case f.Amount < 0:
			neg = true
		}
		if !f.Date.Equal(first) {
			distinct = true
		}
	}
	if !pos || !neg || !distinct {
		return ErrDegenerateInput
	}
	return nil
}
