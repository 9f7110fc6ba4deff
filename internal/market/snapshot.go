package market

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// snapshotFile is the on-disk layout of a price calendar:
//
//	prices:
//	  RELIANCE: ["2500", "2512.5", "2498"]
//	  TCS: ["3500", "3490"]
//
// Index i is the close of simulated day i.
type snapshotFile struct {
	Prices map[string][]string `yaml:"prices"`
}

// SnapshotSource serves prices from a fixed calendar. Days past the end of a
// symbol's series repeat its last price.
type SnapshotSource struct {
	prices map[string][]decimal.Decimal
}

var _ PriceSource = (*SnapshotSource)(nil)

// NewSnapshotSource builds a source from in-memory series.
func NewSnapshotSource(prices map[string][]decimal.Decimal) *SnapshotSource {
	s := &SnapshotSource{prices: make(map[string][]decimal.Decimal, len(prices))}
	for sym, series := range prices {
		s.prices[strings.ToUpper(sym)] = append([]decimal.Decimal(nil), series...)
	}
	return s
}

// LoadSnapshotFile reads a YAML price calendar.
func LoadSnapshotFile(path string) (*SnapshotSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes a YAML price calendar.
func ParseSnapshot(data []byte) (*SnapshotSource, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse price snapshot: %w", err)
	}

	prices := make(map[string][]decimal.Decimal, len(f.Prices))
	for sym, series := range f.Prices {
		parsed := make([]decimal.Decimal, 0, len(series))
		for day, raw := range series {
			p, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid price %q for %s on day %d: %w", raw, sym, day, err)
			}
			if !p.IsPositive() {
				return nil, fmt.Errorf("non-positive price %s for %s on day %d", raw, sym, day)
			}
			parsed = append(parsed, p)
		}
		prices[sym] = parsed
	}
	return NewSnapshotSource(prices), nil
}

// PriceAt returns the price of symbol on day.
func (s *SnapshotSource) PriceAt(_ context.Context, symbol string, day int) (decimal.Decimal, error) {
	series := s.prices[strings.ToUpper(symbol)]
	if len(series) == 0 || day < 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	if day >= len(series) {
		day = len(series) - 1
	}
	return series[day], nil
}

// Symbols returns the symbols in the calendar.
func (s *SnapshotSource) Symbols() []string {
	out := make([]string, 0, len(s.prices))
	for sym := range s.prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
