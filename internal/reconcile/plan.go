package reconcile

import (
	"fmt"
	"sort"

	"artha-ledger-go/internal/ledger"
)

// Persisted is the stored holding state of a portfolio, keyed by symbol.
type Persisted map[string]ledger.HoldingSnapshot

// Keys returns the persisted symbols in sorted order.
func (p Persisted) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Plan is the set of row operations that turns the persisted holdings into
// the desired ones. A symbol appears in at most one list.
type Plan struct {
	Updates []ledger.HoldingSnapshot `json:"updates"`
	Inserts []ledger.HoldingSnapshot `json:"inserts"`
	Deletes []string                 `json:"deletes"`
}

// IsEmpty reports whether the plan changes nothing.
func (p Plan) IsEmpty() bool {
	return len(p.Updates) == 0 && len(p.Inserts) == 0 && len(p.Deletes) == 0
}

// Size returns the number of row operations.
func (p Plan) Size() int {
	return len(p.Updates) + len(p.Inserts) + len(p.Deletes)
}

// Validate checks that no symbol appears twice across the three lists.
func (p Plan) Validate() error {
	seen := make(map[string]string, p.Size())
	mark := func(sym, op string) error {
		if prev, ok := seen[sym]; ok {
			return fmt.Errorf("symbol %s appears in both %s and %s", sym, prev, op)
		}
		seen[sym] = op
		return nil
	}
	for _, s := range p.Updates {
		if err := mark(s.Symbol, "updates"); err != nil {
			return err
		}
	}
	for _, s := range p.Inserts {
		if err := mark(s.Symbol, "inserts"); err != nil {
			return err
		}
	}
	for _, sym := range p.Deletes {
		if err := mark(sym, "deletes"); err != nil {
			return err
		}
	}
	return nil
}

// Diff computes the plan from the desired holdings to the persisted ones.
// Existing symbols are always updated in place, never deleted and
// re-inserted. Symbols whose persisted snapshot already matches are skipped,
// so diffing a reconciled state yields an empty plan.
func Diff(desired map[string]ledger.HoldingSnapshot, persisted Persisted) Plan {
	var plan Plan

	for _, sym := range sortedKeys(desired) {
		want := desired[sym]
		have, ok := persisted[sym]
		switch {
		case !ok:
			plan.Inserts = append(plan.Inserts, want)
		case !have.Equal(want):
			plan.Updates = append(plan.Updates, want)
		}
	}

	for _, sym := range persisted.Keys() {
		if _, ok := desired[sym]; !ok {
			plan.Deletes = append(plan.Deletes, sym)
		}
	}
	return plan
}

func sortedKeys(m map[string]ledger.HoldingSnapshot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
