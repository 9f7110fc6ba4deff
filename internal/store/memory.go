package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"artha-ledger-go/internal/ledger"
	"artha-ledger-go/internal/reconcile"
)

var _ reconcile.Store = (*MemoryStore)(nil)

type memoryGame struct {
	state     GameState
	positions reconcile.Persisted
	txs       map[uint64]ledger.Transaction
}

// MemoryStore keeps games in process memory. Apply validates the whole batch
// before changing anything, so a rejected batch leaves no trace.
type MemoryStore struct {
	mu    sync.Mutex
	games map[string]*memoryGame
	order []string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]*memoryGame)}
}

// CreateGame registers a new game header.
func (m *MemoryStore) CreateGame(_ context.Context, g GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[g.PortfolioID]; ok {
		return fmt.Errorf("%w: %s", ErrGameExists, g.PortfolioID)
	}
	m.games[g.PortfolioID] = &memoryGame{
		state:     g,
		positions: make(reconcile.Persisted),
		txs:       make(map[uint64]ledger.Transaction),
	}
	m.order = append(m.order, g.PortfolioID)
	return nil
}

// LoadGame returns the header of a game.
func (m *MemoryStore) LoadGame(_ context.Context, portfolioID string) (GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[portfolioID]
	if !ok {
		return GameState{}, fmt.Errorf("%w: %s", ErrGameNotFound, portfolioID)
	}
	return g.state, nil
}

// LatestGameID returns the portfolio id of the most recently created game.
func (m *MemoryStore) LatestGameID(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.order) == 0 {
		return "", ErrGameNotFound
	}
	return m.order[len(m.order)-1], nil
}

// LoadSnapshot returns the persisted holdings of a portfolio.
func (m *MemoryStore) LoadSnapshot(_ context.Context, portfolioID string) (reconcile.Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(reconcile.Persisted)
	if g, ok := m.games[portfolioID]; ok {
		for k, v := range g.positions {
			out[k] = v
		}
	}
	return out, nil
}

// LoadTransactions returns the persisted transactions of a portfolio in
// sequence order.
func (m *MemoryStore) LoadTransactions(_ context.Context, portfolioID string) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[portfolioID]
	if !ok {
		return nil, nil
	}
	out := make([]ledger.Transaction, 0, len(g.txs))
	for _, t := range g.txs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Apply validates the whole batch before changing anything, so a rejected
// batch leaves the store untouched.
func (m *MemoryStore) Apply(_ context.Context, portfolioID string, batch reconcile.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[portfolioID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, portfolioID)
	}
	if err := batch.Plan.Validate(); err != nil {
		return fmt.Errorf("refusing to apply plan: %w", err)
	}
	for _, s := range batch.Plan.Updates {
		if _, ok := g.positions[s.Symbol]; !ok {
			return fmt.Errorf("failed to update position %s: not found", s.Symbol)
		}
	}
	for _, s := range batch.Plan.Inserts {
		if _, ok := g.positions[s.Symbol]; ok {
			return fmt.Errorf("failed to insert position %s: unique constraint", s.Symbol)
		}
	}

	for _, sym := range batch.Plan.Deletes {
		delete(g.positions, sym)
	}
	for _, s := range batch.Plan.Updates {
		g.positions[s.Symbol] = s
	}
	for _, s := range batch.Plan.Inserts {
		g.positions[s.Symbol] = s
	}
	for _, t := range batch.Transactions {
		if _, ok := g.txs[t.Seq]; !ok {
			g.txs[t.Seq] = t
		}
	}

	now := time.Now().UTC()
	g.state.Account = batch.Account
	g.state.CheckpointedAt = &now
	return nil
}
