package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artha-ledger-go/internal/ledger"
	"artha-ledger-go/internal/models"
	"artha-ledger-go/internal/reconcile"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ reconcile.Store = (*SQLStore)(nil)

// SQLStore persists games through gorm. Apply runs each batch in a single
// database transaction.
type SQLStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLStore creates a store over an already migrated database.
func NewSQLStore(db *gorm.DB, logger *zap.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger.Named("sql-store"),
	}
}

// CreateGame inserts a new game header.
func (s *SQLStore) CreateGame(ctx context.Context, g GameState) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Game{}).Where("portfolio_id = ?", g.PortfolioID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check game %s: %w", g.PortfolioID, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrGameExists, g.PortfolioID)
	}

	row := gameToModel(g)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create game %s: %w", g.PortfolioID, err)
	}
	s.logger.Info("Game created", zap.String("portfolio_id", g.PortfolioID), zap.String("player", g.PlayerName))
	return nil
}

// LoadGame returns the header of a game.
func (s *SQLStore) LoadGame(ctx context.Context, portfolioID string) (GameState, error) {
	var row models.Game
	err := s.db.WithContext(ctx).Where("portfolio_id = ?", portfolioID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GameState{}, fmt.Errorf("%w: %s", ErrGameNotFound, portfolioID)
	}
	if err != nil {
		return GameState{}, fmt.Errorf("failed to load game %s: %w", portfolioID, err)
	}
	return gameFromModel(row)
}

// LatestGameID returns the portfolio id of the most recently created game.
func (s *SQLStore) LatestGameID(ctx context.Context) (string, error) {
	var row models.Game
	err := s.db.WithContext(ctx).Order("created_at desc, id desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrGameNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to find latest game: %w", err)
	}
	return row.PortfolioID, nil
}

// LoadSnapshot returns the persisted holdings of a portfolio.
func (s *SQLStore) LoadSnapshot(ctx context.Context, portfolioID string) (reconcile.Persisted, error) {
	var rows []models.Position
	if err := s.db.WithContext(ctx).Where("portfolio_id = ?", portfolioID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}

	out := make(reconcile.Persisted, len(rows))
	for _, r := range rows {
		snap, err := positionFromModel(r)
		if err != nil {
			return nil, err
		}
		out[snap.Symbol] = snap
	}
	return out, nil
}

// LoadTransactions returns every persisted transaction of a portfolio in
// sequence order.
func (s *SQLStore) LoadTransactions(ctx context.Context, portfolioID string) ([]ledger.Transaction, error) {
	var rows []models.Transaction
	if err := s.db.WithContext(ctx).Where("portfolio_id = ?", portfolioID).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	out := make([]ledger.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := transactionFromModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Apply writes a checkpoint batch. Either every operation commits or none do.
func (s *SQLStore) Apply(ctx context.Context, portfolioID string, batch reconcile.Batch) error {
	if err := batch.Plan.Validate(); err != nil {
		return fmt.Errorf("refusing to apply plan: %w", err)
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(batch.Plan.Deletes) > 0 {
			err := tx.Where("portfolio_id = ? AND symbol IN ?", portfolioID, batch.Plan.Deletes).
				Delete(&models.Position{}).Error
			if err != nil {
				return fmt.Errorf("failed to delete positions: %w", err)
			}
		}

		for _, snap := range batch.Plan.Updates {
			res := tx.Model(&models.Position{}).
				Where("portfolio_id = ? AND symbol = ?", portfolioID, snap.Symbol).
				Updates(map[string]interface{}{
					"quantity":   snap.Quantity,
					"avg_cost":   snap.AvgCost.String(),
					"last_price": snap.LastPrice.String(),
					"opened_at":  snap.OpenedAt,
					"updated_at": now,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to update position %s: %w", snap.Symbol, res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("failed to update position %s: %d rows matched", snap.Symbol, res.RowsAffected)
			}
		}

		if len(batch.Plan.Inserts) > 0 {
			rows := make([]models.Position, 0, len(batch.Plan.Inserts))
			for _, snap := range batch.Plan.Inserts {
				rows = append(rows, positionToModel(portfolioID, snap))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to insert positions: %w", err)
			}
		}

		if len(batch.Transactions) > 0 {
			rows := make([]models.Transaction, 0, len(batch.Transactions))
			for _, t := range batch.Transactions {
				rows = append(rows, transactionToModel(portfolioID, t))
			}
			// a retried batch may carry transactions that already committed
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "portfolio_id"}, {Name: "seq"}},
				DoNothing: true,
			}).Create(&rows).Error
			if err != nil {
				return fmt.Errorf("failed to insert transactions: %w", err)
			}
		}

		res := tx.Model(&models.Game{}).
			Where("portfolio_id = ?", portfolioID).
			Updates(map[string]interface{}{
				"cash":            batch.Account.Cash.String(),
				"realized_pnl":    batch.Account.RealizedPnL.String(),
				"current_day":     batch.Account.CurrentDay,
				"last_seq":        batch.Account.LastSeq,
				"checkpointed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update game: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrGameNotFound, portfolioID)
		}

		s.logger.Debug("Applied checkpoint batch",
			zap.String("portfolio_id", portfolioID),
			zap.Int("operations", batch.Plan.Size()),
			zap.Int("transactions", len(batch.Transactions)),
		)
		return nil
	})
}
