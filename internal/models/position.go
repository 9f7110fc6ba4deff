package models

import "time"

// Position is the persisted form of an open holding. There is at most one row
// per (game, symbol). It does not embed gorm.Model: soft deletes would keep
// the unique key occupied after a holding is closed.
type Position struct {
	ID          uint      `gorm:"primarykey"`
	PortfolioID string    `gorm:"uniqueIndex:idx_game_symbol;not null"`
	Symbol      string    `gorm:"uniqueIndex:idx_game_symbol;not null"`
	Quantity    int64     `gorm:"not null"`
	AvgCost     string    `gorm:"type:text;not null"`
	LastPrice   string    `gorm:"type:text;not null"`
	OpenedAt    time.Time `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
