package models

import (
	"time"

	"gorm.io/gorm"
)

// Transaction represents an applied trade in the database.
type Transaction struct {
	gorm.Model
	PortfolioID string    `gorm:"uniqueIndex:idx_game_seq;not null" json:"portfolio_id"`
	Seq         uint64    `gorm:"uniqueIndex:idx_game_seq;not null" json:"seq"`
	Symbol      string    `gorm:"index;not null" json:"symbol"`
	Side        string    `gorm:"not null" json:"side"` // "BUY" or "SELL"
	Quantity    int64     `gorm:"not null" json:"quantity"`
	Price       string    `gorm:"type:text;not null" json:"price"`
	Fee         string    `gorm:"type:text;not null" json:"fee"`
	ExecutedAt  time.Time `gorm:"not null" json:"executed_at"`
}
