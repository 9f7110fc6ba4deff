package models

import (
	"time"

	"gorm.io/gorm"
)

// Game is one simulated trading session and the account state of its
// portfolio. Money columns are stored as decimal strings.
type Game struct {
	gorm.Model
	PortfolioID    string    `gorm:"uniqueIndex;not null"`
	PlayerName     string    `gorm:"not null"`
	InitialCapital string    `gorm:"type:text;not null"`
	Cash           string    `gorm:"type:text;not null"`
	RealizedPnL    string    `gorm:"column:realized_pnl;type:text;not null;default:'0'"`
	CurrentDay     int       `gorm:"not null;default:0"`
	TotalDays      int       `gorm:"not null"`
	StartDate      time.Time `gorm:"not null"`
	Policy         string    `gorm:"not null"`
	Symbols        string    // comma separated watch list
	LastSeq        uint64    `gorm:"not null;default:0"`
	CheckpointedAt *time.Time
}
