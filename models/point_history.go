package models

import (
	"time"

	"gorm.io/gorm"
)

// PointHistoryType categorizes how points were earned.
type PointHistoryType string

const (
	PointHistoryWin           PointHistoryType = "win"
	PointHistoryParticipation PointHistoryType = "participation"
	PointHistoryAchievement   PointHistoryType = "achievement"
	PointHistoryBonus         PointHistoryType = "bonus"
)

// PointHistory is one append-only ledger entry written at settlement.
type PointHistory struct {
	ID          string           `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username    string           `gorm:"index;not null" json:"username"`
	Points      int              `gorm:"not null" json:"points"`
	Type        PointHistoryType `gorm:"not null" json:"type"`
	Description string           `gorm:"type:text" json:"description"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
