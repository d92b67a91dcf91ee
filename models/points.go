package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerPoints is the per-player standing (denormalized for fast leaderboard
// reads). Rank is recomputed in full after every round settlement; CreatedAt
// doubles as the stable tie-break for equal totals.
type PlayerPoints struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`

	TotalPoints int `json:"total_points" gorm:"default:0"`
	GamesPlayed int `json:"games_played" gorm:"default:0"`
	GamesWon    int `json:"games_won" gorm:"default:0"`
	Rank        int `json:"rank" gorm:"default:0;index"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// LeaderboardEntry is the shape exposed to clients for one leaderboard row.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
	GamesWon int    `json:"gamesWon"`
}
