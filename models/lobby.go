package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LobbyStatus is the lifecycle state of a single round.
type LobbyStatus string

const (
	LobbyStatusActive  LobbyStatus = "ACTIVE"
	LobbyStatusExpired LobbyStatus = "EXPIRED"
	// LobbyStatusCompleted marks archived rounds. Rounds never transition
	// here while live; the archiver worker flips old EXPIRED rounds.
	LobbyStatusCompleted LobbyStatus = "COMPLETED"
)

// LobbyPlayer is one participant entry on a round. Slice order is join order.
type LobbyPlayer struct {
	Username  string `json:"username"`
	Selection *int   `json:"selection,omitempty"`
}

// Lobby is one round of the lucky-number game.
//
// WinningNumber stays hidden from clients until the round expires, so it is
// excluded from JSON here and only surfaced through the `expired` event.
type Lobby struct {
	ID            string      `gorm:"primaryKey;type:uuid" json:"id"`
	WinningNumber int         `gorm:"not null" json:"-"`
	StartTime     time.Time   `gorm:"not null" json:"start_time"`
	ExpiryTime    time.Time   `gorm:"not null" json:"expiry_time"`
	Status        LobbyStatus `gorm:"not null;default:'ACTIVE';index" json:"status"`
	PlayerCount   int         `gorm:"default:0" json:"player_count"`

	// Players holds the live participant list; PlayersJSON is its
	// persisted form (single JSON column, same trick as storing drawn
	// numbers per game).
	Players     []LobbyPlayer  `gorm:"-" json:"players"`
	PlayersJSON datatypes.JSON `gorm:"column:players" json:"-"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PlayerIndex returns the position of username in the join-ordered player
// list, or -1 when the player has not joined this round.
func (l *Lobby) PlayerIndex(username string) int {
	for i := range l.Players {
		if l.Players[i].Username == username {
			return i
		}
	}
	return -1
}
