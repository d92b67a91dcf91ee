package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"igaming-lobby-system/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlayerStore is the engine's view of the player/points backend. The lobby
// engine consumes this interface only; the gorm implementation lives in
// UserService.
type PlayerStore interface {
	FindPlayer(username string) (*models.Player, error)
	IncrementPoints(username string, pointsEarned int, isWinner bool) error
	RecomputeRanks() error
	TopPlayers(limit int) ([]models.PlayerPoints, error)
}

// RoundStore persists and restores rounds.
type RoundStore interface {
	PersistRound(lobby *models.Lobby) error
	LoadRound(id string) (*models.Lobby, error)
}

// LobbyStore is the gorm-backed RoundStore.
type LobbyStore struct {
	DB *gorm.DB
}

func NewLobbyStore(db *gorm.DB) *LobbyStore {
	return &LobbyStore{DB: db}
}

// PersistRound upserts the round, serializing the player list into its JSON
// column first.
func (s *LobbyStore) PersistRound(lobby *models.Lobby) error {
	players := lobby.Players
	if players == nil {
		players = []models.LobbyPlayer{}
	}
	raw, err := json.Marshal(players)
	if err != nil {
		return fmt.Errorf("marshal players for lobby %s: %w", lobby.ID, err)
	}
	lobby.PlayersJSON = datatypes.JSON(raw)

	if err := s.DB.Save(lobby).Error; err != nil {
		return fmt.Errorf("%w: save lobby %s: %v", ErrPersistence, lobby.ID, err)
	}
	return nil
}

// LoadRound fetches one round by ID and rehydrates its player list.
func (s *LobbyStore) LoadRound(id string) (*models.Lobby, error) {
	var lobby models.Lobby
	if err := s.DB.First(&lobby, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load lobby %s: %v", ErrPersistence, id, err)
	}

	if len(lobby.PlayersJSON) > 0 {
		if err := json.Unmarshal(lobby.PlayersJSON, &lobby.Players); err != nil {
			return nil, fmt.Errorf("unmarshal players for lobby %s: %w", id, err)
		}
	}
	return &lobby, nil
}
