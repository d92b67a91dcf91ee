package services

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"igaming-lobby-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService owns player identity snapshots, the points ledger and the
// leaderboard ranking. It is the gorm implementation of PlayerStore.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// FindPlayer resolves a username against the local player snapshot table.
func (s *UserService) FindPlayer(username string) (*models.Player, error) {
	var player models.Player
	err := s.DB.Where("username = ?", username).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find player %s: %v", ErrPersistence, username, err)
	}
	return &player, nil
}

// ensurePointsRecord fetches or creates the standing row for username
// (idempotent, same shape as progress-record bootstrapping).
func (s *UserService) ensurePointsRecord(tx *gorm.DB, username string) (*models.PlayerPoints, error) {
	var points models.PlayerPoints
	err := tx.Where("username = ?", username).First(&points).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		points = models.PlayerPoints{
			ID:       uuid.NewString(),
			Username: username,
		}
		if err := tx.Create(&points).Error; err != nil {
			return nil, err
		}
		return &points, nil
	}
	if err != nil {
		return nil, err
	}
	return &points, nil
}

// IncrementPoints applies one round's settlement for one player atomically:
// points and gamesPlayed always move, gamesWon only for winners, and a
// ledger entry is appended.
func (s *UserService) IncrementPoints(username string, pointsEarned int, isWinner bool) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		points, err := s.ensurePointsRecord(tx, username)
		if err != nil {
			return err
		}

		points.TotalPoints += pointsEarned
		points.GamesPlayed++
		if isWinner {
			points.GamesWon++
		}
		if err := tx.Save(points).Error; err != nil {
			return err
		}

		historyType := models.PointHistoryParticipation
		description := fmt.Sprintf("Earned %d points from game", pointsEarned)
		if isWinner {
			historyType = models.PointHistoryWin
			description = fmt.Sprintf("Earned %d points from game (Winner)", pointsEarned)
		}

		return tx.Create(&models.PointHistory{
			ID:          uuid.NewString(),
			Username:    username,
			Points:      pointsEarned,
			Type:        historyType,
			Description: description,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: increment points for %s: %v", ErrPersistence, username, err)
	}
	return nil
}

// assignRanks orders standings by total points descending and assigns dense
// 1-based ranks. Ties keep their original (CreatedAt) order.
func assignRanks(standings []models.PlayerPoints) {
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].TotalPoints > standings[j].TotalPoints
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
}

// RecomputeRanks re-sorts every standing row and persists the new ranks.
// Full re-sort is O(n log n) in player count, which is fine at this scale.
func (s *UserService) RecomputeRanks() error {
	var standings []models.PlayerPoints
	if err := s.DB.Order("created_at ASC").Find(&standings).Error; err != nil {
		return fmt.Errorf("%w: load standings: %v", ErrPersistence, err)
	}

	assignRanks(standings)

	for i := range standings {
		if err := s.DB.Model(&models.PlayerPoints{}).
			Where("id = ?", standings[i].ID).
			Update("rank", standings[i].Rank).Error; err != nil {
			return fmt.Errorf("%w: update rank for %s: %v", ErrPersistence, standings[i].Username, err)
		}
	}
	return nil
}

// TopPlayers returns the top limit standings in leaderboard order.
func (s *UserService) TopPlayers(limit int) ([]models.PlayerPoints, error) {
	if limit <= 0 {
		limit = 10
	}
	var standings []models.PlayerPoints
	err := s.DB.
		Order("total_points DESC, created_at ASC").
		Limit(limit).
		Find(&standings).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load leaderboard: %v", ErrPersistence, err)
	}
	return standings, nil
}

// GetUserPoints returns the standing row for username, creating an empty one
// on first read.
func (s *UserService) GetUserPoints(username string) (*models.PlayerPoints, error) {
	if _, err := s.FindPlayer(username); err != nil {
		return nil, err
	}

	var points *models.PlayerPoints
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		points, txErr = s.ensurePointsRecord(tx, username)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: points for %s: %v", ErrPersistence, username, err)
	}
	return points, nil
}

// GetPointHistory returns the player's ledger, newest first.
func (s *UserService) GetPointHistory(username string) ([]models.PointHistory, error) {
	if _, err := s.FindPlayer(username); err != nil {
		return nil, err
	}

	var history []models.PointHistory
	err := s.DB.
		Where("username = ?", username).
		Order("created_at DESC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("%w: history for %s: %v", ErrPersistence, username, err)
	}
	return history, nil
}

// UserStats bundles a player's standing and ledger for the stats endpoint.
type UserStats struct {
	Points  *models.PlayerPoints  `json:"points"`
	History []models.PointHistory `json:"history"`
}

func (s *UserService) GetUserStats(username string) (*UserStats, error) {
	points, err := s.GetUserPoints(username)
	if err != nil {
		return nil, err
	}
	history, err := s.GetPointHistory(username)
	if err != nil {
		return nil, err
	}
	return &UserStats{Points: points, History: history}, nil
}

// Leaderboard builds the client-facing top-limit response.
func (s *UserService) Leaderboard(limit int) ([]models.LeaderboardEntry, error) {
	standings, err := s.TopPlayers(limit)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, len(standings))
	for i, standing := range standings {
		entries[i] = models.LeaderboardEntry{
			Username: standing.Username,
			Points:   standing.TotalPoints,
			Rank:     i + 1,
			GamesWon: standing.GamesWon,
		}
	}
	log.Printf("[Users] leaderboard served (%d entries)", len(entries))
	return entries, nil
}
