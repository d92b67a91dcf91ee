package workers

import (
	"context"
	"log"
	"time"

	"igaming-lobby-system/models"

	"gorm.io/gorm"
)

// RoundArchiver moves old EXPIRED rounds to COMPLETED. Expired rounds stay
// queryable through the cooldown window; once nobody can care about them
// anymore they are flipped to their archival resting state. Rounds are
// superseded, never deleted.
type RoundArchiver struct {
	DB        *gorm.DB
	Interval  time.Duration
	Retention time.Duration
}

func NewRoundArchiver(db *gorm.DB) *RoundArchiver {
	return &RoundArchiver{
		DB:        db,
		Interval:  1 * time.Minute,
		Retention: 5 * time.Minute,
	}
}

// Start runs the archive loop until ctx is cancelled.
func (a *RoundArchiver) Start(ctx context.Context) {
	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Archiver] stopping")
			return
		case <-ticker.C:
			a.archiveOnce(ctx)
		}
	}
}

func (a *RoundArchiver) archiveOnce(ctx context.Context) {
	cutoff := time.Now().Add(-a.Retention)

	result := a.DB.WithContext(ctx).
		Model(&models.Lobby{}).
		Where("status = ? AND expiry_time < ?", models.LobbyStatusExpired, cutoff).
		Update("status", models.LobbyStatusCompleted)

	if result.Error != nil {
		log.Printf("[Archiver] failed to archive rounds: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("[Archiver] archived %d rounds", result.RowsAffected)
	}
}
