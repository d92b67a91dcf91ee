package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"igaming-lobby-system/models"
	"igaming-lobby-system/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredProfile matches the JSON response from the profile sync endpoint.
type MirroredProfile struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	IsBanned   bool      `json:"is_banned"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type getProfileChangesResponse struct {
	Users []MirroredProfile `json:"users"`
}

// PlayerSyncWorker keeps the local player snapshot table in step with the
// external profile service. The lobby only ever reads this table; identity
// stays owned upstream.
type PlayerSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewPlayerSyncWorker(db *gorm.DB, profileServiceBaseURL, endpointPath, serviceToken string) *PlayerSyncWorker {
	return &PlayerSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      profileServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

// Start runs the sync loop until ctx is cancelled.
func (w *PlayerSyncWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First sync immediately so fresh deployments can serve joins.
	lastSync := time.Time{}
	if err := w.syncOnce(ctx, lastSync); err != nil {
		log.Printf("[PlayerSync] initial sync failed: %v", err)
	} else {
		lastSync = time.Now()
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("[PlayerSync] stopping")
			return
		case <-ticker.C:
			since := lastSync
			if err := w.syncOnce(ctx, since); err != nil {
				log.Printf("[PlayerSync] sync failed: %v", err)
				continue
			}
			lastSync = time.Now()
		}
	}
}

func (w *PlayerSyncWorker) syncOnce(ctx context.Context, since time.Time) error {
	profiles, err := w.fetchChangedProfiles(ctx, since)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}

	players := make([]models.Player, 0, len(profiles))
	for _, p := range profiles {
		players = append(players, models.Player{
			ID:             p.ID,
			ExternalUserID: p.ExternalID,
			Username:       p.Username,
			Email:          p.Email,
			AvatarURL:      p.AvatarURL,
			IsBanned:       p.IsBanned,
		})
	}

	err = w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "avatar_url", "is_banned", "updated_at"}),
	}).Create(&players).Error
	if err != nil {
		return fmt.Errorf("upsert players: %w", err)
	}

	log.Printf("[PlayerSync] upserted %d player profiles", len(players))
	return nil
}

func (w *PlayerSyncWorker) fetchChangedProfiles(ctx context.Context, since time.Time) ([]MirroredProfile, error) {
	u, err := url.Parse(w.baseURL + w.endpointPath)
	if err != nil {
		return nil, fmt.Errorf("parse profile service URL: %w", err)
	}

	q := u.Query()
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response getProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode profile service response: %w", err)
	}

	return response.Users, nil
}
