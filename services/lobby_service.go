package services

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"igaming-lobby-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Fixed game rules. These are part of the game contract, not deployment
// configuration.
const (
	RoundDuration = 25 * time.Second
	TickInterval  = 1 * time.Second
	Cooldown      = 5 * time.Second
	MinSelection  = 1
	MaxSelection  = 10
)

// LobbyService is the round lifecycle engine. It owns the single current
// round: HTTP callers mutate it through Join/SelectNumber and the scheduler
// mutates it through the tick and expiry jobs. Every mutation runs under mu;
// reads take the shared side and copy before returning.
type LobbyService struct {
	players PlayerStore
	rounds  RoundStore
	events  *LobbyEventBus

	sched     gocron.Scheduler
	timersMu  sync.Mutex
	tickJob   gocron.Job
	expiryJob gocron.Job

	mu      sync.RWMutex
	current *models.Lobby

	roundDuration time.Duration
	tickInterval  time.Duration
	cooldown      time.Duration

	// drawNumber is swapped out in tests to fix the winning number.
	drawNumber func() int
}

func NewLobbyService(players PlayerStore, rounds RoundStore, events *LobbyEventBus) (*LobbyService, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	s := &LobbyService{
		players:       players,
		rounds:        rounds,
		events:        events,
		sched:         sched,
		roundDuration: RoundDuration,
		tickInterval:  TickInterval,
		cooldown:      Cooldown,
		drawNumber: func() int {
			return rand.Intn(MaxSelection-MinSelection+1) + MinSelection
		},
	}

	sched.Start()
	return s, nil
}

// Shutdown stops all round timers. In-flight requests finish normally.
func (s *LobbyService) Shutdown() error {
	return s.sched.Shutdown()
}

// StartNewRound creates and activates the next round: draws the winning
// number, persists the round, announces it and arms its timers. On a store
// failure the round is abandoned and another attempt is scheduled after the
// cooldown, so the lifecycle never silently stops.
func (s *LobbyService) StartNewRound() error {
	now := time.Now()
	lobby := &models.Lobby{
		ID:            uuid.NewString(),
		WinningNumber: s.drawNumber(),
		StartTime:     now,
		ExpiryTime:    now.Add(s.roundDuration),
		Status:        models.LobbyStatusActive,
		Players:       []models.LobbyPlayer{},
	}

	if err := s.rounds.PersistRound(lobby); err != nil {
		log.Printf("[Lobby] failed to persist new round: %v", err)
		s.scheduleStart(s.cooldown)
		return err
	}

	// Announce before releasing the lock: no Join can succeed against this
	// round until the newLobby event is out.
	s.mu.Lock()
	s.current = lobby
	s.events.emitNewLobby(lobby.ID, lobby.StartTime, lobby.ExpiryTime)
	s.mu.Unlock()

	s.armTimers(lobby.ID, lobby.ExpiryTime)

	log.Printf("[Lobby] round %s started, expires at %s", lobby.ID, lobby.ExpiryTime.Format(time.RFC3339))
	return nil
}

// Join adds username to the current round.
func (s *LobbyService) Join(username string) (*LobbyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby := s.current
	if lobby == nil {
		return nil, ErrNoActiveRound
	}
	if lobby.Status != models.LobbyStatusActive || !time.Now().Before(lobby.ExpiryTime) {
		return nil, ErrRoundNotJoinable
	}
	if lobby.PlayerIndex(username) >= 0 {
		return nil, ErrAlreadyJoined
	}

	if _, err := s.players.FindPlayer(username); err != nil {
		return nil, err
	}

	lobby.Players = append(lobby.Players, models.LobbyPlayer{Username: username})
	lobby.PlayerCount = len(lobby.Players)

	if err := s.rounds.PersistRound(lobby); err != nil {
		// Roll back so a failed join never half-applies.
		lobby.Players = lobby.Players[:len(lobby.Players)-1]
		lobby.PlayerCount = len(lobby.Players)
		return nil, err
	}

	s.events.emitPlayerJoined(username, lobby.PlayerCount)
	log.Printf("[Lobby] %s joined round %s (%d players)", username, lobby.ID, lobby.PlayerCount)

	return s.buildLobbyResponse(lobby, username), nil
}

// SelectNumber records (or overwrites) the caller's lucky number for the
// current round. Last write wins while the round is active.
func (s *LobbyService) SelectNumber(username string, number int) (*LobbyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby := s.current
	if lobby == nil {
		return nil, ErrNoActiveRound
	}
	if lobby.Status != models.LobbyStatusActive || !time.Now().Before(lobby.ExpiryTime) {
		return nil, ErrRoundNotActive
	}
	idx := lobby.PlayerIndex(username)
	if idx < 0 {
		return nil, ErrNotJoined
	}
	if number < MinSelection || number > MaxSelection {
		return nil, ErrInvalidSelection
	}

	previous := lobby.Players[idx].Selection
	selection := number
	lobby.Players[idx].Selection = &selection

	if err := s.rounds.PersistRound(lobby); err != nil {
		lobby.Players[idx].Selection = previous
		return nil, err
	}

	return s.buildLobbyResponse(lobby, username), nil
}

// GetCurrentRound returns the caller's view of the current round, or nil
// when no round exists yet. Never mutates state.
func (s *LobbyService) GetCurrentRound(username string) *LobbyResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	return s.buildLobbyResponse(s.current, username)
}

// ExpireCurrentRound forces expiry of the current round. Idempotent: a
// duplicate call, or a race with the timer firing, settles points exactly
// once.
func (s *LobbyService) ExpireCurrentRound() {
	s.mu.RLock()
	var id string
	if s.current != nil {
		id = s.current.ID
	}
	s.mu.RUnlock()

	if id == "" {
		return
	}
	s.expireRound(id)
}

// expireRound transitions roundID from ACTIVE to EXPIRED. Stale timers from
// a superseded round no-op here because the ID no longer matches.
func (s *LobbyService) expireRound(roundID string) {
	s.mu.Lock()
	lobby := s.current
	if lobby == nil || lobby.ID != roundID || lobby.Status != models.LobbyStatusActive {
		s.mu.Unlock()
		return
	}

	lobby.Status = models.LobbyStatusExpired
	winningNumber := lobby.WinningNumber
	players := make([]models.LobbyPlayer, len(lobby.Players))
	copy(players, lobby.Players)

	if err := s.rounds.PersistRound(lobby); err != nil {
		// The round is expired in memory regardless; timers must survive
		// store outages.
		log.Printf("[Lobby] failed to persist expired round %s: %v", roundID, err)
	}
	s.mu.Unlock()

	s.stopRoundTimers()
	s.events.emitExpired(winningNumber)
	s.settlePoints(roundID, players, winningNumber)
	s.scheduleStart(s.cooldown)

	log.Printf("[Lobby] round %s expired (winning number %d, %d players)", roundID, winningNumber, len(players))
}

// settlePoints awards one point per participating player, in join order.
// A failure for one player never blocks the rest. Ranks are recomputed once
// all players are settled.
func (s *LobbyService) settlePoints(roundID string, players []models.LobbyPlayer, winningNumber int) {
	for _, player := range players {
		if player.Selection == nil {
			continue
		}
		wonRound := *player.Selection == winningNumber
		if err := s.players.IncrementPoints(player.Username, 1, wonRound); err != nil {
			log.Printf("[Lobby] settlement failed for %s in round %s: %v", player.Username, roundID, err)
			continue
		}
	}

	if err := s.players.RecomputeRanks(); err != nil {
		log.Printf("[Lobby] rank recompute failed after round %s: %v", roundID, err)
	}
}

// LobbyResponse is the round view exposed to one caller. Other players'
// selections are redacted; only the caller's own selection is visible.
type LobbyResponse struct {
	ID             string               `json:"id"`
	PlayerCount    int                  `json:"playerCount"`
	StartTime      time.Time            `json:"startTime"`
	ExpiryTime     time.Time            `json:"expiryTime"`
	Status         models.LobbyStatus   `json:"status"`
	Players        []models.LobbyPlayer `json:"players"`
	TimeToExpire   int                  `json:"timeToExpire"`
	CanJoin        bool                 `json:"canJoin"`
	SelectedNumber *int                 `json:"selectedNumber,omitempty"`
}

// buildLobbyResponse snapshots lobby for username. Caller must hold mu.
func (s *LobbyService) buildLobbyResponse(lobby *models.Lobby, username string) *LobbyResponse {
	players := make([]models.LobbyPlayer, len(lobby.Players))
	var selectedNumber *int
	for i, player := range lobby.Players {
		players[i] = models.LobbyPlayer{Username: player.Username}
		if player.Username == username && player.Selection != nil {
			selection := *player.Selection
			players[i].Selection = &selection
			selectedNumber = &selection
		}
	}

	canJoin := lobby.Status == models.LobbyStatusActive && lobby.PlayerIndex(username) < 0

	return &LobbyResponse{
		ID:             lobby.ID,
		PlayerCount:    lobby.PlayerCount,
		StartTime:      lobby.StartTime,
		ExpiryTime:     lobby.ExpiryTime,
		Status:         lobby.Status,
		Players:        players,
		TimeToExpire:   int(s.roundDuration / time.Second),
		CanJoin:        canJoin,
		SelectedNumber: selectedNumber,
	}
}
