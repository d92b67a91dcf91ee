package services

import (
	"log"
	"time"

	"igaming-lobby-system/models"

	"github.com/go-co-op/gocron/v2"
)

// armTimers schedules the per-round jobs: a repeating 1-second countdown
// tick and a one-shot expiry at the round's deadline. Any jobs left over
// from a superseded round are removed first, so a stale timer can never
// touch the new round.
func (s *LobbyService) armTimers(roundID string, expiry time.Time) {
	s.stopRoundTimers()

	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	tick, err := s.sched.NewJob(
		gocron.DurationJob(s.tickInterval),
		gocron.NewTask(func() { s.tick(roundID) }),
	)
	if err != nil {
		log.Printf("[Scheduler] failed to arm tick for round %s: %v", roundID, err)
	} else {
		s.tickJob = tick
	}

	expire, err := s.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(expiry)),
		gocron.NewTask(func() { s.expireRound(roundID) }),
	)
	if err != nil {
		log.Printf("[Scheduler] failed to arm expiry for round %s: %v", roundID, err)
	} else {
		s.expiryJob = expire
	}
}

func (s *LobbyService) stopRoundTimers() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if s.tickJob != nil {
		_ = s.sched.RemoveJob(s.tickJob.ID())
		s.tickJob = nil
	}
	if s.expiryJob != nil {
		_ = s.sched.RemoveJob(s.expiryJob.ID())
		s.expiryJob = nil
	}
}

// scheduleStart arms a one-shot job that starts the next round after delay.
// StartNewRound re-arms this on failure, so a broken store delays rounds
// instead of ending them.
func (s *LobbyService) scheduleStart(delay time.Duration) {
	_, err := s.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(delay))),
		gocron.NewTask(func() {
			if err := s.StartNewRound(); err != nil {
				log.Printf("[Scheduler] next round not started, will retry: %v", err)
			}
		}),
	)
	if err != nil {
		log.Printf("[Scheduler] failed to schedule next round: %v", err)
	}
}

// tick publishes the countdown for the round it was armed for. Stops being
// meaningful once the round is superseded or expired; the no-op check keeps
// stale ticks silent until the job is removed.
func (s *LobbyService) tick(roundID string) {
	s.mu.RLock()
	lobby := s.current
	if lobby == nil || lobby.ID != roundID || lobby.Status != models.LobbyStatusActive {
		s.mu.RUnlock()
		return
	}
	remaining := time.Until(lobby.ExpiryTime)
	s.mu.RUnlock()

	remainingSeconds := int(remaining / time.Second)
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	s.events.emitTimer(remainingSeconds)
}
