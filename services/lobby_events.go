package services

import (
	"sync"
	"time"
)

// LobbyEventType enumerates the events the lifecycle engine publishes.
type LobbyEventType string

const (
	EventTimer        LobbyEventType = "timer"
	EventPlayerJoined LobbyEventType = "playerJoined"
	EventExpired      LobbyEventType = "expired"
	EventNewLobby     LobbyEventType = "newLobby"
)

// LobbyEvent is one broadcast message on the bus.
type LobbyEvent struct {
	Type      LobbyEventType `json:"type"`
	Data      any            `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// subscriberBuffer bounds how many events a slow subscriber may lag behind
// before it is dropped. SSE clients that stop reading must never block the
// engine's timer callbacks.
const subscriberBuffer = 32

// LobbyEventBus fans lobby events out to any number of live subscribers.
// Publish never blocks: a subscriber whose buffer is full is closed and
// deregistered.
type LobbyEventBus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan LobbyEvent
}

func NewLobbyEventBus() *LobbyEventBus {
	return &LobbyEventBus{
		subs: make(map[uint64]chan LobbyEvent),
	}
}

// Subscribe registers a listener and returns its event channel plus a
// cancel function. Cancel is safe to call concurrently with Publish and
// safe to call more than once.
func (b *LobbyEventBus) Subscribe() (<-chan LobbyEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan LobbyEvent, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers evt to every registered subscriber without blocking.
func (b *LobbyEventBus) Publish(evt LobbyEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Buffer full: the subscriber stopped reading. Drop it.
			delete(b.subs, id)
			close(ch)
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *LobbyEventBus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *LobbyEventBus) emitTimer(remainingSeconds int) {
	b.Publish(LobbyEvent{
		Type:      EventTimer,
		Data:      map[string]any{"remainingSeconds": remainingSeconds},
		Timestamp: time.Now(),
	})
}

func (b *LobbyEventBus) emitPlayerJoined(username string, playerCount int) {
	b.Publish(LobbyEvent{
		Type:      EventPlayerJoined,
		Data:      map[string]any{"username": username, "playerCount": playerCount},
		Timestamp: time.Now(),
	})
}

func (b *LobbyEventBus) emitExpired(winningNumber int) {
	b.Publish(LobbyEvent{
		Type:      EventExpired,
		Data:      map[string]any{"winningNumber": winningNumber},
		Timestamp: time.Now(),
	})
}

func (b *LobbyEventBus) emitNewLobby(lobbyID string, startTime, expiryTime time.Time) {
	b.Publish(LobbyEvent{
		Type: EventNewLobby,
		Data: map[string]any{
			"lobbyId":    lobbyID,
			"startTime":  startTime,
			"expiryTime": expiryTime,
		},
		Timestamp: time.Now(),
	})
}
