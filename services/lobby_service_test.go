package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"igaming-lobby-system/models"
)

type incrementCall struct {
	username string
	points   int
	isWinner bool
}

// fakePlayerStore is an in-memory PlayerStore tracking settlement calls.
type fakePlayerStore struct {
	mu             sync.Mutex
	known          map[string]bool
	failFor        map[string]bool
	increments     []incrementCall
	points         map[string]*models.PlayerPoints
	rankRecomputes int
}

func newFakePlayerStore(usernames ...string) *fakePlayerStore {
	f := &fakePlayerStore{
		known:   make(map[string]bool),
		failFor: make(map[string]bool),
		points:  make(map[string]*models.PlayerPoints),
	}
	for _, u := range usernames {
		f.known[u] = true
	}
	return f
}

func (f *fakePlayerStore) FindPlayer(username string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[username] {
		return nil, ErrPlayerNotFound
	}
	return &models.Player{Username: username}, nil
}

func (f *fakePlayerStore) IncrementPoints(username string, pointsEarned int, isWinner bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[username] {
		return fmt.Errorf("%w: simulated outage", ErrPersistence)
	}
	f.increments = append(f.increments, incrementCall{username, pointsEarned, isWinner})

	pts := f.points[username]
	if pts == nil {
		pts = &models.PlayerPoints{Username: username}
		f.points[username] = pts
	}
	pts.TotalPoints += pointsEarned
	pts.GamesPlayed++
	if isWinner {
		pts.GamesWon++
	}
	return nil
}

func (f *fakePlayerStore) RecomputeRanks() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankRecomputes++
	return nil
}

func (f *fakePlayerStore) TopPlayers(limit int) ([]models.PlayerPoints, error) {
	return nil, nil
}

func (f *fakePlayerStore) settlements() []incrementCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]incrementCall, len(f.increments))
	copy(out, f.increments)
	return out
}

// fakeRoundStore accepts every persist unless told to fail the next one.
type fakeRoundStore struct {
	mu       sync.Mutex
	saves    int
	failNext bool
}

func (f *fakeRoundStore) PersistRound(lobby *models.Lobby) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("%w: simulated outage", ErrPersistence)
	}
	f.saves++
	return nil
}

func (f *fakeRoundStore) LoadRound(id string) (*models.Lobby, error) {
	return nil, errors.New("not found")
}

func newTestLobbyService(t *testing.T, players *fakePlayerStore) (*LobbyService, *fakeRoundStore, *LobbyEventBus) {
	t.Helper()
	rounds := &fakeRoundStore{}
	bus := NewLobbyEventBus()
	svc, err := NewLobbyService(players, rounds, bus)
	if err != nil {
		t.Fatalf("NewLobbyService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Shutdown() })
	return svc, rounds, bus
}

func mustStartRound(t *testing.T, svc *LobbyService) {
	t.Helper()
	if err := svc.StartNewRound(); err != nil {
		t.Fatalf("StartNewRound: %v", err)
	}
}

func TestJoin_NoRoundYet(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore("alice"))

	if _, err := svc.Join("alice"); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("want ErrNoActiveRound, got %v", err)
	}
}

func TestJoin_HappyPathAndDuplicate(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore("alice"))
	mustStartRound(t, svc)

	resp, err := svc.Join("alice")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if resp.PlayerCount != 1 {
		t.Fatalf("want playerCount=1, got %d", resp.PlayerCount)
	}
	if resp.CanJoin {
		t.Fatalf("joined player should have canJoin=false")
	}
	if resp.Status != models.LobbyStatusActive {
		t.Fatalf("want ACTIVE, got %s", resp.Status)
	}

	if _, err := svc.Join("alice"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("want ErrAlreadyJoined, got %v", err)
	}
	if got := svc.GetCurrentRound("alice").PlayerCount; got != 1 {
		t.Fatalf("duplicate join changed playerCount: %d", got)
	}
}

func TestJoin_UnknownPlayer(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore("alice"))
	mustStartRound(t, svc)

	if _, err := svc.Join("mallory"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("want ErrPlayerNotFound, got %v", err)
	}
	if got := svc.GetCurrentRound("alice").PlayerCount; got != 0 {
		t.Fatalf("failed join mutated playerCount: %d", got)
	}
}

func TestJoin_RollsBackOnPersistFailure(t *testing.T) {
	svc, rounds, _ := newTestLobbyService(t, newFakePlayerStore("alice"))
	mustStartRound(t, svc)

	rounds.mu.Lock()
	rounds.failNext = true
	rounds.mu.Unlock()

	if _, err := svc.Join("alice"); !errors.Is(err, ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}
	if got := svc.GetCurrentRound("alice").PlayerCount; got != 0 {
		t.Fatalf("failed persist left partial join: playerCount=%d", got)
	}

	// The store recovered; the same player can join cleanly.
	if _, err := svc.Join("alice"); err != nil {
		t.Fatalf("join after store recovery: %v", err)
	}
}

func TestJoin_AfterExpiryFails(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore("alice"))
	svc.roundDuration = 50 * time.Millisecond
	mustStartRound(t, svc)

	time.Sleep(120 * time.Millisecond)

	if _, err := svc.Join("alice"); !errors.Is(err, ErrRoundNotJoinable) {
		t.Fatalf("want ErrRoundNotJoinable, got %v", err)
	}
}

func TestJoin_Concurrent(t *testing.T) {
	usernames := make([]string, 40)
	for i := range usernames {
		usernames[i] = fmt.Sprintf("player-%02d", i)
	}
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore(usernames...))
	mustStartRound(t, svc)

	var wg sync.WaitGroup
	errs := make(chan error, len(usernames))
	for _, username := range usernames {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if _, err := svc.Join(u); err != nil {
				errs <- err
			}
		}(username)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent join failed: %v", err)
	}
	if got := svc.GetCurrentRound("observer").PlayerCount; got != len(usernames) {
		t.Fatalf("want playerCount=%d, got %d", len(usernames), got)
	}
}

func TestSelectNumber_Validation(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore("alice", "bob"))
	mustStartRound(t, svc)

	if _, err := svc.SelectNumber("alice", 5); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("want ErrNotJoined, got %v", err)
	}

	if _, err := svc.Join("alice"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if _, err := svc.SelectNumber("alice", 11); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("want ErrInvalidSelection for 11, got %v", err)
	}
	if _, err := svc.SelectNumber("alice", 0); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("want ErrInvalidSelection for 0, got %v", err)
	}

	resp, err := svc.SelectNumber("alice", 7)
	if err != nil {
		t.Fatalf("SelectNumber: %v", err)
	}
	if resp.SelectedNumber == nil || *resp.SelectedNumber != 7 {
		t.Fatalf("want selectedNumber=7, got %v", resp.SelectedNumber)
	}

	// Overwrite is allowed while the round is active; last write wins.
	resp, err = svc.SelectNumber("alice", 3)
	if err != nil {
		t.Fatalf("overwrite SelectNumber: %v", err)
	}
	if resp.SelectedNumber == nil || *resp.SelectedNumber != 3 {
		t.Fatalf("want selectedNumber=3 after overwrite, got %v", resp.SelectedNumber)
	}
}

func TestRoundView_RedactsOtherPlayersSelections(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore("alice", "bob"))
	mustStartRound(t, svc)

	if _, err := svc.Join("alice"); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if _, err := svc.Join("bob"); err != nil {
		t.Fatalf("Join bob: %v", err)
	}
	if _, err := svc.SelectNumber("alice", 7); err != nil {
		t.Fatalf("SelectNumber: %v", err)
	}

	view := svc.GetCurrentRound("bob")
	for _, player := range view.Players {
		if player.Username == "alice" && player.Selection != nil {
			t.Fatalf("bob's view leaked alice's selection")
		}
	}
	if view.SelectedNumber != nil {
		t.Fatalf("bob has no selection, got %v", view.SelectedNumber)
	}

	own := svc.GetCurrentRound("alice")
	if own.SelectedNumber == nil || *own.SelectedNumber != 7 {
		t.Fatalf("alice's own view missing her selection")
	}
}

func TestExpire_SettlesExactlyOnce(t *testing.T) {
	players := newFakePlayerStore("alice", "bob", "carol")
	svc, _, _ := newTestLobbyService(t, players)
	svc.drawNumber = func() int { return 7 }
	mustStartRound(t, svc)

	for _, u := range []string{"alice", "bob", "carol"} {
		if _, err := svc.Join(u); err != nil {
			t.Fatalf("Join %s: %v", u, err)
		}
	}
	if _, err := svc.SelectNumber("alice", 7); err != nil {
		t.Fatalf("SelectNumber alice: %v", err)
	}
	if _, err := svc.SelectNumber("bob", 3); err != nil {
		t.Fatalf("SelectNumber bob: %v", err)
	}
	// carol never selects: she earns nothing and is not recorded.

	svc.ExpireCurrentRound()
	svc.ExpireCurrentRound() // duplicate trigger must be a no-op

	calls := players.settlements()
	if len(calls) != 2 {
		t.Fatalf("want exactly 2 settlements, got %d: %+v", len(calls), calls)
	}
	// Join order is settlement order.
	if calls[0].username != "alice" || !calls[0].isWinner || calls[0].points != 1 {
		t.Fatalf("unexpected first settlement: %+v", calls[0])
	}
	if calls[1].username != "bob" || calls[1].isWinner {
		t.Fatalf("unexpected second settlement: %+v", calls[1])
	}

	players.mu.Lock()
	defer players.mu.Unlock()
	if players.rankRecomputes != 1 {
		t.Fatalf("want 1 rank recompute, got %d", players.rankRecomputes)
	}
	alice := players.points["alice"]
	if alice.TotalPoints != 1 || alice.GamesPlayed != 1 || alice.GamesWon != 1 {
		t.Fatalf("alice standing wrong: %+v", alice)
	}
	bob := players.points["bob"]
	if bob.TotalPoints != 1 || bob.GamesPlayed != 1 || bob.GamesWon != 0 {
		t.Fatalf("bob standing wrong: %+v", bob)
	}
	if _, ok := players.points["carol"]; ok {
		t.Fatalf("carol made no selection but was settled")
	}
}

func TestExpire_ConcurrentTriggersSettleOnce(t *testing.T) {
	players := newFakePlayerStore("alice")
	svc, _, _ := newTestLobbyService(t, players)
	svc.drawNumber = func() int { return 4 }
	mustStartRound(t, svc)

	if _, err := svc.Join("alice"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := svc.SelectNumber("alice", 4); err != nil {
		t.Fatalf("SelectNumber: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ExpireCurrentRound()
		}()
	}
	wg.Wait()

	if calls := players.settlements(); len(calls) != 1 {
		t.Fatalf("racing expiry settled %d times", len(calls))
	}
}

func TestExpire_SettlementContinuesPastFailures(t *testing.T) {
	players := newFakePlayerStore("alice", "bob", "carol")
	players.failFor["bob"] = true
	svc, _, _ := newTestLobbyService(t, players)
	svc.drawNumber = func() int { return 2 }
	mustStartRound(t, svc)

	for i, u := range []string{"alice", "bob", "carol"} {
		if _, err := svc.Join(u); err != nil {
			t.Fatalf("Join %s: %v", u, err)
		}
		if _, err := svc.SelectNumber(u, i+1); err != nil {
			t.Fatalf("SelectNumber %s: %v", u, err)
		}
	}

	svc.ExpireCurrentRound()

	calls := players.settlements()
	if len(calls) != 2 {
		t.Fatalf("want alice and carol settled despite bob failing, got %+v", calls)
	}
	if calls[0].username != "alice" || calls[1].username != "carol" {
		t.Fatalf("wrong settlement order/players: %+v", calls)
	}
}

func TestExpire_PublishesWinningNumber(t *testing.T) {
	svc, _, bus := newTestLobbyService(t, newFakePlayerStore("alice"))
	svc.drawNumber = func() int { return 7 }
	mustStartRound(t, svc)

	events, cancel := bus.Subscribe()
	defer cancel()

	svc.ExpireCurrentRound()

	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-events:
			if evt.Type != EventExpired {
				continue
			}
			data := evt.Data.(map[string]any)
			if data["winningNumber"] != 7 {
				t.Fatalf("want winningNumber=7, got %v", data["winningNumber"])
			}
			return
		case <-deadline:
			t.Fatalf("no expired event published")
		}
	}
}

func TestStartNewRound_PublishesNewLobbyBeforeJoins(t *testing.T) {
	svc, _, bus := newTestLobbyService(t, newFakePlayerStore("alice"))

	events, cancel := bus.Subscribe()
	defer cancel()

	mustStartRound(t, svc)

	evt := recvEvent(t, events, time.Second)
	if evt.Type != EventNewLobby {
		t.Fatalf("first event after start must be newLobby, got %q", evt.Type)
	}

	resp, err := svc.Join("alice")
	if err != nil {
		t.Fatalf("Join after newLobby: %v", err)
	}
	data := evt.Data.(map[string]any)
	if data["lobbyId"] != resp.ID {
		t.Fatalf("newLobby announced %v but joined round %s", data["lobbyId"], resp.ID)
	}
}

func TestLifecycle_CooldownStartsFreshRound(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore("alice"))
	svc.roundDuration = 100 * time.Millisecond
	svc.cooldown = 100 * time.Millisecond
	mustStartRound(t, svc)

	first := svc.GetCurrentRound("alice")

	// Wait through expiry plus cooldown for the next round to be created.
	deadline := time.Now().Add(2 * time.Second)
	for {
		view := svc.GetCurrentRound("alice")
		if view != nil && view.ID != first.ID {
			if view.Status != models.LobbyStatusActive {
				t.Fatalf("next round not ACTIVE: %s", view.Status)
			}
			if !view.CanJoin {
				t.Fatalf("fresh round must be joinable for a non-member")
			}
			if view.PlayerCount != 0 {
				t.Fatalf("fresh round has stale players: %d", view.PlayerCount)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no new round created after expiry + cooldown")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestGetCurrentRound_NoRound(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore())

	if view := svc.GetCurrentRound("anyone"); view != nil {
		t.Fatalf("want nil view with no round, got %+v", view)
	}
}

func TestGetCurrentRound_DuringCooldownShowsExpired(t *testing.T) {
	svc, _, _ := newTestLobbyService(t, newFakePlayerStore("alice"))
	mustStartRound(t, svc)
	svc.ExpireCurrentRound()

	view := svc.GetCurrentRound("alice")
	if view == nil {
		t.Fatalf("expired round must stay readable during cooldown")
	}
	if view.Status != models.LobbyStatusExpired {
		t.Fatalf("want EXPIRED, got %s", view.Status)
	}
	if view.CanJoin {
		t.Fatalf("expired round must not be joinable")
	}
}
