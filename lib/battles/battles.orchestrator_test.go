package battles

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	battles map[string]*Battle
}

func newFakeStore() *fakeStore {
	return &fakeStore{battles: make(map[string]*Battle)}
}

func (s *fakeStore) Insert(ctx context.Context, battle *Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *battle
	s.battles[battle.ID] = &copied
	return nil
}

func (s *fakeStore) Update(ctx context.Context, battle *Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.battles[battle.ID]; !ok {
		return ErrBattleNotFound
	}
	copied := *battle
	s.battles[battle.ID] = &copied
	return nil
}

func (s *fakeStore) Get(ctx context.Context, battle_id string) (*Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	battle, ok := s.battles[battle_id]
	if !ok {
		return nil, ErrBattleNotFound
	}
	copied := *battle
	return &copied, nil
}

func (s *fakeStore) status(battle_id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	battle, ok := s.battles[battle_id]
	if !ok {
		return ""
	}
	return battle.Status
}

type fakeUsers struct {
	mu       sync.Mutex
	statuses map[string]UserStatus
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{statuses: make(map[string]UserStatus)}
}

func (u *fakeUsers) MiniProfile(ctx context.Context, username string) (*MiniProfile, error) {
	if username == "ghost" {
		return nil, ErrUserNotFound
	}
	return &MiniProfile{Username: username, DisplayName: username, Rating: 1200}, nil
}

func (u *fakeUsers) SetStatus(ctx context.Context, username string, status UserStatus) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statuses[username] = status
	return nil
}

func (u *fakeUsers) status(username string) UserStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.statuses[username]
}

type fakeBroadcast struct {
	mu     sync.Mutex
	events []*Event
}

func (b *fakeBroadcast) Publish(ctx context.Context, username string, event *Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

// countType counts published events of a type. Every event goes to both
// participants, so a single lifecycle transition counts twice.
func (b *fakeBroadcast) countType(event_type string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, event := range b.events {
		if event.Type == event_type {
			count++
		}
	}
	return count
}

func (b *fakeBroadcast) lastOfType(event_type string) *Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Type == event_type {
			return b.events[i]
		}
	}
	return nil
}

func newTestOrchestrator(t *testing.T, readiness_timeout time.Duration) (*Orchestrator, *fakeStore, *fakeUsers, *fakeBroadcast) {
	t.Helper()

	store := newFakeStore()
	users := newFakeUsers()
	broadcast := &fakeBroadcast{}

	orchestrator, err := NewOrchestrator(OrchestratorConfig{
		Store:            store,
		Users:            users,
		Broadcast:        broadcast,
		Engines:          []Engine{NewTypingEngine()},
		ReadinessTimeout: readiness_timeout,
	})
	require.NoError(t, err)
	t.Cleanup(orchestrator.Timers().Stop)

	return orchestrator, store, users, broadcast
}

func TestCreateBattle(t *testing.T) {
	orchestrator, store, _, broadcast := newTestOrchestrator(t, time.Minute)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, StatusWaiting, battle.Status)
	assert.Equal(t, "alice", battle.Challenger)
	assert.Equal(t, "bob", battle.Opponent)
	assert.Equal(t, 30, battle.Duration)

	assert.Equal(t, StatusWaiting, store.status(battle.ID))
	assert.True(t, orchestrator.readiness.Armed(battle.ID))
	assert.True(t, orchestrator.Timers().Pending(battle.ID, PhaseReadiness))
	assert.Equal(t, 2, broadcast.countType(EventBattleCreated))

	created := broadcast.lastOfType(EventBattleCreated)
	require.NotNil(t, created.Challenger)
	assert.Equal(t, "alice", created.Challenger.Username)
}

func TestCreateBattleUnknownUser(t *testing.T) {
	orchestrator, _, _, _ := newTestOrchestrator(t, time.Minute)

	_, err := orchestrator.CreateBattle(context.Background(), CategoryTyping, "alice", "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFullTypingLifecycle(t *testing.T) {
	orchestrator, store, users, broadcast := newTestOrchestrator(t, time.Minute)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	// Readiness handshake
	require.NoError(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID))
	assert.Equal(t, StatusWaiting, store.status(battle.ID))
	require.NoError(t, orchestrator.UpdateReadiness(ctx, "bob", battle.ID))

	assert.Equal(t, StatusOngoing, store.status(battle.ID))
	assert.False(t, orchestrator.Timers().Pending(battle.ID, PhaseReadiness))
	assert.True(t, orchestrator.Timers().Pending(battle.ID, PhaseRound))
	assert.Equal(t, UserStatusInBattle, users.status("alice"))
	assert.Equal(t, UserStatusInBattle, users.status("bob"))

	started := broadcast.lastOfType(EventBattleStarted)
	require.NotNil(t, started)
	config, ok := started.Config.(TypingConfig)
	require.True(t, ok)
	require.NotEmpty(t, config.Text)

	// Alice types the full passage, bob types nothing useful.
	require.NoError(t, orchestrator.SubmitPayload(ctx, "alice", battle.ID, config.Text))
	assert.Equal(t, StatusOngoing, store.status(battle.ID))
	require.NoError(t, orchestrator.SubmitPayload(ctx, "bob", battle.ID, "wrong words entirely"))

	// Both submitted: the round ends early.
	assert.Equal(t, StatusEnded, store.status(battle.ID))
	assert.False(t, orchestrator.Timers().Pending(battle.ID, PhaseRound))
	assert.Equal(t, UserStatusOnline, users.status("alice"))
	assert.Equal(t, UserStatusOnline, users.status("bob"))
	assert.Equal(t, 0, orchestrator.sessions.Len())

	ended := broadcast.lastOfType(EventBattleEnded)
	require.NotNil(t, ended)
	require.NotNil(t, ended.Result)
	assert.Equal(t, "alice", ended.Result.WinnerUsername)
	assert.Equal(t, "bob", ended.Result.LoserUsername)

	stored, err := store.Get(ctx, battle.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.WinnerUsername)
	result, err := UnmarshalResult(stored.ResultJSON)
	require.NoError(t, err)
	assert.Equal(t, ended.Result.WinnerScore, result.WinnerScore)
}

func TestReadinessRejections(t *testing.T) {
	orchestrator, _, _, _ := newTestOrchestrator(t, time.Minute)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, orchestrator.UpdateReadiness(ctx, "mallory", battle.ID), ErrNotAParticipant)

	require.NoError(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID))
	assert.ErrorIs(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID), ErrAlreadyReady)

	assert.ErrorIs(t, orchestrator.UpdateReadiness(ctx, "alice", "no-such-battle"), ErrBattleNotFound)
}

func TestConcurrentReadinessStartsOnce(t *testing.T) {
	orchestrator, store, _, broadcast := newTestOrchestrator(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, username := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(username string) {
				defer wg.Done()
				err := orchestrator.UpdateReadiness(ctx, username, battle.ID)
				assert.NoError(t, err)
			}(username)
		}
		wg.Wait()

		assert.Equal(t, StatusOngoing, store.status(battle.ID), "iteration %d", i)
	}

	// One started event per participant per battle, never more.
	assert.Equal(t, 25*2, broadcast.countType(EventBattleStarted))
}

func TestReadinessDeadlineCancels(t *testing.T) {
	orchestrator, store, _, _ := newTestOrchestrator(t, 20*time.Millisecond)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID))

	assert.Eventually(t, func() bool {
		return store.status(battle.ID) == StatusCanceled
	}, time.Second, 5*time.Millisecond)

	assert.False(t, orchestrator.readiness.Armed(battle.ID))
	assert.ErrorIs(t, orchestrator.UpdateReadiness(ctx, "bob", battle.ID), ErrInvalidState)
}

func TestSubmitRejections(t *testing.T) {
	orchestrator, _, _, _ := newTestOrchestrator(t, time.Minute)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	// Submissions before the round starts are rejected.
	assert.ErrorIs(t, orchestrator.SubmitPayload(ctx, "alice", battle.ID, "text"), ErrInvalidState)

	require.NoError(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID))
	require.NoError(t, orchestrator.UpdateReadiness(ctx, "bob", battle.ID))

	assert.ErrorIs(t, orchestrator.SubmitPayload(ctx, "mallory", battle.ID, "text"), ErrNotAParticipant)

	require.NoError(t, orchestrator.SubmitPayload(ctx, "alice", battle.ID, "text"))
	assert.ErrorIs(t, orchestrator.SubmitPayload(ctx, "alice", battle.ID, "again"), ErrAlreadySubmitted)
}

func TestEndBattleIdempotent(t *testing.T) {
	orchestrator, store, _, broadcast := newTestOrchestrator(t, time.Minute)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID))
	require.NoError(t, orchestrator.UpdateReadiness(ctx, "bob", battle.ID))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, orchestrator.EndBattle(ctx, battle.ID))
		}()
	}
	wg.Wait()

	assert.Equal(t, StatusEnded, store.status(battle.ID))
	assert.Equal(t, 2, broadcast.countType(EventBattleEnded))

	// A late end for an already settled battle is a no-op.
	assert.NoError(t, orchestrator.EndBattle(ctx, battle.ID))
	assert.Equal(t, 2, broadcast.countType(EventBattleEnded))
}

// submitOnStartBroadcast feeds both submissions the moment the started event
// is delivered, the earliest instant a participant can legally submit.
type submitOnStartBroadcast struct {
	fakeBroadcast
	orchestrator *Orchestrator
	once         sync.Once
	submit_errs  []error
}

func (b *submitOnStartBroadcast) Publish(ctx context.Context, username string, event *Event) error {
	if event.Type == EventBattleStarted {
		b.once.Do(func() {
			b.submit_errs = append(b.submit_errs,
				b.orchestrator.SubmitPayload(ctx, "alice", event.BattleID, "instant answer"),
				b.orchestrator.SubmitPayload(ctx, "bob", event.BattleID, ""),
			)
		})
	}
	return b.fakeBroadcast.Publish(ctx, username, event)
}

func TestEarlyEndDuringStartBroadcast(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	broadcast := &submitOnStartBroadcast{}

	orchestrator, err := NewOrchestrator(OrchestratorConfig{
		Store:            store,
		Users:            users,
		Broadcast:        broadcast,
		Engines:          []Engine{NewTypingEngine()},
		ReadinessTimeout: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(orchestrator.Timers().Stop)
	broadcast.orchestrator = orchestrator

	ctx := context.Background()
	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID))
	require.NoError(t, orchestrator.UpdateReadiness(ctx, "bob", battle.ID))

	for _, submit_err := range broadcast.submit_errs {
		require.NoError(t, submit_err)
	}

	// The pair completed before the start sequence returned, yet the durable
	// row must stay ENDED: the ONGOING commit happened before the started
	// broadcast, so nothing can overwrite the settlement.
	assert.Equal(t, StatusEnded, store.status(battle.ID))
	assert.Equal(t, 2, broadcast.countType(EventBattleEnded))
	assert.Equal(t, 0, orchestrator.sessions.Len())
	assert.False(t, orchestrator.timers.Pending(battle.ID, PhaseRound))
}

func TestStartBattleWithoutEngine(t *testing.T) {
	orchestrator, store, _, _ := newTestOrchestrator(t, time.Minute)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryCompetitive, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID))
	assert.ErrorIs(t, orchestrator.UpdateReadiness(ctx, "bob", battle.ID), ErrNoEngine)

	// The readiness state and timer are consumed by the failed start, so the
	// battle must not linger in WAITING.
	assert.Equal(t, StatusCanceled, store.status(battle.ID))
	assert.False(t, orchestrator.timers.Pending(battle.ID, PhaseReadiness))
}

func TestCancelBattleOnlyWaiting(t *testing.T) {
	orchestrator, store, _, _ := newTestOrchestrator(t, time.Minute)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, orchestrator.UpdateReadiness(ctx, "alice", battle.ID))
	require.NoError(t, orchestrator.UpdateReadiness(ctx, "bob", battle.ID))

	assert.ErrorIs(t, orchestrator.CancelBattle(ctx, battle.ID), ErrInvalidState)
	assert.Equal(t, StatusOngoing, store.status(battle.ID))
}

func TestFatalErrorClassification(t *testing.T) {
	err := fatalf("EndBattle", "boom %d", 1)
	assert.True(t, IsFatal(err))
	assert.False(t, IsRejection(err))

	wrapped := fmt.Errorf("context: %w", ErrAlreadyReady)
	assert.False(t, IsFatal(wrapped))
	assert.True(t, IsRejection(wrapped))
}
