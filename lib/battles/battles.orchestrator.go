package battles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultReadinessTimeout = 30 * time.Second

	// Extra round time for typing battles to absorb submission lag.
	typingGraceSeconds = 5
)

// Orchestrator drives the battle lifecycle: WAITING -> ONGOING -> ENDED, or
// WAITING -> CANCELED when the readiness deadline elapses. It owns the
// readiness and active-session registries and is the only component that
// mutates battle status.
type Orchestrator struct {
	store     BattleStore
	users     UserDirectory
	broadcast Broadcaster
	engines   map[Category]Engine
	timers    *TimerScheduler
	sessions  *sessionRegistry
	readiness *readinessRegistry

	readiness_timeout time.Duration
}

type OrchestratorConfig struct {
	Store            BattleStore
	Users            UserDirectory
	Broadcast        Broadcaster
	Engines          []Engine
	ReadinessTimeout time.Duration
}

func NewOrchestrator(config OrchestratorConfig) (*Orchestrator, error) {
	if config.Store == nil {
		return nil, errors.New("battle store cannot be nil")
	}
	if config.Users == nil {
		return nil, errors.New("user directory cannot be nil")
	}
	if config.Broadcast == nil {
		return nil, errors.New("broadcaster cannot be nil")
	}
	if config.ReadinessTimeout <= 0 {
		config.ReadinessTimeout = DefaultReadinessTimeout
	}

	engines := make(map[Category]Engine, len(config.Engines))
	for _, engine := range config.Engines {
		engines[engine.Category()] = engine
	}

	return &Orchestrator{
		store:             config.Store,
		users:             config.Users,
		broadcast:         config.Broadcast,
		engines:           engines,
		timers:            NewTimerScheduler(),
		sessions:          newSessionRegistry(),
		readiness:         newReadinessRegistry(),
		readiness_timeout: config.ReadinessTimeout,
	}, nil
}

// Timers exposes the scheduler for shutdown.
func (o *Orchestrator) Timers() *TimerScheduler { return o.timers }

// CreateBattle persists a new WAITING battle from an accepted challenge,
// notifies both participants and arms the readiness deadline.
func (o *Orchestrator) CreateBattle(ctx context.Context, category Category, challenger_username string, opponent_username string) (*Battle, error) {
	challenger, err := o.users.MiniProfile(ctx, challenger_username)
	if err != nil {
		return nil, fmt.Errorf("challenger %q: %w", challenger_username, err)
	}
	opponent, err := o.users.MiniProfile(ctx, opponent_username)
	if err != nil {
		return nil, fmt.Errorf("opponent %q: %w", opponent_username, err)
	}

	battle := &Battle{
		ID:         uuid.New().String(),
		Category:   category,
		Challenger: challenger.Username,
		Opponent:   opponent.Username,
		Status:     StatusWaiting,
		Duration:   DefaultDuration(category),
		CreatedAt:  time.Now(),
	}

	if err := o.store.Insert(ctx, battle); err != nil {
		return nil, fmt.Errorf("failed to persist battle: %w", err)
	}

	event := &Event{
		Type:       EventBattleCreated,
		BattleID:   battle.ID,
		Category:   battle.Category,
		Message:    "CREATED",
		Challenger: challenger,
		Opponent:   opponent,
	}
	o.publish(ctx, battle, event)

	o.readiness.Arm(battle.ID)

	battle_id := battle.ID
	if err := o.timers.Schedule(battle_id, PhaseReadiness, o.readiness_timeout, func() {
		o.handleReadinessDeadline(battle_id)
	}); err != nil {
		return nil, fmt.Errorf("failed to arm readiness deadline: %w", err)
	}

	slog.Info("Battles : battle created",
		"battle_id", battle.ID,
		"category", battle.Category,
		"challenger", battle.Challenger,
		"opponent", battle.Opponent)
	return battle, nil
}

// UpdateReadiness records one participant's ready signal. The second signal to
// complete the pair cancels the readiness deadline and starts the battle;
// concurrent signals can never both trigger the start.
func (o *Orchestrator) UpdateReadiness(ctx context.Context, username string, battle_id string) error {
	battle, err := o.store.Get(ctx, battle_id)
	if err != nil {
		return err
	}
	if battle.Status != StatusWaiting {
		return fmt.Errorf("battle %s is %s: %w", battle_id, battle.Status, ErrInvalidState)
	}

	is_challenger, ok := battle.Role(username)
	if !ok {
		return fmt.Errorf("%q in battle %s: %w", username, battle_id, ErrNotAParticipant)
	}

	both, err := o.readiness.MarkReady(battle_id, is_challenger)
	if err != nil {
		return err
	}
	if !both {
		slog.Debug("Battles : readiness recorded", "battle_id", battle_id, "username", username)
		return nil
	}

	o.timers.Cancel(battle_id, PhaseReadiness)
	if err := o.StartBattle(ctx, battle_id); err != nil {
		// The readiness state and its timer are gone, so a battle that cannot
		// start would sit in WAITING forever. Cancel it instead.
		if errors.Is(err, ErrNoEngine) {
			if cancel_err := o.CancelBattle(ctx, battle_id); cancel_err != nil {
				slog.Error("Battles : cancel of unstartable battle failed", "battle_id", battle_id, "error", cancel_err)
			}
		}
		return err
	}
	return nil
}

// StartBattle launches the timed round: generates the category config,
// commits the ONGOING transition, registers the active session, arms the
// round deadline and only then flips presence and broadcasts the started
// event. The commit happens before anything a participant can react to, so a
// submission pair racing the tail of this sequence can never see its ENDED
// row overwritten. The battle must still be WAITING; anything else is a logic
// error, not a user rejection.
func (o *Orchestrator) StartBattle(ctx context.Context, battle_id string) error {
	battle, err := o.store.Get(ctx, battle_id)
	if err != nil {
		return err
	}
	if battle.Status != StatusWaiting {
		return fatalf("StartBattle", "expected %s but battle %s is %s", StatusWaiting, battle_id, battle.Status)
	}

	engine, ok := o.engines[battle.Category]
	if !ok {
		return fmt.Errorf("category %s: %w", battle.Category, ErrNoEngine)
	}

	config, err := engine.GenerateConfig(ctx, battle)
	if err != nil {
		return fmt.Errorf("failed to generate %s config: %w", battle.Category, err)
	}

	config_json, err := MarshalConfig(config)
	if err != nil {
		return fatalf("StartBattle", "config serialization for battle %s: %w", battle_id, err)
	}
	battle.ConfigJSON = config_json

	battle.Status = StatusOngoing
	battle.StartedAt = time.Now()
	if err := o.store.Update(ctx, battle); err != nil {
		return fatalf("StartBattle", "failed to persist ongoing battle %s: %w", battle_id, err)
	}

	session := &ActiveSession{Battle: battle}
	o.sessions.Put(battle_id, session)

	round := time.Duration(battle.Duration) * time.Second
	if battle.Category == CategoryTyping {
		round += typingGraceSeconds * time.Second
	}
	if err := o.timers.Schedule(battle_id, PhaseRound, round, func() {
		if err := o.EndBattle(context.Background(), battle_id); err != nil {
			slog.Error("Battles : deadline end failed", "battle_id", battle_id, "error", err)
		}
	}); err != nil {
		o.sessions.Remove(battle_id)
		return fatalf("StartBattle", "failed to arm round deadline for battle %s: %w", battle_id, err)
	}

	o.setStatus(ctx, battle.Challenger, UserStatusInBattle)
	o.setStatus(ctx, battle.Opponent, UserStatusInBattle)

	event := &Event{
		Type:     EventBattleStarted,
		BattleID: battle.ID,
		Category: battle.Category,
		Config:   config,
	}
	o.publish(ctx, battle, event)

	slog.Info("Battles : battle started", "battle_id", battle_id, "category", battle.Category, "duration", battle.Duration)
	return nil
}

// SubmitPayload stores one participant's submission. When this submission
// completes the pair the round timer is cancelled and the battle ends early,
// for every category.
func (o *Orchestrator) SubmitPayload(ctx context.Context, username string, battle_id string, payload string) error {
	session, ok := o.sessions.Get(battle_id)
	if !ok {
		return fmt.Errorf("battle %s is not ongoing: %w", battle_id, ErrInvalidState)
	}
	battle := session.Battle

	if _, ok := battle.Role(username); !ok {
		return fmt.Errorf("%q in battle %s: %w", username, battle_id, ErrNotAParticipant)
	}

	engine, ok := o.engines[battle.Category]
	if !ok {
		return fmt.Errorf("category %s: %w", battle.Category, ErrNoEngine)
	}

	both, err := engine.RecordSubmission(battle_id, username, payload)
	if err != nil {
		return err
	}
	if !both {
		slog.Debug("Battles : submission recorded", "battle_id", battle_id, "username", username)
		return nil
	}

	o.timers.Cancel(battle_id, PhaseRound)
	return o.EndBattle(ctx, battle_id)
}

// EndBattle settles an ONGOING battle: computes the result, persists the ENDED
// row, notifies both participants and tears the session down. A battle absent
// from the active-session registry is a safe no-op, which is what makes the
// early-end path and the deadline path idempotent against each other.
func (o *Orchestrator) EndBattle(ctx context.Context, battle_id string) error {
	session, ok := o.sessions.Get(battle_id)
	if !ok {
		slog.Debug("Battles : end for inactive battle ignored", "battle_id", battle_id)
		return nil
	}
	if !session.claim() {
		slog.Debug("Battles : concurrent end ignored", "battle_id", battle_id)
		return nil
	}

	battle := session.Battle
	engine, ok := o.engines[battle.Category]
	if !ok {
		return fatalf("EndBattle", "no engine for ongoing battle %s (%s)", battle_id, battle.Category)
	}

	o.setStatus(ctx, battle.Challenger, UserStatusOnline)
	o.setStatus(ctx, battle.Opponent, UserStatusOnline)

	result, err := engine.ComputeResult(ctx, battle)
	if err != nil {
		return fatalf("EndBattle", "failed to compute result for battle %s: %w", battle_id, err)
	}

	result_json, err := marshalResult(result)
	if err != nil {
		return fatalf("EndBattle", "result serialization for battle %s: %w", battle_id, err)
	}

	battle.ResultJSON = result_json
	battle.WinnerUsername = result.WinnerUsername
	battle.Status = StatusEnded
	battle.UpdatedAt = time.Now()

	// Persist and teardown form one logical commit. A failure in either half
	// leaves the system inconsistent and must surface as fatal.
	if err := o.store.Update(ctx, battle); err != nil {
		return fatalf("EndBattle", "failed to persist ended battle %s: %w", battle_id, err)
	}

	event := &Event{
		Type:     EventBattleEnded,
		BattleID: battle.ID,
		Category: battle.Category,
		Result:   result,
	}
	o.publish(ctx, battle, event)

	if !o.sessions.Remove(battle_id) {
		return fatalf("EndBattle", "active session for battle %s vanished during teardown", battle_id)
	}
	engine.Discard(battle_id)

	slog.Info("Battles : battle ended",
		"battle_id", battle_id,
		"winner", result.WinnerUsername,
		"winner_score", result.WinnerScore)
	return nil
}

// CancelBattle marks a battle that never left WAITING as CANCELED and discards
// its readiness state. No result is computed and no presence change happens.
func (o *Orchestrator) CancelBattle(ctx context.Context, battle_id string) error {
	battle, err := o.store.Get(ctx, battle_id)
	if err != nil {
		return err
	}
	if battle.Status != StatusWaiting {
		return fmt.Errorf("cannot cancel battle %s in %s: %w", battle_id, battle.Status, ErrInvalidState)
	}

	battle.Status = StatusCanceled
	battle.UpdatedAt = time.Now()
	if err := o.store.Update(ctx, battle); err != nil {
		return fmt.Errorf("failed to persist canceled battle: %w", err)
	}

	o.readiness.Discard(battle_id)
	slog.Info("Battles : battle canceled", "battle_id", battle_id)
	return nil
}

// handleReadinessDeadline fires when the readiness window closes. Claiming the
// readiness state decides the race against a simultaneous second ready signal:
// whoever claims first drives the transition, the other path is a no-op.
func (o *Orchestrator) handleReadinessDeadline(battle_id string) {
	if !o.readiness.Expire(battle_id) {
		return
	}
	if err := o.CancelBattle(context.Background(), battle_id); err != nil {
		slog.Error("Battles : deadline cancellation failed", "battle_id", battle_id, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, battle *Battle, event *Event) {
	for _, username := range []string{battle.Challenger, battle.Opponent} {
		if err := o.broadcast.Publish(ctx, username, event); err != nil {
			slog.Warn("Battles : failed to publish event",
				"battle_id", battle.ID,
				"event", event.Type,
				"username", username,
				"error", err)
		}
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, username string, status UserStatus) {
	if err := o.users.SetStatus(ctx, username, status); err != nil {
		slog.Warn("Battles : failed to update user status", "username", username, "status", status, "error", err)
	}
}
