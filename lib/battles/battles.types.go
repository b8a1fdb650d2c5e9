package battles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Category string

const (
	CategoryTyping      Category = "TB"
	CategoryCss         Category = "CSS"
	CategoryCompetitive Category = "CF"
)

type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusOngoing  Status = "ONGOING"
	StatusEnded    Status = "ENDED"
	StatusCanceled Status = "CANCELED"
)

// DefaultDuration returns the round length in seconds for a category.
func DefaultDuration(category Category) int {
	switch category {
	case CategoryTyping:
		return 30
	case CategoryCss:
		return 30
	case CategoryCompetitive:
		return 3600
	default:
		return 30
	}
}

// Battle is the durable record of a single two-participant round. The row in
// Postgres is the source of truth for Status; everything else in this package
// is ephemeral and keyed by the battle id.
type Battle struct {
	ID             string    `json:"battle_id"`
	Category       Category  `json:"category"`
	Challenger     string    `json:"challenger"`
	Opponent       string    `json:"opponent"`
	Status         Status    `json:"status"`
	Duration       int       `json:"duration"`
	CreatedAt      time.Time `json:"created_at"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
	ConfigJSON     string    `json:"config_json,omitempty"`
	ResultJSON     string    `json:"result_json,omitempty"`
	WinnerUsername string    `json:"winner_username,omitempty"`
}

// Role tells which side of a battle a username is on.
func (b *Battle) Role(username string) (is_challenger bool, ok bool) {
	switch username {
	case b.Challenger:
		return true, true
	case b.Opponent:
		return false, true
	}
	return false, false
}

// Config is the category-specific round parameter set, generated exactly once
// when the round starts and shown to both participants.
type Config interface {
	BattleCategory() Category
	RoundDuration() int
}

type TypingConfig struct {
	Text     string `json:"text"`
	Duration int    `json:"duration"`
}

func (c TypingConfig) BattleCategory() Category { return CategoryTyping }
func (c TypingConfig) RoundDuration() int       { return c.Duration }

type CssConfig struct {
	ImageURL string   `json:"image_url"`
	Duration int      `json:"duration"`
	Colors   []string `json:"colors"`
}

func (c CssConfig) BattleCategory() Category { return CategoryCss }
func (c CssConfig) RoundDuration() int       { return c.Duration }

type configEnvelope struct {
	Category Category        `json:"category"`
	Config   json.RawMessage `json:"config"`
}

// MarshalConfig serializes a config with its category discriminant so it can
// round-trip through the battle row and the start event.
func MarshalConfig(config Config) (string, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	envelope, err := json.Marshal(configEnvelope{Category: config.BattleCategory(), Config: raw})
	if err != nil {
		return "", fmt.Errorf("failed to marshal config envelope: %w", err)
	}
	return string(envelope), nil
}

// UnmarshalConfig restores the concrete config variant from its envelope.
func UnmarshalConfig(data string) (Config, error) {
	var envelope configEnvelope
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config envelope: %w", err)
	}
	switch envelope.Category {
	case CategoryTyping:
		var config TypingConfig
		if err := json.Unmarshal(envelope.Config, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal typing config: %w", err)
		}
		return config, nil
	case CategoryCss:
		var config CssConfig
		if err := json.Unmarshal(envelope.Config, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal css config: %w", err)
		}
		return config, nil
	default:
		return nil, fmt.Errorf("unknown config category %q", envelope.Category)
	}
}

// Result is the scored outcome of an ended battle. Scores carry their
// category-specific unit label ("12 WPM", "87.31 Points").
type Result struct {
	WinnerUsername string `json:"winner_username"`
	LoserUsername  string `json:"loser_username"`
	WinnerScore    string `json:"winner_score"`
	LoserScore     string `json:"loser_score"`
}

func marshalResult(result *Result) (string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(raw), nil
}

// UnmarshalResult restores a serialized result blob.
func UnmarshalResult(data string) (*Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// MiniProfile is the participant summary sent with the created event.
type MiniProfile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
}

type UserStatus string

const (
	UserStatusOnline   UserStatus = "ONLINE"
	UserStatusInBattle UserStatus = "IN_BATTLE"
)

// Event is the lifecycle payload pushed to each participant.
type Event struct {
	Type       string       `json:"type"`
	BattleID   string       `json:"battle_id"`
	Category   Category     `json:"category"`
	Message    string       `json:"message,omitempty"`
	Challenger *MiniProfile `json:"challenger,omitempty"`
	Opponent   *MiniProfile `json:"opponent,omitempty"`
	Config     Config       `json:"config,omitempty"`
	Result     *Result      `json:"result,omitempty"`
}

const (
	EventBattleCreated = "battle.created"
	EventBattleStarted = "battle.started"
	EventBattleEnded   = "battle.ended"
)

// BattleStore is the durable persistence collaborator, keyed by battle id.
type BattleStore interface {
	Insert(ctx context.Context, battle *Battle) error
	Update(ctx context.Context, battle *Battle) error
	Get(ctx context.Context, battle_id string) (*Battle, error)
}

// UserDirectory resolves usernames and tracks presence.
type UserDirectory interface {
	MiniProfile(ctx context.Context, username string) (*MiniProfile, error)
	SetStatus(ctx context.Context, username string, status UserStatus) error
}

// Broadcaster delivers a lifecycle event to a single named user, at-most-once.
type Broadcaster interface {
	Publish(ctx context.Context, username string, event *Event) error
}

// Engine is the capability set every battle category implements. Submissions
// and generated configs live inside the engine until the round is settled.
type Engine interface {
	Category() Category
	GenerateConfig(ctx context.Context, battle *Battle) (Config, error)
	// RecordSubmission stores a participant's payload and reports whether this
	// call completed the pair. At most one call per battle returns true.
	RecordSubmission(battle_id string, username string, payload string) (bool, error)
	ComputeResult(ctx context.Context, battle *Battle) (*Result, error)
	// Discard drops any per-battle state still held by the engine.
	Discard(battle_id string)
}
