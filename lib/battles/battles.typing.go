package battles

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const typingPassageWords = 150

// TypingEngine scores typing battles: both participants type the same target
// passage and the higher words-per-minute wins. A word counts when it matches
// the target word at the same position exactly.
type TypingEngine struct {
	mu          sync.Mutex
	rng         *rand.Rand
	configs     map[string]TypingConfig
	submissions *submissionRegistry
}

func NewTypingEngine() *TypingEngine {
	return &TypingEngine{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		configs:     make(map[string]TypingConfig),
		submissions: newSubmissionRegistry(),
	}
}

func (e *TypingEngine) Category() Category { return CategoryTyping }

func (e *TypingEngine) GenerateConfig(ctx context.Context, battle *Battle) (Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	config := TypingConfig{
		Text:     randomPassage(e.rng, typingPassageWords),
		Duration: battle.Duration,
	}
	e.configs[battle.ID] = config
	return config, nil
}

func (e *TypingEngine) RecordSubmission(battle_id string, username string, payload string) (bool, error) {
	return e.submissions.Ensure(battle_id).put(username, payload)
}

func (e *TypingEngine) ComputeResult(ctx context.Context, battle *Battle) (*Result, error) {
	e.mu.Lock()
	config, ok := e.configs[battle.ID]
	e.mu.Unlock()
	if !ok {
		// The config was persisted on the battle row at start, recover it
		// from there.
		recovered, err := UnmarshalConfig(battle.ConfigJSON)
		if err != nil {
			return nil, fmt.Errorf("no typing config for battle %s: %w", battle.ID, err)
		}
		typing_config, ok := recovered.(TypingConfig)
		if !ok {
			return nil, fmt.Errorf("battle %s carries a non-typing config", battle.ID)
		}
		config = typing_config
	}

	challenger_text, challenger_submitted := "", false
	opponent_text, opponent_submitted := "", false
	if set, ok := e.submissions.Get(battle.ID); ok {
		challenger_text, challenger_submitted = set.get(battle.Challenger)
		opponent_text, opponent_submitted = set.get(battle.Opponent)
	}

	challenger_wpm := wordsPerMinute(challenger_text, config.Text, config.Duration)
	opponent_wpm := wordsPerMinute(opponent_text, config.Text, config.Duration)

	challenger_wins := challengerWins(challenger_wpm, opponent_wpm, challenger_submitted, opponent_submitted)

	result := &Result{}
	if challenger_wins {
		result.WinnerUsername = battle.Challenger
		result.LoserUsername = battle.Opponent
		result.WinnerScore = fmt.Sprintf("%d WPM", int(challenger_wpm))
		result.LoserScore = fmt.Sprintf("%d WPM", int(opponent_wpm))
	} else {
		result.WinnerUsername = battle.Opponent
		result.LoserUsername = battle.Challenger
		result.WinnerScore = fmt.Sprintf("%d WPM", int(opponent_wpm))
		result.LoserScore = fmt.Sprintf("%d WPM", int(challenger_wpm))
	}
	return result, nil
}

func (e *TypingEngine) Discard(battle_id string) {
	e.mu.Lock()
	delete(e.configs, battle_id)
	e.mu.Unlock()
	e.submissions.Discard(battle_id)
}

// challengerWins applies the settlement policy shared by every category: a
// sole submitter wins outright, otherwise higher score wins with ties going to
// the challenger. A 0-vs-0 round therefore also resolves to the challenger.
func challengerWins(challenger_score float64, opponent_score float64, challenger_submitted bool, opponent_submitted bool) bool {
	switch {
	case challenger_submitted && !opponent_submitted:
		return true
	case !challenger_submitted && opponent_submitted:
		return false
	default:
		return challenger_score >= opponent_score
	}
}

// wordsPerMinute counts position-wise exact word matches against the target
// passage and scales by the round duration.
func wordsPerMinute(typed_text string, original_text string, duration_seconds int) float64 {
	if duration_seconds <= 0 {
		return 0
	}

	typed_words := strings.Fields(strings.TrimSpace(typed_text))
	original_words := strings.Fields(strings.TrimSpace(original_text))

	total := len(typed_words)
	if len(original_words) < total {
		total = len(original_words)
	}

	correct := 0
	for i := 0; i < total; i++ {
		if typed_words[i] == original_words[i] {
			correct++
		}
	}

	minutes := float64(duration_seconds) / 60.0
	return float64(correct) / minutes
}
