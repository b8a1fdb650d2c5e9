package battles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrNilOrchestrator = errors.New("orchestrator cannot be nil")

// BattleWorker applies one inbound transport message to the orchestrator.
type BattleWorker struct {
	orchestrator *Orchestrator
}

func NewBattleWorker(orchestrator *Orchestrator) *BattleWorker {
	return &BattleWorker{
		orchestrator: orchestrator,
	}
}

// Process dispatches a single inbound message
func (w *BattleWorker) Process(ctx context.Context, message *InboundMessage) error {
	if w.orchestrator == nil {
		return ErrNilOrchestrator
	}
	if message == nil {
		return ErrNilMessage
	}

	switch message.Kind {
	case InboundReady:
		return w.orchestrator.UpdateReadiness(ctx, message.Username, message.BattleID)
	case InboundSubmit:
		return w.orchestrator.SubmitPayload(ctx, message.Username, message.BattleID, message.Text)
	default:
		return fmt.Errorf("unknown inbound message kind %q", message.Kind)
	}
}

// HandleError separates user-caused rejections from internal inconsistencies.
// Rejections over the fire-and-forget transport can only be logged; fatal
// conditions are surfaced loudly for operators.
func (w *BattleWorker) HandleError(message *InboundMessage, err error) {
	if err == nil {
		return
	}

	if IsFatal(err) {
		slog.Error("Battles : fatal inconsistency while processing message",
			"battle_id", message.BattleID,
			"kind", message.Kind,
			"error", err)
		return
	}
	if IsRejection(err) {
		slog.Debug("Battles : inbound message rejected",
			"battle_id", message.BattleID,
			"kind", message.Kind,
			"username", message.Username,
			"error", err)
		return
	}
	slog.Error("Battles : unexpected error while processing message",
		"battle_id", message.BattleID,
		"kind", message.Kind,
		"error", err)
}
