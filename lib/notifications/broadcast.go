package notifications

import (
	"backend/lib/battles"
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// BattleBroadcaster adapts the notification service to the battle lifecycle:
// each event becomes one point-to-point notification per participant.
type BattleBroadcaster struct {
	service *NotificationService
}

func NewBattleBroadcaster(service *NotificationService) *BattleBroadcaster {
	return &BattleBroadcaster{service: service}
}

func (b *BattleBroadcaster) Publish(ctx context.Context, username string, event *battles.Event) error {
	notification_type, err := notificationType(event.Type)
	if err != nil {
		return err
	}

	content := fiber.Map{
		"battle_id": event.BattleID,
		"category":  event.Category,
	}
	if event.Message != "" {
		content["message"] = event.Message
	}
	if event.Challenger != nil {
		content["challenger"] = event.Challenger
	}
	if event.Opponent != nil {
		content["opponent"] = event.Opponent
	}
	if event.Config != nil {
		content["config"] = event.Config
	}
	if event.Result != nil {
		content["result"] = event.Result
	}

	return b.service.Send(ctx, notification_type, PriorityHigh, username, content)
}

func notificationType(event_type string) (NotificationType, error) {
	switch event_type {
	case battles.EventBattleCreated:
		return TypeBattleCreated, nil
	case battles.EventBattleStarted:
		return TypeBattleStarted, nil
	case battles.EventBattleEnded:
		return TypeBattleEnded, nil
	}
	return "", fmt.Errorf("unknown battle event type %q", event_type)
}
