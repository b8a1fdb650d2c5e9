package routes

import (
	"backend/lib/battles"
	"backend/lib/notifications"
	"backend/lib/server/middleware"
	"backend/lib/services"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

type BattleChallengeData struct {
	Opponent string `json:"opponent"`
	Category string `json:"category"`
}

func BattleChallengeHandler(data BattleChallengeData, ctx *fiber.Ctx, cache *services.Cache, users *services.UserDirectory, notify *notifications.NotificationService) error {
	username, err := middleware.GetUsername(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown user",
		})
	}
	if data.Opponent == "" || data.Opponent == username {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid opponent",
		})
	}

	category := battles.Category(data.Category)
	switch category {
	case battles.CategoryTyping, battles.CategoryCss, battles.CategoryCompetitive:
	default:
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown battle category",
		})
	}

	query_ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := users.MiniProfile(query_ctx, data.Opponent); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "cannot find this user",
		})
	}

	err = cache.CreatePendingChallenge(ctx.Context(), username, data.Opponent, category)
	if err != nil {
		if errors.Is(err, battles.ErrChallengePending) {
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "a challenge is already pending against this opponent",
			})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "cannot create the challenge",
		})
	}

	// Notify opponent
	notify.Send(
		ctx.Context(),
		notifications.TypeAlert,
		notifications.PriorityHigh,
		data.Opponent,
		fiber.Map{
			"msg":        fmt.Sprintf("%s has challenged you to a %s battle !", username, category),
			"challenger": username,
			"category":   category,
			"expired_in": services.ChallengeTTL.Seconds(),
		},
	)
	return ctx.SendStatus(fiber.StatusAccepted)
}

type BattleChallengeResponseData struct {
	Challenger string `json:"challenger"`
	Response   bool   `json:"response"`
}

func BattleChallengeResponseHandler(data BattleChallengeResponseData, ctx *fiber.Ctx, cache *services.Cache, orchestrator *battles.Orchestrator, notify *notifications.NotificationService) error {
	username, err := middleware.GetUsername(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown user",
		})
	}

	if !data.Response {
		// The challenge is declined
		if err := cache.DeletePendingChallenge(ctx.Context(), data.Challenger, username); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "cannot delete the pending challenge",
			})
		}
		notify.Send(
			ctx.Context(),
			notifications.TypeAlert,
			notifications.PriorityLow,
			data.Challenger,
			fiber.Map{
				"msg": fmt.Sprintf("%s has declined your challenge", username),
			},
		)
		return ctx.SendStatus(fiber.StatusAccepted)
	}

	// The challenge is accepted
	category, err := cache.TakePendingChallenge(ctx.Context(), data.Challenger, username)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no pending challenge from this user",
		})
	}

	battle, err := orchestrator.CreateBattle(ctx.Context(), category, data.Challenger, username)
	if err != nil {
		return battleErrorResponse(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(battle)
}

func BattleReadyHandler(ctx *fiber.Ctx, orchestrator *battles.Orchestrator) error {
	username, err := middleware.GetUsername(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown user",
		})
	}
	battle_id := ctx.Params("id")

	if err := orchestrator.UpdateReadiness(ctx.Context(), username, battle_id); err != nil {
		return battleErrorResponse(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusAccepted)
}

type BattleSubmitData struct {
	Text string `json:"text"`
}

func BattleSubmitHandler(data BattleSubmitData, ctx *fiber.Ctx, orchestrator *battles.Orchestrator) error {
	username, err := middleware.GetUsername(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown user",
		})
	}
	battle_id := ctx.Params("id")

	if err := orchestrator.SubmitPayload(ctx.Context(), username, battle_id, data.Text); err != nil {
		return battleErrorResponse(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusAccepted)
}

func BattleHistoryHandler(ctx *fiber.Ctx, store *services.BattleStore) error {
	username, err := middleware.GetUsername(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown user",
		})
	}
	limit := ctx.QueryInt("limit")

	query_ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	history, err := store.History(query_ctx, username, limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "cannot retrieve battle history",
		})
	}

	return ctx.JSON(fiber.Map{
		"battles": history,
	})
}

// battleErrorResponse maps battle lifecycle errors to HTTP statuses.
func battleErrorResponse(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, battles.ErrBattleNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "battle not found",
		})
	case errors.Is(err, battles.ErrUserNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	case errors.Is(err, battles.ErrNotAParticipant):
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not a participant of this battle",
		})
	case errors.Is(err, battles.ErrAlreadyReady):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "readiness already confirmed",
		})
	case errors.Is(err, battles.ErrAlreadySubmitted):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "payload already submitted",
		})
	case errors.Is(err, battles.ErrInvalidState):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "battle is not in a valid state for this action",
		})
	case errors.Is(err, battles.ErrNoEngine):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "this battle category cannot be played yet",
		})
	default:
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "battle operation failed",
		})
	}
}
