package services

import (
	"backend/lib/battles"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ChallengeTTL = 10 * time.Minute

func challengeKey(challenger string, opponent string) string {
	return fmt.Sprintf("battle:challenge:%s&%s", challenger, opponent)
}

// CreatePendingChallenge records an open challenge between a pair of users.
// Only one may be pending per ordered pair; a second attempt is a conflict.
func (cache *Cache) CreatePendingChallenge(ctx context.Context, challenger string, opponent string, category battles.Category) error {
	ok, err := cache.Db.SetNX(ctx, challengeKey(challenger, opponent), string(category), ChallengeTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to record pending challenge: %w", err)
	}
	if !ok {
		return battles.ErrChallengePending
	}
	return nil
}

// TakePendingChallenge consumes an open challenge, returning its category.
// Used when the opponent accepts; the challenge key disappears atomically.
func (cache *Cache) TakePendingChallenge(ctx context.Context, challenger string, opponent string) (battles.Category, error) {
	category, err := cache.Db.GetDel(ctx, challengeKey(challenger, opponent)).Result()
	if err == redis.Nil {
		return "", battles.ErrBattleNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume pending challenge: %w", err)
	}
	return battles.Category(category), nil
}

// DeletePendingChallenge drops an open challenge, e.g. on decline.
func (cache *Cache) DeletePendingChallenge(ctx context.Context, challenger string, opponent string) error {
	if err := cache.Db.Del(ctx, challengeKey(challenger, opponent)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending challenge: %w", err)
	}
	return nil
}
