package battles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberProcessMessage(t *testing.T) {
	orchestrator, store, _, _ := newTestOrchestrator(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewWorkerPool(1)
	pool.Start(ctx, orchestrator)
	t.Cleanup(pool.Stop)

	subscriber, err := NewBattleSubscriber(pool)
	require.NoError(t, err)

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, subscriber.processMessage("battle:ready:"+battle.ID, `{"username":"alice"}`))
	require.NoError(t, subscriber.processMessage("battle:ready:"+battle.ID, `{"username":"bob"}`))

	assert.Eventually(t, func() bool {
		return store.status(battle.ID) == StatusOngoing
	}, time.Second, 5*time.Millisecond)
}

func TestSubscriberProcessMessageValidation(t *testing.T) {
	pool := NewWorkerPool(1)
	subscriber, err := NewBattleSubscriber(pool)
	require.NoError(t, err)

	assert.Error(t, subscriber.processMessage("battle:ready:x", ""))
	assert.Error(t, subscriber.processMessage("battle:ready:x", "not json"))
	assert.Error(t, subscriber.processMessage("battle:ready:x", `{"text":"no sender"}`))
	assert.Error(t, subscriber.processMessage("unrelated:channel", `{"username":"alice"}`))
}

func TestNewBattleSubscriberRequiresPool(t *testing.T) {
	_, err := NewBattleSubscriber(nil)
	assert.ErrorIs(t, err, ErrNilWorkerPool)
}
