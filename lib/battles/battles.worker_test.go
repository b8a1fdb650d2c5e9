package battles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerProcessDispatch(t *testing.T) {
	orchestrator, store, _, _ := newTestOrchestrator(t, time.Minute)
	worker := NewBattleWorker(orchestrator)
	ctx := context.Background()

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, worker.Process(ctx, &InboundMessage{
		Kind:     InboundReady,
		BattleID: battle.ID,
		Username: "alice",
	}))
	require.NoError(t, worker.Process(ctx, &InboundMessage{
		Kind:     InboundReady,
		BattleID: battle.ID,
		Username: "bob",
	}))
	assert.Equal(t, StatusOngoing, store.status(battle.ID))

	require.NoError(t, worker.Process(ctx, &InboundMessage{
		Kind:     InboundSubmit,
		BattleID: battle.ID,
		Username: "alice",
		Text:     "the cat",
	}))
	require.NoError(t, worker.Process(ctx, &InboundMessage{
		Kind:     InboundSubmit,
		BattleID: battle.ID,
		Username: "bob",
		Text:     "the dog",
	}))
	assert.Equal(t, StatusEnded, store.status(battle.ID))
}

func TestWorkerProcessRejectsBadInput(t *testing.T) {
	orchestrator, _, _, _ := newTestOrchestrator(t, time.Minute)
	worker := NewBattleWorker(orchestrator)
	ctx := context.Background()

	assert.ErrorIs(t, worker.Process(ctx, nil), ErrNilMessage)
	assert.Error(t, worker.Process(ctx, &InboundMessage{Kind: "bogus"}))

	nil_worker := &BattleWorker{}
	assert.ErrorIs(t, nil_worker.Process(ctx, &InboundMessage{Kind: InboundReady}), ErrNilOrchestrator)
}

func TestWorkerPoolRequiresStart(t *testing.T) {
	pool := NewWorkerPool(2)

	err := pool.Submit(&InboundMessage{Kind: InboundReady, BattleID: "battle-1", Username: "alice"})
	assert.ErrorIs(t, err, ErrPoolNotStarted)

	assert.ErrorIs(t, pool.Submit(nil), ErrNilMessage)
}

func TestWorkerPoolProcessesMessages(t *testing.T) {
	orchestrator, store, _, _ := newTestOrchestrator(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewWorkerPool(2)
	pool.Start(ctx, orchestrator)
	t.Cleanup(pool.Stop)

	battle, err := orchestrator.CreateBattle(ctx, CategoryTyping, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, pool.Submit(&InboundMessage{Kind: InboundReady, BattleID: battle.ID, Username: "alice"}))
	require.NoError(t, pool.Submit(&InboundMessage{Kind: InboundReady, BattleID: battle.ID, Username: "bob"}))

	assert.Eventually(t, func() bool {
		return store.status(battle.ID) == StatusOngoing
	}, time.Second, 5*time.Millisecond)
}
