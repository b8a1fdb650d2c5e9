package battles

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrPoolNotStarted = errors.New("worker pool not started")
	ErrNilMessage     = errors.New("cannot submit nil message")
)

// WorkerPool fans inbound transport messages out to a fixed set of workers.
// Per-battle consistency does not depend on which worker picks a message up;
// the orchestrator's per-battle state handles interleaving.
type WorkerPool struct {
	workers      []*BattleWorker
	message_chan chan *InboundMessage
	worker_size  int
	started      bool
	mu           sync.RWMutex
}

// NewWorkerPool creates a new pool with the specified number of workers
func NewWorkerPool(worker_size int) *WorkerPool {
	if worker_size <= 0 {
		worker_size = 1
	}

	return &WorkerPool{
		workers:      make([]*BattleWorker, worker_size),
		message_chan: make(chan *InboundMessage, worker_size*2),
		worker_size:  worker_size,
		started:      false,
	}
}

// Submit queues one inbound message for processing
func (p *WorkerPool) Submit(message *InboundMessage) error {
	if message == nil {
		return ErrNilMessage
	}

	slog.Debug("Battles : queueing inbound message", "battle_id", message.BattleID, "kind", message.Kind)
	p.mu.RLock()
	if !p.started {
		p.mu.RUnlock()
		return ErrPoolNotStarted
	}
	p.mu.RUnlock()

	select {
	case p.message_chan <- message:
		return nil
	default:
		return errors.New("worker pool queue is full")
	}
}

// Start initializes and starts all workers in the pool
func (p *WorkerPool) Start(ctx context.Context, orchestrator *Orchestrator) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	slog.Debug("Battles : starting the worker pool", "worker_size", p.worker_size)
	for i := 0; i < p.worker_size; i++ {
		worker := NewBattleWorker(orchestrator)
		p.workers[i] = worker
		go func(w *BattleWorker) {
			for {
				select {
				case message, ok := <-p.message_chan:
					if !ok {
						return
					}
					if err := w.Process(ctx, message); err != nil {
						w.HandleError(message, err)
					}
				case <-ctx.Done():
					return
				}
			}
		}(worker)
	}

	p.started = true
}

// Stop gracefully shuts down all workers
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	slog.Debug("Battles : stopping the worker pool")
	close(p.message_chan)
	p.started = false
}
