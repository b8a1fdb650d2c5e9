package battles

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSupervisorStarted = errors.New("supervisor is already started")
)

// BattleSupervisor wires the transport subscriber and the worker pool around
// one orchestrator and supervises their lifecycle.
type BattleSupervisor struct {
	orchestrator *Orchestrator
	subscriber   *BattleSubscriber
	worker_pool  *WorkerPool
	is_running   bool
	mu           sync.RWMutex
}

// NewBattleSupervisor creates a new supervisor
func NewBattleSupervisor(orchestrator *Orchestrator, worker_size int) (*BattleSupervisor, error) {
	if orchestrator == nil {
		return nil, ErrNilOrchestrator
	}
	if worker_size <= 0 {
		return nil, errors.New("worker size must be positive")
	}

	worker_pool := NewWorkerPool(worker_size)
	subscriber, err := NewBattleSubscriber(worker_pool)
	if err != nil {
		return nil, err
	}

	return &BattleSupervisor{
		orchestrator: orchestrator,
		subscriber:   subscriber,
		worker_pool:  worker_pool,
		is_running:   false,
	}, nil
}

// Orchestrator exposes the supervised orchestrator to the HTTP layer.
func (s *BattleSupervisor) Orchestrator() *Orchestrator {
	return s.orchestrator
}

// Start begins supervision of the subscriber and the worker pool
func (s *BattleSupervisor) Start(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return ErrNilRedis
	}
	s.mu.Lock()
	if s.is_running {
		s.mu.Unlock()
		return ErrSupervisorStarted
	}
	s.mu.Unlock()

	s.worker_pool.Start(ctx, s.orchestrator)
	if err := s.subscriber.Subscribe(ctx, client); err != nil {
		s.worker_pool.Stop()
		return err
	}

	s.mu.Lock()
	s.is_running = true
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := s.Stop(context.Background()); err != nil {
			slog.Error("Battles : supervisor shutdown failed", "error", err)
		}
	}()

	slog.Info("Battles : supervisor started")
	return nil
}

// Stop gracefully shuts down all components
func (s *BattleSupervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.is_running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.subscriber.UnSubscribe(ctx)
	if err != nil {
		slog.Error("Battles : subscriber shutdown failed", "error", err)
	}
	s.worker_pool.Stop()
	s.orchestrator.Timers().Stop()

	s.mu.Lock()
	s.is_running = false
	s.mu.Unlock()

	return err
}
