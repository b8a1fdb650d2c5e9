package battles

import (
	"log/slog"
	"sync"
	"time"
)

type TimerPhase string

const (
	PhaseReadiness TimerPhase = "readiness"
	PhaseRound     TimerPhase = "round"
)

type timerKey struct {
	battle_id string
	phase     TimerPhase
}

// TimerScheduler owns the deferred one-shot actions of the battle lifecycle:
// the readiness deadline and the round deadline. At most one action may be
// pending per (battle, phase). Cancellation of an already-firing action is
// best-effort; every scheduled action must tolerate being a no-op.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[timerKey]*time.Timer),
	}
}

// Schedule arms one deferred action. It refuses to double-schedule a phase
// whose timer is still pending.
func (s *TimerScheduler) Schedule(battle_id string, phase TimerPhase, delay time.Duration, action func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{battle_id: battle_id, phase: phase}
	if _, ok := s.timers[key]; ok {
		return ErrTimerPending
	}

	slog.Debug("Battles : scheduling timer", "battle_id", battle_id, "phase", phase, "delay", delay)
	s.timers[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		action()
	})
	return nil
}

// Cancel suppresses a pending action. It returns false when the timer already
// fired or was never scheduled.
func (s *TimerScheduler) Cancel(battle_id string, phase TimerPhase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{battle_id: battle_id, phase: phase}
	timer, ok := s.timers[key]
	if !ok {
		return false
	}
	delete(s.timers, key)
	return timer.Stop()
}

// Pending reports whether a timer is still armed for the pair.
func (s *TimerScheduler) Pending(battle_id string, phase TimerPhase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[timerKey{battle_id: battle_id, phase: phase}]
	return ok
}

// Stop cancels every pending timer. Used on shutdown.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}
