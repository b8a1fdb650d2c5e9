package battles

import "sync"

// readinessState is the two-party handshake for one WAITING battle. Flags only
// ever move false -> true, and the settled flag makes sure exactly one caller
// wins the transition out of the handshake, whether that is the second ready
// signal or the readiness deadline.
type readinessState struct {
	mu            sync.Mutex
	challenger_ok bool
	opponent_ok   bool
	settled       bool
}

// mark sets one side's flag. It returns both=true for exactly the call that
// observed the pair complete; every later call is rejected.
func (r *readinessState) mark(is_challenger bool) (both bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settled {
		return false, ErrInvalidState
	}
	if is_challenger {
		if r.challenger_ok {
			return false, ErrAlreadyReady
		}
		r.challenger_ok = true
	} else {
		if r.opponent_ok {
			return false, ErrAlreadyReady
		}
		r.opponent_ok = true
	}

	if r.challenger_ok && r.opponent_ok {
		r.settled = true
		return true, nil
	}
	return false, nil
}

// expire claims the state for cancellation. It loses against a mark that
// already completed the pair.
func (r *readinessState) expire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settled {
		return false
	}
	r.settled = true
	return true
}

type readinessRegistry struct {
	mu     sync.RWMutex
	states map[string]*readinessState
}

func newReadinessRegistry() *readinessRegistry {
	return &readinessRegistry{
		states: make(map[string]*readinessState),
	}
}

func (reg *readinessRegistry) Arm(battle_id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.states[battle_id] = &readinessState{}
}

// MarkReady records one participant's ready signal. The second participant to
// complete the pair gets both=true and the state is removed atomically, so
// concurrent callers can never both trigger the start transition.
func (reg *readinessRegistry) MarkReady(battle_id string, is_challenger bool) (both bool, err error) {
	reg.mu.RLock()
	state, ok := reg.states[battle_id]
	reg.mu.RUnlock()
	if !ok {
		return false, ErrInvalidState
	}

	both, err = state.mark(is_challenger)
	if err != nil {
		return false, err
	}
	if both {
		reg.Discard(battle_id)
	}
	return both, nil
}

// Expire claims the state for deadline cancellation. It returns false when the
// pair already completed, in which case the fired timer must be a no-op.
func (reg *readinessRegistry) Expire(battle_id string) bool {
	reg.mu.RLock()
	state, ok := reg.states[battle_id]
	reg.mu.RUnlock()
	if !ok {
		return false
	}
	if !state.expire() {
		return false
	}
	reg.Discard(battle_id)
	return true
}

func (reg *readinessRegistry) Discard(battle_id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.states, battle_id)
}

func (reg *readinessRegistry) Armed(battle_id string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.states[battle_id]
	return ok
}
