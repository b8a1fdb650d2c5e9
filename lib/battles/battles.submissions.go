package battles

import "sync"

// submissionSet collects one payload per participant for a single battle. The
// completed flag resolves the both-submitted race: exactly one put observes
// the pair complete, no matter how the two submissions interleave.
type submissionSet struct {
	mu        sync.Mutex
	entries   map[string]string
	completed bool
}

func newSubmissionSet() *submissionSet {
	return &submissionSet{
		entries: make(map[string]string),
	}
}

func (set *submissionSet) put(username string, payload string) (both bool, err error) {
	set.mu.Lock()
	defer set.mu.Unlock()

	if _, ok := set.entries[username]; ok {
		return false, ErrAlreadySubmitted
	}
	set.entries[username] = payload

	if len(set.entries) == 2 && !set.completed {
		set.completed = true
		return true, nil
	}
	return false, nil
}

func (set *submissionSet) get(username string) (string, bool) {
	set.mu.Lock()
	defer set.mu.Unlock()
	payload, ok := set.entries[username]
	return payload, ok
}

// submissionRegistry keys submission sets by battle id.
type submissionRegistry struct {
	mu   sync.RWMutex
	sets map[string]*submissionSet
}

func newSubmissionRegistry() *submissionRegistry {
	return &submissionRegistry{
		sets: make(map[string]*submissionSet),
	}
}

// Ensure returns the set for a battle, creating it on first use.
func (reg *submissionRegistry) Ensure(battle_id string) *submissionSet {
	reg.mu.RLock()
	set, ok := reg.sets[battle_id]
	reg.mu.RUnlock()
	if ok {
		return set
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if set, ok := reg.sets[battle_id]; ok {
		return set
	}
	set = newSubmissionSet()
	reg.sets[battle_id] = set
	return set
}

func (reg *submissionRegistry) Get(battle_id string) (*submissionSet, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	set, ok := reg.sets[battle_id]
	return set, ok
}

func (reg *submissionRegistry) Discard(battle_id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.sets, battle_id)
}
