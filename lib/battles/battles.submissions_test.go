package battles

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionSetPair(t *testing.T) {
	set := newSubmissionSet()

	both, err := set.put("alice", "payload-a")
	require.NoError(t, err)
	assert.False(t, both)

	both, err = set.put("bob", "payload-b")
	require.NoError(t, err)
	assert.True(t, both)

	payload, ok := set.get("alice")
	assert.True(t, ok)
	assert.Equal(t, "payload-a", payload)

	_, ok = set.get("mallory")
	assert.False(t, ok)
}

func TestSubmissionSetRejectsDuplicate(t *testing.T) {
	set := newSubmissionSet()

	_, err := set.put("alice", "first")
	require.NoError(t, err)

	_, err = set.put("alice", "second")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	// The original payload is untouched.
	payload, _ := set.get("alice")
	assert.Equal(t, "first", payload)
}

func TestSubmissionSetCompletesOnce(t *testing.T) {
	for i := 0; i < 200; i++ {
		set := newSubmissionSet()

		var completions atomic.Int32
		var wg sync.WaitGroup
		for _, username := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(username string) {
				defer wg.Done()
				both, err := set.put(username, "payload")
				assert.NoError(t, err)
				if both {
					completions.Add(1)
				}
			}(username)
		}
		wg.Wait()

		assert.Equal(t, int32(1), completions.Load(), "iteration %d", i)
	}
}

func TestSubmissionRegistryEnsure(t *testing.T) {
	registry := newSubmissionRegistry()

	set := registry.Ensure("battle-1")
	assert.Same(t, set, registry.Ensure("battle-1"))

	// Concurrent first use converges on a single set.
	var wg sync.WaitGroup
	sets := make([]*submissionSet, 8)
	for i := range sets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sets[i] = registry.Ensure("battle-2")
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(sets); i++ {
		assert.Same(t, sets[0], sets[i], fmt.Sprintf("set %d diverged", i))
	}
}

func TestSubmissionRegistryDiscard(t *testing.T) {
	registry := newSubmissionRegistry()
	registry.Ensure("battle-1")

	_, ok := registry.Get("battle-1")
	require.True(t, ok)

	registry.Discard("battle-1")
	_, ok = registry.Get("battle-1")
	assert.False(t, ok)
}
