package llm

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuggestionCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := newSuggestionCache(5 * time.Minute)
		defer cache.Close()

		// Test empty cache
		_, found := cache.get("non-existent")
		assert.False(t, found)

		suggestion := Suggestion{CategoryID: "Entertainment", Confidence: 0.95}
		cache.set("NETFLIX COM", suggestion)

		retrieved, found := cache.get("NETFLIX COM")
		assert.True(t, found)
		assert.Equal(t, suggestion, retrieved)
		assert.Equal(t, 1, cache.size())
	})

	t.Run("expiration", func(t *testing.T) {
		// Use a very short TTL for testing
		cache := newSuggestionCache(50 * time.Millisecond)
		defer cache.Close()

		cache.set("UBER EATS", Suggestion{CategoryID: "Dining", Confidence: 0.85})

		// Should be found immediately
		_, found := cache.get("UBER EATS")
		assert.True(t, found)

		// Wait for expiration
		time.Sleep(100 * time.Millisecond)

		_, found = cache.get("UBER EATS")
		assert.False(t, found)
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := newSuggestionCache(5 * time.Minute)
		defer cache.Close()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("key-%d", i%10)
				cache.set(key, Suggestion{CategoryID: "Fees"})
				_, _ = cache.get(key)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 10, cache.size())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		cache := newSuggestionCache(time.Minute)
		cache.Close()
		assert.NotPanics(t, cache.Close)
	})
}
