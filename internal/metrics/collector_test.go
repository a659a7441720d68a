package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpStoreQuery, 10*time.Millisecond)
	c.RecordTiming(OpStoreQuery, 30*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.StoreQuery)
	assert.Equal(t, int64(2), snap.StoreQuery.Count)
	assert.Equal(t, int64(40), snap.StoreQuery.TotalTimeMs)
	assert.Equal(t, int64(10), snap.StoreQuery.MinTimeMs)
	assert.Equal(t, int64(30), snap.StoreQuery.MaxTimeMs)
	assert.Nil(t, snap.StoreQuery.TotalInputTokens)
	assert.Nil(t, snap.StoreCreate)
}

func TestCollector_RecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMClassify, 5*time.Millisecond, 100, 2)
	c.RecordLLMUsage(OpLLMClassify, 7*time.Millisecond, 120, 3)

	snap := c.Snapshot()
	require.NotNil(t, snap.LLMClassify)
	require.NotNil(t, snap.LLMClassify.TotalInputTokens)
	assert.Equal(t, int64(220), *snap.LLMClassify.TotalInputTokens)
	assert.Equal(t, int64(100), *snap.LLMClassify.MinInputTokens)
	assert.Equal(t, int64(3), *snap.LLMClassify.MaxOutputTokens)
}

func TestCollector_RunsAndTiers(t *testing.T) {
	c := NewCollector()
	c.RecordRun(true)
	c.RecordRun(false)
	c.RecordTier("exact")
	c.RecordTier("exact")
	c.RecordTier("created")

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Runs)
	assert.Equal(t, int64(1), snap.FailedRuns)
	assert.Equal(t, map[string]int64{"exact": 2, "created": 1}, snap.Tiers)
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpStoreCreate, time.Millisecond)
			c.RecordTier("fuzzy")
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(50), snap.StoreCreate.Count)
	assert.Equal(t, int64(50), snap.Tiers["fuzzy"])
}
