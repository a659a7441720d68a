// Package metrics collects in-memory timings for model calls, store calls
// and entity resolution tiers.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for LLM operations)
	TotalInputTokens  int64
	TotalOutputTokens int64
	MinInputTokens    int64
	MaxInputTokens    int64
	MinOutputTokens   int64
	MaxOutputTokens   int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Token stats (nil if not applicable)
	TotalInputTokens  *int64
	TotalOutputTokens *int64
	AvgInputTokens    *float64
	AvgOutputTokens   *float64
	MinInputTokens    *int64
	MaxInputTokens    *int64
	MinOutputTokens   *int64
	MaxOutputTokens   *int64
}

// Snapshot represents the full pipeline statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Runs          int64              `json:"runs"`
	FailedRuns    int64              `json:"failed_runs"`
	LLMClassify   *OperationSnapshot `json:"llm_classify,omitempty"`
	LLMExtract    *OperationSnapshot `json:"llm_extract,omitempty"`
	LLMMatch      *OperationSnapshot `json:"llm_match,omitempty"`
	StoreQuery    *OperationSnapshot `json:"store_query,omitempty"`
	StoreCreate   *OperationSnapshot `json:"store_create,omitempty"`
	StoreUpdate   *OperationSnapshot `json:"store_update,omitempty"`
	Tiers         map[string]int64   `json:"tiers,omitempty"`
}

// Operation names for the collector.
const (
	OpLLMClassify = "llm_classify"
	OpLLMExtract  = "llm_extract"
	OpLLMMatch    = "llm_match"
	OpStoreQuery  = "store_query"
	OpStoreCreate = "store_create"
	OpStoreUpdate = "store_update"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu         sync.RWMutex
	startTime  time.Time
	ops        map[string]*OperationMetrics
	tiers      map[string]int64
	runs       int64
	failedRuns int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		tiers:     make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime:         time.Duration(math.MaxInt64),
			MinInputTokens:  math.MaxInt64,
			MinOutputTokens: math.MaxInt64,
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).observe(duration)
}

func (m *OperationMetrics) observe(duration time.Duration) {
	m.Count++
	m.TotalTime += duration
	m.MinTime = min(m.MinTime, duration)
	m.MaxTime = max(m.MaxTime, duration)
}

// RecordTier counts one entity resolution by the tier that produced it.
func (c *Collector) RecordTier(tier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiers[tier]++
}

// RecordRun counts one finished pipeline run.
func (c *Collector) RecordRun(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	if !success {
		c.failedRuns++
	}
}

// RecordLLMUsage records timing and token usage for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.observe(duration)

	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens

	m.MinInputTokens = min(m.MinInputTokens, inputTokens)
	m.MaxInputTokens = max(m.MaxInputTokens, inputTokens)
	m.MinOutputTokens = min(m.MinOutputTokens, outputTokens)
	m.MaxOutputTokens = max(m.MaxOutputTokens, outputTokens)
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeTokens bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeTokens && (m.TotalInputTokens > 0 || m.TotalOutputTokens > 0) {
		totalIn := m.TotalInputTokens
		totalOut := m.TotalOutputTokens
		avgIn := float64(m.TotalInputTokens) / float64(m.Count)
		avgOut := float64(m.TotalOutputTokens) / float64(m.Count)
		minIn := m.MinInputTokens
		maxIn := m.MaxInputTokens
		minOut := m.MinOutputTokens
		maxOut := m.MaxOutputTokens

		// Reset sentinel values for display
		if minIn == math.MaxInt64 {
			minIn = 0
		}
		if minOut == math.MaxInt64 {
			minOut = 0
		}

		snap.TotalInputTokens = &totalIn
		snap.TotalOutputTokens = &totalOut
		snap.AvgInputTokens = &avgIn
		snap.AvgOutputTokens = &avgOut
		snap.MinInputTokens = &minIn
		snap.MaxInputTokens = &maxIn
		snap.MinOutputTokens = &minOut
		snap.MaxOutputTokens = &maxOut
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tiers := make(map[string]int64, len(c.tiers))
	for k, v := range c.tiers {
		tiers[k] = v
	}

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Runs:          c.runs,
		FailedRuns:    c.failedRuns,
		LLMClassify:   snapshotOp(c.ops[OpLLMClassify], true),
		LLMExtract:    snapshotOp(c.ops[OpLLMExtract], true),
		LLMMatch:      snapshotOp(c.ops[OpLLMMatch], true),
		StoreQuery:    snapshotOp(c.ops[OpStoreQuery], false),
		StoreCreate:   snapshotOp(c.ops[OpStoreCreate], false),
		StoreUpdate:   snapshotOp(c.ops[OpStoreUpdate], false),
		Tiers:         tiers,
	}
}
