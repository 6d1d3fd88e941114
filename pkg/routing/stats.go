package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// AtomicRoutingStats implements thread-safe routing statistics using atomic operations.
type AtomicRoutingStats struct {
	totalRequests atomic.Int64

	// requestsPerProvider maps provider tag to *atomic.Int64
	requestsPerProvider sync.Map

	// requestsPerTaskType maps task type to *atomic.Int64
	requestsPerTaskType sync.Map

	relaxedCount         atomic.Int64
	preferenceMatchCount atomic.Int64
	errors               atomic.Int64

	mu            sync.RWMutex
	lastResetTime time.Time
}

// NewAtomicRoutingStats creates a new atomic routing statistics tracker.
func NewAtomicRoutingStats() *AtomicRoutingStats {
	return &AtomicRoutingStats{
		lastResetTime: time.Now(),
	}
}

// IncrementTotal increments the total request counter.
func (s *AtomicRoutingStats) IncrementTotal() {
	s.totalRequests.Add(1)
}

// IncrementProvider increments the counter for a specific provider.
func (s *AtomicRoutingStats) IncrementProvider(provider Provider) {
	incrementKey(&s.requestsPerProvider, string(provider))
}

// IncrementTaskType increments the counter for a task type.
func (s *AtomicRoutingStats) IncrementTaskType(taskType TaskType) {
	incrementKey(&s.requestsPerTaskType, string(taskType))
}

// IncrementRelaxed increments the relaxed-requirements counter.
func (s *AtomicRoutingStats) IncrementRelaxed() {
	s.relaxedCount.Add(1)
}

// IncrementPreferenceMatch increments the preferred-provider win counter.
func (s *AtomicRoutingStats) IncrementPreferenceMatch() {
	s.preferenceMatchCount.Add(1)
}

// IncrementErrors increments the error counter.
func (s *AtomicRoutingStats) IncrementErrors() {
	s.errors.Add(1)
}

// Snapshot returns a point-in-time copy of the statistics.
func (s *AtomicRoutingStats) Snapshot() *RoutingStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &RoutingStats{
		TotalRequests:        s.totalRequests.Load(),
		RequestsPerProvider:  snapshotMap(&s.requestsPerProvider),
		RequestsPerTaskType:  snapshotMap(&s.requestsPerTaskType),
		RelaxedCount:         s.relaxedCount.Load(),
		PreferenceMatchCount: s.preferenceMatchCount.Load(),
		Errors:               s.errors.Load(),
		LastResetTime:        s.lastResetTime,
	}
}

// Reset resets all statistics to zero.
func (s *AtomicRoutingStats) Reset() {
	s.totalRequests.Store(0)
	s.relaxedCount.Store(0)
	s.preferenceMatchCount.Store(0)
	s.errors.Store(0)
	s.requestsPerProvider.Clear()
	s.requestsPerTaskType.Clear()

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}

func incrementKey(m *sync.Map, key string) {
	val, _ := m.LoadOrStore(key, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func snapshotMap(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return out
}
