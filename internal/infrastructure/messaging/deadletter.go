package messaging

import (
	"sync"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry is a handler invocation that failed every attempt.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue keeps the most recent failures. The oldest entry is
// dropped when full.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add adds an entry to the queue.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of all entries, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]DeadLetterEntry, len(q.entries))
	copy(result, q.entries)
	return result
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Pop removes and returns the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks bus throughput.
type Metrics struct {
	mu sync.RWMutex

	published       map[shared.EventType]int64
	executions      int64
	successes       int64
	failures        int64
	retries         int64
	attemptFailures map[shared.EventType]int64
	totalDuration   time.Duration
}

// NewMetrics creates empty metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		published:       make(map[shared.EventType]int64),
		attemptFailures: make(map[shared.EventType]int64),
	}
}

// RecordPublish counts a published event.
func (m *Metrics) RecordPublish(t shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[t]++
}

// RecordExecution records one handler invocation including its retries.
func (m *Metrics) RecordExecution(_ shared.EventType, d time.Duration, success bool, attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions++
	m.totalDuration += d
	if attempts > 1 {
		m.retries += int64(attempts - 1)
	}
	if success {
		m.successes++
	} else {
		m.failures++
	}
}

// RecordAttemptFailure counts a single failed attempt.
func (m *Metrics) RecordAttemptFailure(t shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attemptFailures[t]++
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Published       int64
	Executions      int64
	Successes       int64
	Failures        int64
	Retries         int64
	AttemptFailures int64
	AverageDuration time.Duration
}

// Snapshot returns a point-in-time snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSnapshot{
		Executions: m.executions,
		Successes:  m.successes,
		Failures:   m.failures,
		Retries:    m.retries,
	}
	for _, v := range m.published {
		s.Published += v
	}
	for _, v := range m.attemptFailures {
		s.AttemptFailures += v
	}
	if m.executions > 0 {
		s.AverageDuration = m.totalDuration / time.Duration(m.executions)
	}
	return s
}
