// Package translate implements the priority-ordered, bounded-concurrency
// translation job queue. It is grounded on the teacher's
// internal/pipeline.Router[T] dispatch discipline for backend selection,
// generalized here into a priority scheduler: a bounded set of queues
// drained strictly high > normal > low, with a semaphore-style in-flight
// counter standing in for the teacher's fixed worker-pool pattern.
package translate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Priority is the scheduling class of a TranslationJob.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// DefaultMaxConcurrency is the number of jobs allowed in flight at once.
const DefaultMaxConcurrency = 3

// DefaultMaxQueueSize is the number of jobs allowed to wait (not counting
// those in flight) before overflow handling kicks in.
const DefaultMaxQueueSize = 100

// Job describes one unit of translation work. SegmentID carries the
// routing prefix (bare, "history_…", or "paragraph_…") the orchestrator
// uses to pick the right prompt and result-routing path.
type Job struct {
	SegmentID string
	SourceText string
	SrcLang   string
	TgtLang   string
	Priority  Priority
	EnqueueTs time.Time
}

// Result is a completed translation, keyed for routing back to its origin.
type Result struct {
	KeyID          string
	TranslatedText string
	Model          string
	Confidence     float64
	LatencyMs      float64
}

// JobError carries the error taxonomy kind a HandlerFunc failure belongs
// to, so the manager can decide whether to retry.
type JobError struct {
	Kind      string
	Retryable bool
}

func (e *JobError) Error() string { return fmt.Sprintf("translate: %s", e.Kind) }

// Error kind constants
const (
	ErrRateLimit     = "RATE_LIMIT"
	ErrTimeout       = "TIMEOUT"
	ErrUnauthorized  = "UNAUTHORIZED"
	ErrQueueOverflow = "QUEUE_OVERFLOW"
	ErrUnknown       = "UNKNOWN_ERROR"
)

// HandlerFunc performs one translation job.
type HandlerFunc func(ctx context.Context, job Job) (Result, error)

// Events are the callbacks the manager invokes as a job moves through its
// lifecycle, mirroring the "queued/started/completed/failed" emissions
// names.
type Events struct {
	OnQueued    func(Job)
	OnStarted   func(Job)
	OnCompleted func(Result)
	OnFailed    func(job Job, kind string)
}

type jobEntry struct {
	job     Job
	seq     int
}

// Manager is the bounded-concurrency, priority-ordered translation queue.
type Manager struct {
	mu             sync.Mutex
	queues         map[Priority][]jobEntry
	seq            int
	maxConcurrency int
	maxQueueSize   int
	inFlight       int
	disabled       bool
	handler        HandlerFunc
	events         Events
	clock          func() time.Time
	backoffBase    time.Duration
}

// New creates a Manager with the given concurrency/queue bounds.
func New(maxConcurrency, maxQueueSize int, handler HandlerFunc, events Events) *Manager {
	return &Manager{
		queues: map[Priority][]jobEntry{
			PriorityHigh:   nil,
			PriorityNormal: nil,
			PriorityLow:    nil,
		},
		maxConcurrency: maxConcurrency,
		maxQueueSize:   maxQueueSize,
		handler:        handler,
		events:         events,
		clock:          time.Now,
		backoffBase:    200 * time.Millisecond,
	}
}

func (m *Manager) queuedLocked() int {
	return len(m.queues[PriorityHigh]) + len(m.queues[PriorityNormal]) + len(m.queues[PriorityLow])
}

// dropOldestLowLocked evicts the oldest queued low-priority job, if any,
// reporting it as a QUEUE_OVERFLOW failure. Returns whether one was found.
func (m *Manager) dropOldestLowLocked() bool {
	low := m.queues[PriorityLow]
	if len(low) == 0 {
		return false
	}
	dropped := low[0]
	m.queues[PriorityLow] = low[1:]
	if m.events.OnFailed != nil {
		go m.events.OnFailed(dropped.job, ErrQueueOverflow)
	}
	return true
}

func (m *Manager) popNextLocked() (Job, bool) {
	for _, p := range []Priority{PriorityHigh, PriorityNormal, PriorityLow} {
		q := m.queues[p]
		if len(q) > 0 {
			m.queues[p] = q[1:]
			return q[0].job, true
		}
	}
	return Job{}, false
}

// Enqueue accepts job into the queue, or rejects it with ErrQueueOverflow
// (as a *JobError) or a disabled-worker error. It never blocks on a free
// concurrency slot; dispatch happens asynchronously.
func (m *Manager) Enqueue(job Job) error {
	m.mu.Lock()
	if m.disabled {
		m.mu.Unlock()
		return &JobError{Kind: ErrUnauthorized}
	}
	if job.EnqueueTs.IsZero() {
		job.EnqueueTs = m.clock()
	}

	if m.queuedLocked() >= m.maxQueueSize {
		if job.Priority == PriorityLow || !m.dropOldestLowLocked() {
			m.mu.Unlock()
			if m.events.OnFailed != nil {
				m.events.OnFailed(job, ErrQueueOverflow)
			}
			return &JobError{Kind: ErrQueueOverflow}
		}
	}

	m.seq++
	m.queues[job.Priority] = append(m.queues[job.Priority], jobEntry{job: job, seq: m.seq})
	m.mu.Unlock()

	if m.events.OnQueued != nil {
		m.events.OnQueued(job)
	}
	m.dispatch()
	return nil
}

// dispatch starts as many queued jobs as free concurrency slots allow.
func (m *Manager) dispatch() {
	for {
		m.mu.Lock()
		if m.disabled || m.inFlight >= m.maxConcurrency {
			m.mu.Unlock()
			return
		}
		job, ok := m.popNextLocked()
		if !ok {
			m.mu.Unlock()
			return
		}
		m.inFlight++
		m.mu.Unlock()

		go m.run(job)
	}
}

func maxRetriesFor(p Priority) int {
	switch p {
	case PriorityLow:
		return 3
	default:
		// Normal and high priority jobs share the same retry budget;
		// high-priority jobs are realtime-adjacent, not retry-adjacent.
		return 2
	}
}

func (m *Manager) run(job Job) {
	if m.events.OnStarted != nil {
		m.events.OnStarted(job)
	}

	maxAttempts := maxRetriesFor(job.Priority)
	backoff := m.backoffBase
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx := context.Background()
		res, err := m.handler(ctx, job)
		if err == nil {
			res.KeyID = job.SegmentID
			if m.events.OnCompleted != nil {
				m.events.OnCompleted(res)
			}
			m.finish()
			return
		}
		lastErr = err

		jerr, _ := err.(*JobError)
		kind := ErrUnknown
		if jerr != nil {
			kind = jerr.Kind
		}

		if kind == ErrUnauthorized {
			m.mu.Lock()
			m.disabled = true
			m.mu.Unlock()
			if m.events.OnFailed != nil {
				m.events.OnFailed(job, ErrUnauthorized)
			}
			m.finish()
			return
		}

		retryable := kind == ErrRateLimit || kind == ErrTimeout
		if !retryable || attempt == maxAttempts {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	kind := ErrUnknown
	if jerr, ok := lastErr.(*JobError); ok {
		kind = jerr.Kind
	}
	if m.events.OnFailed != nil {
		m.events.OnFailed(job, kind)
	}
	m.finish()
}

func (m *Manager) finish() {
	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()
	m.dispatch()
}

// QueueDepth returns the number of jobs currently waiting (not in flight).
func (m *Manager) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queuedLocked()
}

// InFlight returns the number of jobs currently running.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Disabled reports whether the worker has been disabled by an
// unauthorized error.
func (m *Manager) Disabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disabled
}
