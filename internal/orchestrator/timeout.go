package orchestrator

import (
	"sync"
	"time"
)

// TranslationTimeoutManager tracks a per-segment deadline for the realtime
// translation path: "defaultTimeout (7s) + min(2.5s, 5ms *
// len(text)) capped at maxTimeout (10s)". On expiry the caller-supplied
// onTimeout fires exactly once; Cancel before expiry suppresses it.
type TranslationTimeoutManager struct {
	mu     sync.Mutex
	timers map[string]*time.Timer

	defaultTimeout time.Duration
	maxExtra       time.Duration
	maxTimeout     time.Duration
}

// NewTranslationTimeoutManager creates a manager with the default timings.
func NewTranslationTimeoutManager() *TranslationTimeoutManager {
	return &TranslationTimeoutManager{
		timers:         make(map[string]*time.Timer),
		defaultTimeout: 7 * time.Second,
		maxExtra:       2500 * time.Millisecond,
		maxTimeout:     10 * time.Second,
	}
}

// Duration returns the dynamic timeout for text of the given length.
func (m *TranslationTimeoutManager) Duration(textLen int) time.Duration {
	extra := time.Duration(textLen) * 5 * time.Millisecond
	if extra > m.maxExtra {
		extra = m.maxExtra
	}
	d := m.defaultTimeout + extra
	if d > m.maxTimeout {
		d = m.maxTimeout
	}
	return d
}

// Arm starts (or restarts) the timeout for segmentID, invoking onTimeout
// exactly once if Cancel is not called first.
func (m *TranslationTimeoutManager) Arm(segmentID string, textLen int, onTimeout func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[segmentID]; ok {
		t.Stop()
	}
	m.timers[segmentID] = time.AfterFunc(m.Duration(textLen), func() {
		m.mu.Lock()
		delete(m.timers, segmentID)
		m.mu.Unlock()
		onTimeout()
	})
}

// Cancel stops the pending timeout for segmentID, if any. It is a no-op
// once the timeout has already fired.
func (m *TranslationTimeoutManager) Cancel(segmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[segmentID]; ok {
		t.Stop()
		delete(m.timers, segmentID)
	}
}
