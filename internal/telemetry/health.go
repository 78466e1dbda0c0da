package telemetry

import "sync"

// CheckFunc reports whether a component is healthy.
type CheckFunc func() error

// RecoverFunc attempts to restore a component to health.
type RecoverFunc func() error

// Result is the outcome of running one registered health check.
type Result struct {
	Name     string
	Healthy  bool
	Err      error
	Attempts int
}

type registeredCheck struct {
	check       CheckFunc
	recover     RecoverFunc
	maxAttempts int
	attempts    int
}

// HealthRegistry runs named health checks and attempts bounded auto-recovery
// on failure before surfacing the component as unhealthy.
type HealthRegistry struct {
	mu     sync.Mutex
	checks map[string]*registeredCheck
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checks: make(map[string]*registeredCheck)}
}

// Register adds a named health check. recover may be nil for checks with no
// automated recovery action; maxAttempts bounds how many times recover is
// invoked before the component is reported unhealthy.
func (h *HealthRegistry) Register(name string, check CheckFunc, recover RecoverFunc, maxAttempts int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = &registeredCheck{check: check, recover: recover, maxAttempts: maxAttempts}
}

// Run executes every registered check, attempting recovery on failure.
func (h *HealthRegistry) Run() []Result {
	h.mu.Lock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.Unlock()

	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, h.runOne(name))
	}
	return results
}

func (h *HealthRegistry) runOne(name string) Result {
	h.mu.Lock()
	rc, ok := h.checks[name]
	h.mu.Unlock()
	if !ok {
		return Result{Name: name, Healthy: false}
	}

	err := rc.check()
	if err == nil {
		h.mu.Lock()
		rc.attempts = 0
		h.mu.Unlock()
		return Result{Name: name, Healthy: true}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if rc.recover != nil && rc.attempts < rc.maxAttempts {
		rc.attempts++
		if recErr := rc.recover(); recErr == nil {
			if checkErr := rc.check(); checkErr == nil {
				rc.attempts = 0
				return Result{Name: name, Healthy: true, Attempts: rc.attempts}
			}
		}
	}
	return Result{Name: name, Healthy: false, Err: err, Attempts: rc.attempts}
}
