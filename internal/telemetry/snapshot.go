package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

const (
	defaultCollectionInterval = 5 * time.Second
	defaultRetention          = 24 * time.Hour
	maxProcessingSamples      = 1000
	alertBufferSize           = 64
)

// Snapshot is one point-in-time reading of the cumulative counters.
type Snapshot struct {
	Timestamp           time.Time
	TotalSegments       int64
	ErrorsByKind        map[string]int64
	UIEmitted           int64
	UISuppressed        int64
	CoalescersCreated   int64
	CoalescersDestroyed int64
	FirstPaintSamplesMs []float64
	ProcessingTimesMs   []float64
	HeapBytes           uint64
}

// Alert is raised when a snapshot crosses a configured threshold.
type Alert struct {
	Kind      string
	Message   string
	Timestamp time.Time
}

// Collector accumulates counters and periodically freezes them into a
// retained circular buffer of snapshots, evaluating alert thresholds on
// every tick. Recording methods update the counters synchronously under
// the mutex; the ticker loop started by Start takes the snapshots, and
// alerts go out on a buffered channel, dropped when it is full.
type Collector struct {
	mu sync.Mutex

	totalSegments       int64
	errorsByKind        map[string]int64
	uiEmitted           int64
	uiSuppressed        int64
	coalescersCreated   int64
	coalescersDestroyed int64
	firstPaintSamples   []float64
	processingTimes     []float64

	interval  time.Duration
	retention time.Duration
	buffer    []Snapshot

	heapFunc func() uint64
	clock    func() time.Time

	alertCh chan Alert
	done    chan struct{}
}

// NewCollector creates a Collector with the given collection interval and
// retention window.
func NewCollector(interval, retention time.Duration) *Collector {
	if interval <= 0 {
		interval = defaultCollectionInterval
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Collector{
		errorsByKind: make(map[string]int64),
		interval:     interval,
		retention:    retention,
		heapFunc:     defaultHeapBytes,
		clock:        time.Now,
		alertCh:      make(chan Alert, alertBufferSize),
		done:         make(chan struct{}),
	}
}

func defaultHeapBytes() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// RecordSegment increments the total segment counter.
func (c *Collector) RecordSegment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalSegments++
}

// RecordError increments the error counter for kind.
func (c *Collector) RecordError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsByKind[kind]++
}

// RecordUIEmitted records one coalescer commit delivered to the UI.
func (c *Collector) RecordUIEmitted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uiEmitted++
}

// RecordUISuppressed records one coalescer update that was debounced away.
func (c *Collector) RecordUISuppressed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uiSuppressed++
}

// RecordCoalescerCreated/Destroyed track per-key coalescer lifecycle.
func (c *Collector) RecordCoalescerCreated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coalescersCreated++
}

func (c *Collector) RecordCoalescerDestroyed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coalescersDestroyed++
}

// RecordFirstPaint records the latency, in milliseconds, from session start
// to the first displayed pair.
func (c *Collector) RecordFirstPaint(ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.firstPaintSamples = append(c.firstPaintSamples, ms)
	FirstPaintLatency.Observe(ms / 1000)
}

// RecordProcessingTime records a stage processing time in milliseconds,
// retaining only the most recent maxProcessingSamples.
func (c *Collector) RecordProcessingTime(ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processingTimes = append(c.processingTimes, ms)
	if len(c.processingTimes) > maxProcessingSamples {
		c.processingTimes = c.processingTimes[len(c.processingTimes)-maxProcessingSamples:]
	}
}

// snapshotLocked must be called with c.mu held.
func (c *Collector) snapshotLocked() Snapshot {
	errs := make(map[string]int64, len(c.errorsByKind))
	for k, v := range c.errorsByKind {
		errs[k] = v
	}
	return Snapshot{
		Timestamp:           c.clock(),
		TotalSegments:       c.totalSegments,
		ErrorsByKind:        errs,
		UIEmitted:           c.uiEmitted,
		UISuppressed:        c.uiSuppressed,
		CoalescersCreated:   c.coalescersCreated,
		CoalescersDestroyed: c.coalescersDestroyed,
		FirstPaintSamplesMs: append([]float64(nil), c.firstPaintSamples...),
		ProcessingTimesMs:   append([]float64(nil), c.processingTimes...),
		HeapBytes:           c.heapFunc(),
	}
}

// Tick takes one snapshot, appends it to the retained buffer (trimming
// anything older than the retention window), and evaluates alert thresholds.
// Start calls this on a timer; tests can call it directly without a ticker.
func (c *Collector) Tick() Snapshot {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.buffer = append(c.buffer, snap)
	cutoff := snap.Timestamp.Add(-c.retention)
	i := 0
	for i < len(c.buffer) && c.buffer[i].Timestamp.Before(cutoff) {
		i++
	}
	c.buffer = c.buffer[i:]
	c.mu.Unlock()

	c.evaluateAlerts(snap)
	return snap
}

func (c *Collector) evaluateAlerts(snap Snapshot) {
	if n := len(snap.FirstPaintSamplesMs); n > 0 && snap.FirstPaintSamplesMs[n-1] > 1000 {
		c.emitAlert(Alert{Kind: "first_paint_slow", Message: "first paint exceeded 1s", Timestamp: snap.Timestamp})
	}

	totalUI := snap.UIEmitted + snap.UISuppressed
	if totalUI > 0 {
		reduction := 1 - float64(snap.UIEmitted)/float64(totalUI)
		if reduction < 0.5 {
			c.emitAlert(Alert{Kind: "ui_reduction_low", Message: "coalescer suppression below 50%", Timestamp: snap.Timestamp})
		}
	}

	if snap.TotalSegments > 0 {
		var totalErrors int64
		for _, v := range snap.ErrorsByKind {
			totalErrors += v
		}
		if float64(totalErrors)/float64(snap.TotalSegments) > 0.05 {
			c.emitAlert(Alert{Kind: "error_rate_high", Message: "error rate exceeded 5%", Timestamp: snap.Timestamp})
		}
	}

	if snap.HeapBytes > 500*1024*1024 {
		c.emitAlert(Alert{Kind: "heap_high", Message: "heap exceeded 500MB", Timestamp: snap.Timestamp})
	}
}

func (c *Collector) emitAlert(a Alert) {
	select {
	case c.alertCh <- a:
	default:
		slog.Warn("telemetry alert dropped, channel full", "kind", a.Kind)
	}
}

// Alerts returns the channel alerts are published on.
func (c *Collector) Alerts() <-chan Alert {
	return c.alertCh
}

// Buffer returns a copy of the retained snapshot history.
func (c *Collector) Buffer() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Snapshot(nil), c.buffer...)
}

// Start runs the periodic collection loop until ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(c.done)
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
}

// Done is closed once the collection loop has exited after Start.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}
