package translate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueueOverflowDropsOldestLow(t *testing.T) {
	// maxQueueSize=2, maxConcurrency=1: a third queued job evicts the oldest low-priority one.
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	var mu sync.Mutex
	var order []string

	handler := func(ctx context.Context, job Job) (Result, error) {
		if job.SegmentID == "A" {
			started <- struct{}{}
			<-release
		}
		mu.Lock()
		order = append(order, job.SegmentID)
		mu.Unlock()
		return Result{}, nil
	}

	var failedMu sync.Mutex
	var failed []string
	events := Events{
		OnFailed: func(job Job, kind string) {
			failedMu.Lock()
			failed = append(failed, job.SegmentID)
			failedMu.Unlock()
		},
	}

	m := New(1, 2, handler, events)

	mustEnqueue(t, m, Job{SegmentID: "A", Priority: PriorityNormal})
	<-started // A is now running, holding the only concurrency slot

	mustEnqueue(t, m, Job{SegmentID: "B", Priority: PriorityLow})
	mustEnqueue(t, m, Job{SegmentID: "C", Priority: PriorityLow})
	mustEnqueue(t, m, Job{SegmentID: "D", Priority: PriorityNormal}) // overflow: evicts B

	close(release)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := len(order) == 3
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out, order so far: %v", order)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	got := append([]string(nil), order...)
	mu.Unlock()

	want := []string{"A", "D", "C"}
	for i, w := range want {
		if i >= len(got) || got[i] != w {
			t.Fatalf("got order %v, want %v", got, want)
		}
	}

	failedMu.Lock()
	defer failedMu.Unlock()
	if len(failed) != 1 || failed[0] != "B" {
		t.Errorf("got failed %v, want exactly [B] dropped for overflow", failed)
	}
}

func mustEnqueue(t *testing.T, m *Manager, job Job) {
	t.Helper()
	if err := m.Enqueue(job); err != nil {
		t.Fatalf("enqueue %s: %v", job.SegmentID, err)
	}
}

func TestConcurrencyNeverExceedsMax(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	handler := func(ctx context.Context, job Job) (Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return Result{}, nil
	}

	m := New(3, DefaultMaxQueueSize, handler, Events{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Enqueue(Job{SegmentID: "job", Priority: PriorityNormal})
		}(i)
	}
	wg.Wait()

	deadline := time.After(2 * time.Second)
	for m.InFlight() > 0 || m.QueueDepth() > 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for drain")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if peak > 3 {
		t.Errorf("peak concurrency %d exceeded maxConcurrency=3 (violates P7)", peak)
	}
}

func TestTransientErrorRetriesThenSucceeds(t *testing.T) {
	var attempts int
	handler := func(ctx context.Context, job Job) (Result, error) {
		attempts++
		if attempts < 2 {
			return Result{}, &JobError{Kind: ErrTimeout, Retryable: true}
		}
		return Result{TranslatedText: "ok"}, nil
	}

	completed := make(chan Result, 1)
	m := New(1, 10, handler, Events{OnCompleted: func(r Result) { completed <- r }})
	m.backoffBase = time.Millisecond

	mustEnqueue(t, m, Job{SegmentID: "x", Priority: PriorityNormal})

	select {
	case r := <-completed:
		if r.TranslatedText != "ok" {
			t.Errorf("got %q", r.TranslatedText)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for eventual success")
	}
	if attempts != 2 {
		t.Errorf("got %d attempts, want 2", attempts)
	}
}

func TestUnauthorizedDisablesWorker(t *testing.T) {
	handler := func(ctx context.Context, job Job) (Result, error) {
		return Result{}, &JobError{Kind: ErrUnauthorized}
	}

	failed := make(chan string, 1)
	m := New(1, 10, handler, Events{OnFailed: func(job Job, kind string) { failed <- kind }})

	mustEnqueue(t, m, Job{SegmentID: "x", Priority: PriorityNormal})

	select {
	case kind := <-failed:
		if kind != ErrUnauthorized {
			t.Errorf("got kind %q", kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	deadline := time.After(time.Second)
	for !m.Disabled() {
		select {
		case <-deadline:
			t.Fatal("worker never disabled")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := m.Enqueue(Job{SegmentID: "y", Priority: PriorityNormal}); err == nil {
		t.Error("expected enqueue to fail once worker is disabled")
	}
}
