package telemetry

import (
	"errors"
	"testing"
	"time"
)

func TestTickRetainsSnapshotCounters(t *testing.T) {
	c := NewCollector(time.Second, time.Hour)
	c.RecordSegment()
	c.RecordSegment()
	c.RecordError("parse")
	c.RecordUIEmitted()
	c.RecordUISuppressed()

	snap := c.Tick()
	if snap.TotalSegments != 2 {
		t.Errorf("got %d segments, want 2", snap.TotalSegments)
	}
	if snap.ErrorsByKind["parse"] != 1 {
		t.Errorf("got %d parse errors, want 1", snap.ErrorsByKind["parse"])
	}
	if len(c.Buffer()) != 1 {
		t.Errorf("got %d buffered snapshots, want 1", len(c.Buffer()))
	}
}

func TestProcessingTimesCapAt1000Samples(t *testing.T) {
	c := NewCollector(time.Second, time.Hour)
	for i := 0; i < 1200; i++ {
		c.RecordProcessingTime(float64(i))
	}
	snap := c.Tick()
	if len(snap.ProcessingTimesMs) != maxProcessingSamples {
		t.Errorf("got %d samples, want capped at %d", len(snap.ProcessingTimesMs), maxProcessingSamples)
	}
}

func TestAlertOnSlowFirstPaint(t *testing.T) {
	c := NewCollector(time.Second, time.Hour)
	c.RecordFirstPaint(1500)
	c.Tick()

	select {
	case a := <-c.Alerts():
		if a.Kind != "first_paint_slow" {
			t.Errorf("got alert kind %q, want first_paint_slow", a.Kind)
		}
	default:
		t.Error("expected a first_paint_slow alert")
	}
}

func TestAlertOnHighErrorRate(t *testing.T) {
	c := NewCollector(time.Second, time.Hour)
	for i := 0; i < 10; i++ {
		c.RecordSegment()
	}
	for i := 0; i < 2; i++ {
		c.RecordError("timeout")
	}
	c.Tick()

	select {
	case a := <-c.Alerts():
		if a.Kind != "error_rate_high" {
			t.Errorf("got alert kind %q, want error_rate_high", a.Kind)
		}
	default:
		t.Error("expected an error_rate_high alert")
	}
}

func TestHealthRegistryAutoRecovers(t *testing.T) {
	h := NewHealthRegistry()
	failOnce := true
	recovered := false
	h.Register("asr", func() error {
		if failOnce && !recovered {
			return errors.New("down")
		}
		return nil
	}, func() error {
		recovered = true
		return nil
	}, 2)

	results := h.Run()
	if len(results) != 1 || !results[0].Healthy {
		t.Fatalf("expected recovery to succeed, got %+v", results)
	}
}

func TestHealthRegistryExhaustsRecoveryAttempts(t *testing.T) {
	h := NewHealthRegistry()
	h.Register("llm", func() error { return errors.New("down") }, func() error { return errors.New("still down") }, 2)

	result := h.runOne("llm")
	if result.Healthy {
		t.Fatal("expected unhealthy result when recovery never succeeds")
	}
}
