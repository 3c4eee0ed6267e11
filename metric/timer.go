package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Timer records the count, total time and maximum of short-lived events.
type Timer struct {
	id       ID
	observer prometheus.Observer

	count atomic.Uint64
	total atomic.Int64
	max   atomic.Int64
}

func newTimer(id ID, observer prometheus.Observer) *Timer {
	return &Timer{
		id:       id,
		observer: observer,
	}
}

func (t *Timer) ID() ID {
	return t.id
}

// Record adds an event of given duration. Negative durations are ignored.
func (t *Timer) Record(d time.Duration) {
	if d < 0 {
		return
	}
	t.count.Inc()
	t.total.Add(int64(d))
	for {
		prev := t.max.Load()
		if int64(d) <= prev || t.max.CAS(prev, int64(d)) {
			break
		}
	}
	t.observer.Observe(d.Seconds())
}

// Count returns the number of recorded events.
func (t *Timer) Count() uint64 {
	return t.count.Load()
}

// TotalTime returns the sum of the recorded durations.
func (t *Timer) TotalTime() time.Duration {
	return time.Duration(t.total.Load())
}

// Max returns the longest recorded duration.
func (t *Timer) Max() time.Duration {
	return time.Duration(t.max.Load())
}

// Sample is a started measurement which is not bound to a timer yet.
// It allows to choose the timer (e.g. its status tag) after the measured work finishes.
type Sample struct {
	start time.Time
}

func StartSample() Sample {
	return Sample{start: time.Now()}
}

// Stop records the time elapsed since the sample started to given timer.
// A nil timer only returns the elapsed time.
func (s Sample) Stop(t *Timer) time.Duration {
	elapsed := time.Since(s.start)
	if t != nil {
		t.Record(elapsed)
	}
	return elapsed
}
