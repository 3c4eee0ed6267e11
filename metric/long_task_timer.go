package metric

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// LongTaskTimer tracks tasks while they are still running, e.g. active jobs.
type LongTaskTimer struct {
	id ID

	nextTaskID uint64
	active     map[uint64]time.Time
	mu         sync.Mutex
}

func newLongTaskTimer(id ID) *LongTaskTimer {
	return &LongTaskTimer{
		id:     id,
		active: make(map[uint64]time.Time),
	}
}

func (t *LongTaskTimer) ID() ID {
	return t.id
}

// Start begins tracking a task. Calling Start on a nil timer returns a sample which tracks nothing.
func (t *LongTaskTimer) Start() *LongTaskSample {
	s := &LongTaskSample{timer: t, start: time.Now()}
	if t == nil {
		return s
	}
	t.mu.Lock()
	t.nextTaskID++
	s.taskID = t.nextTaskID
	t.active[s.taskID] = s.start
	t.mu.Unlock()
	return s
}

// ActiveTasks returns the number of tasks started but not stopped yet.
func (t *LongTaskTimer) ActiveTasks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Duration returns the sum of the elapsed times of the active tasks.
func (t *LongTaskTimer) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var total time.Duration
	for _, start := range t.active {
		total += now.Sub(start)
	}
	return total
}

func (t *LongTaskTimer) stop(taskID uint64) {
	t.mu.Lock()
	delete(t.active, taskID)
	t.mu.Unlock()
}

// LongTaskSample is a task tracked by a LongTaskTimer.
type LongTaskSample struct {
	timer   *LongTaskTimer
	taskID  uint64
	start   time.Time
	stopped atomic.Bool
}

// Stop ends tracking of the task and returns its duration. Only the first call has effect.
func (s *LongTaskSample) Stop() time.Duration {
	if !s.stopped.CAS(false, true) {
		return 0
	}
	if s.timer != nil {
		s.timer.stop(s.taskID)
	}
	return time.Since(s.start)
}

// longTaskCollector exposes every long task timer of a family, computed on each scrape.
type longTaskCollector struct {
	activeDesc   *prometheus.Desc
	durationDesc *prometheus.Desc

	timers []*LongTaskTimer
	mu     sync.RWMutex
}

func newLongTaskCollector(name, help string, labels []string) *longTaskCollector {
	return &longTaskCollector{
		activeDesc:   prometheus.NewDesc(name+"_active_count", help, labels, nil),
		durationDesc: prometheus.NewDesc(name+"_duration_sum", help, labels, nil),
	}
}

func (c *longTaskCollector) add(t *LongTaskTimer) {
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
}

func (c *longTaskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeDesc
	ch <- c.durationDesc
}

func (c *longTaskCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.timers {
		labelValues := t.id.Tags.Values()
		ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(t.ActiveTasks()), labelValues...)
		ch <- prometheus.MustNewConstMetric(c.durationDesc, prometheus.GaugeValue, t.Duration().Seconds(), labelValues...)
	}
}
