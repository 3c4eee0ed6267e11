package metric

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultPrefix is prepended to the names of the meters reported by batch jobs.
	DefaultPrefix = "spring.batch"

	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Batch creates the meters of batch jobs and steps on a registry.
// Failing to create a meter never fails a job: the error is logged and nothing is recorded.
type Batch struct {
	Registry *Registry
	Prefix   string
}

// NewBatch returns a Batch on given registry. A nil registry means Global.
func NewBatch(r *Registry, prefix string) *Batch {
	if r == nil {
		r = Global
	}
	return &Batch{Registry: r, Prefix: prefix}
}

func (b *Batch) name(n string) string {
	if b.Prefix == "" {
		return n
	}
	return b.Prefix + "." + n
}

// CreateTimer returns a timer named with the batch prefix, or nil if it cannot be registered.
func (b *Batch) CreateTimer(name, description string, tags ...Tag) *Timer {
	t, err := b.Registry.Timer(b.name(name), description, tags...)
	if err != nil {
		log.Error("Unable to create timer {}: {}", b.name(name), err)
		return nil
	}
	return t
}

// CreateLongTaskTimer returns a long task timer named with the batch prefix, or nil if it cannot be registered.
func (b *Batch) CreateLongTaskTimer(name, description string, tags ...Tag) *LongTaskTimer {
	t, err := b.Registry.LongTaskTimer(b.name(name), description, tags...)
	if err != nil {
		log.Error("Unable to create long task timer {}: {}", b.name(name), err)
		return nil
	}
	return t
}

// StopTimer stops the sample on the timer with given name and tags.
func (b *Batch) StopTimer(s Sample, name, description string, tags ...Tag) time.Duration {
	return s.Stop(b.CreateTimer(name, description, tags...))
}

// FormatDuration formats a duration like "1h2m3s45ms". Durations under a millisecond print as "0ms".
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return "0ms"
	}
	var b strings.Builder
	hours := d / time.Hour
	minutes := (d % time.Hour) / time.Minute
	seconds := (d % time.Minute) / time.Second
	millis := (d % time.Second) / time.Millisecond
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&b, "%ds", seconds)
	}
	if millis > 0 {
		fmt.Fprintf(&b, "%dms", millis)
	}
	return b.String()
}
