package metric

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/airbloc/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var log = logger.New("metric")

// Global is the process-wide registry. Batch jobs report to it unless told otherwise.
var Global = NewRegistry()

// Registry holds meters by name and tags, and exposes them as prometheus metrics.
// Every meter sharing a name must have the same kind and the same set of tag keys.
type Registry struct {
	prom *prometheus.Registry

	families map[string]*family
	meters   map[string]Meter
	mu       sync.RWMutex
}

// family is a group of meters with the same name, backed by a single prometheus collector.
type family struct {
	kind    Kind
	tagKeys []string

	summaries *prometheus.SummaryVec
	longTasks *longTaskCollector
}

func NewRegistry() *Registry {
	return &Registry{
		prom:     prometheus.NewRegistry(),
		families: make(map[string]*family),
		meters:   make(map[string]Meter),
	}
}

// Timer returns the timer with given name and tags, registering it on first use.
func (r *Registry) Timer(name, description string, tags ...Tag) (*Timer, error) {
	m, err := r.register(newID(name, TimerKind, tags), description, func(f *family, id ID) Meter {
		return newTimer(id, f.summaries.WithLabelValues(id.Tags.Values()...))
	})
	if err != nil {
		return nil, err
	}
	return m.(*Timer), nil
}

// LongTaskTimer returns the long task timer with given name and tags, registering it on first use.
func (r *Registry) LongTaskTimer(name, description string, tags ...Tag) (*LongTaskTimer, error) {
	m, err := r.register(newID(name, LongTaskTimerKind, tags), description, func(f *family, id ID) Meter {
		t := newLongTaskTimer(id)
		f.longTasks.add(t)
		return t
	})
	if err != nil {
		return nil, err
	}
	return m.(*LongTaskTimer), nil
}

func (r *Registry) register(id ID, description string, create func(*family, ID) Meter) (Meter, error) {
	for _, t := range id.Tags {
		if !utf8.ValidString(t.Value) {
			return nil, errors.Errorf("meter %s: tag %s has a value which is not valid UTF-8", id.Name, t.Key)
		}
	}
	r.mu.RLock()
	m, ok := r.meters[id.key()]
	r.mu.RUnlock()
	if ok {
		if m.ID().Kind != id.Kind {
			return nil, errors.Errorf("meter %s is already registered as a %s", id, m.ID().Kind)
		}
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// double-check as the meter may be registered while acquiring the lock
	if m, ok := r.meters[id.key()]; ok {
		if m.ID().Kind != id.Kind {
			return nil, errors.Errorf("meter %s is already registered as a %s", id, m.ID().Kind)
		}
		return m, nil
	}
	f, err := r.familyOf(id, description)
	if err != nil {
		return nil, err
	}
	m = create(f, id)
	r.meters[id.key()] = m
	return m, nil
}

// familyOf must be called with the write lock held.
func (r *Registry) familyOf(id ID, description string) (*family, error) {
	tagKeys := id.Tags.Keys()
	if f, ok := r.families[id.Name]; ok {
		if f.kind != id.Kind {
			return nil, errors.Errorf("meter %s: name is already used by a %s", id, f.kind)
		}
		if strings.Join(f.tagKeys, ",") != strings.Join(tagKeys, ",") {
			return nil, errors.Errorf("meter %s: tag keys %v differ from registered ones %v", id, tagKeys, f.tagKeys)
		}
		return f, nil
	}

	f := &family{kind: id.Kind, tagKeys: tagKeys}
	labels := make([]string, len(tagKeys))
	for i, k := range tagKeys {
		labels[i] = sanitize(k)
	}
	var collector prometheus.Collector
	switch id.Kind {
	case TimerKind:
		f.summaries = prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name: sanitize(id.Name) + "_seconds",
			Help: description,
		}, labels)
		collector = f.summaries

	case LongTaskTimerKind:
		f.longTasks = newLongTaskCollector(sanitize(id.Name)+"_seconds", description, labels)
		collector = f.longTasks
	}
	if err := r.prom.Register(collector); err != nil {
		return nil, errors.Wrapf(err, "register %s to prometheus", id.Name)
	}
	log.Debug("Registered {} family {}", id.Kind, id.Name)

	r.families[id.Name] = f
	return f, nil
}

// Meters returns every registered meter, sorted by name and tags.
func (r *Registry) Meters() []Meter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meters := make([]Meter, 0, len(r.meters))
	for _, m := range r.meters {
		meters = append(meters, m)
	}
	sort.Slice(meters, func(i, j int) bool {
		return meters[i].ID().key() < meters[j].ID().key()
	})
	return meters
}

// Gather implements prometheus.Gatherer.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.prom.Gather()
}

// sanitize converts a dotted meter name or tag key into a valid prometheus name.
func sanitize(name string) string {
	var b strings.Builder
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
