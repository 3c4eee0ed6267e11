package metric

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Tag is a key-value dimension of a meter.
type Tag struct {
	Key   string
	Value string
}

// NewTag returns a tag with given key and value.
func NewTag(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

func (t Tag) String() string {
	return t.Key + "=" + t.Value
}

// Tags is a set of tags sorted by key. Use newTags to build a normalized one.
type Tags []Tag

// newTags sorts given tags by key. When a key is given more than once, the last one wins.
func newTags(tags []Tag) Tags {
	byKey := make(map[string]string, len(tags))
	for _, t := range tags {
		byKey[t.Key] = t.Value
	}
	keys := lo.Keys(byKey)
	sort.Strings(keys)

	normalized := make(Tags, len(keys))
	for i, k := range keys {
		normalized[i] = Tag{Key: k, Value: byKey[k]}
	}
	return normalized
}

// Keys returns tag keys in order.
func (ts Tags) Keys() []string {
	return lo.Map(ts, func(t Tag, _ int) string { return t.Key })
}

// Values returns tag values in the order of Keys.
func (ts Tags) Values() []string {
	return lo.Map(ts, func(t Tag, _ int) string { return t.Value })
}

// Get returns the value of given tag key.
func (ts Tags) Get(key string) (value string, ok bool) {
	for _, t := range ts {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// Contains returns true if every given tag is present with the same value.
func (ts Tags) Contains(required []Tag) bool {
	for _, r := range required {
		if v, ok := ts.Get(r.Key); !ok || v != r.Value {
			return false
		}
	}
	return true
}

func (ts Tags) String() string {
	return "[" + strings.Join(lo.Map(ts, func(t Tag, _ int) string { return t.String() }), ", ") + "]"
}

// Kind is a type of meter.
type Kind int

const (
	TimerKind Kind = iota
	LongTaskTimerKind
)

func (k Kind) String() string {
	switch k {
	case TimerKind:
		return "timer"
	case LongTaskTimerKind:
		return "long task timer"
	}
	return "unknown"
}

// ID identifies a meter in a registry.
type ID struct {
	Name string
	Tags Tags
	Kind Kind
}

func newID(name string, kind Kind, tags []Tag) ID {
	return ID{
		Name: name,
		Tags: newTags(tags),
		Kind: kind,
	}
}

// key is unique per name and tags regardless of the kind.
func (id ID) key() string {
	return id.Name + id.Tags.String()
}

func (id ID) String() string {
	return id.Name + id.Tags.String()
}

// Meter is a named and tagged instrument registered in a Registry.
type Meter interface {
	ID() ID
}
