package metric

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thoas/go-funk"
)

// Counts is a set of named execution counters, e.g. items read or chunks committed by a step.
type Counts map[string]uint64

// Add sums given counts into c.
func (c Counts) Add(o Counts) {
	for k, v := range o {
		c[k] += v
	}
}

// Assign returns a copy of c overwritten by given counts.
func (c Counts) Assign(o Counts) Counts {
	merged := make(Counts, len(c)+len(o))
	for _, src := range []Counts{c, o} {
		for k, v := range src {
			merged[k] = v
		}
	}
	return merged
}

// AddPrefix returns a copy of c where every key is prefixed, e.g. "step2." + "read".
func (c Counts) AddPrefix(p string) Counts {
	prefixed := make(Counts, len(c))
	for k, v := range c {
		prefixed[p+k] = v
	}
	return prefixed
}

// String prints a line per counter, sorted by name.
func (c Counts) String() string {
	keys := funk.Keys(c).([]string)
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, " - %s: %d\n", key, c[key])
	}
	return b.String()
}
