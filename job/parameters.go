package job

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/segmentio/fasthash/fnv1a"
)

// Parameters identify a job instance. Running a job with the same parameters
// is a restart of the same instance.
type Parameters map[string]string

func (p Parameters) sortedKeys() []string {
	keys := lo.Keys(p)
	sort.Strings(keys)
	return keys
}

// Key returns a stable hash of the parameters.
func (p Parameters) Key() string {
	h := fnv1a.Init64
	for _, k := range p.sortedKeys() {
		h = fnv1a.AddString64(h, k)
		h = fnv1a.AddString64(h, "=")
		h = fnv1a.AddString64(h, p[k])
		h = fnv1a.AddString64(h, ";")
	}
	return fmt.Sprintf("%016x", h)
}

// String renders the parameters as [k1=v1, k2=v2], sorted by key.
func (p Parameters) String() string {
	pairs := lo.Map(p.sortedKeys(), func(k string, _ int) string {
		return k + "=" + p[k]
	})
	return "[" + strings.Join(pairs, ", ") + "]"
}
