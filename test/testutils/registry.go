package testutils

import (
	"github.com/ab180/lrbatch/metric"
	"github.com/samber/lo"
)

// MeterNames returns the distinct names of the meters in the registry.
func MeterNames(r *metric.Registry) []string {
	return lo.Uniq(lo.Map(r.Meters(), func(m metric.Meter, _ int) string {
		return m.ID().Name
	}))
}
