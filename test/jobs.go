package test

import (
	"io"
	"sort"

	"github.com/ab180/lrbatch/job"
	"github.com/samber/lo"
)

// JobFactory builds a job writing its output to given writer.
// Readers hold their position, so a job must be built again for every run.
type JobFactory func(out io.Writer) (*job.Job, error)

// Jobs are the sample jobs runnable from the command line.
var Jobs = map[string]JobFactory{
	"metrics": MetricsJob,
	"failing": FailingJob,
}

// JobNames returns the names of the sample jobs in alphabetical order.
func JobNames() []string {
	names := lo.Keys(Jobs)
	sort.Strings(names)
	return names
}
