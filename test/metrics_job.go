package test

import (
	"io"

	"github.com/ab180/lrbatch/item"
	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/step"
	"github.com/pkg/errors"
)

// MetricsJob runs a no-op tasklet, then prints the numbers from 1 to 10 by chunks of 5.
// The steps report every batch meter: job, job.active, step, item.read, item.process and chunk.write.
func MetricsJob(out io.Writer) (*job.Job, error) {
	step2, err := step.NewChunk[int, int](
		"step2",
		item.NewListReader(1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
		nil,
		item.NewPrintWriter[int](out),
		step.WithChunkSize(5),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build step2")
	}
	return job.New("job").
		Start(step.NewTasklet("step1", step.NoopTasklet)).
		Next(step2), nil
}
