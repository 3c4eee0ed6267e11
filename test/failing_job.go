package test

import (
	"context"
	"io"

	"github.com/ab180/lrbatch/item"
	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/step"
	"github.com/pkg/errors"
)

// FailingJob prints the numbers from 1 to 10 by chunks of 5, failing to process the 7th one.
func FailingJob(out io.Writer) (*job.Job, error) {
	station := item.ProcessorFunc[int, int](func(_ context.Context, n int) (int, bool, error) {
		if n == 7 {
			return 0, false, errors.Errorf("station: unable to process %d", n)
		}
		return n, true, nil
	})
	s, err := step.NewChunk[int, int](
		"print",
		item.NewListReader(1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
		station,
		item.NewPrintWriter[int](out),
		step.WithChunkSize(5),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build print step")
	}
	return job.New("failing", s), nil
}
