// Package step provides the job.Step implementations: tasklet steps and chunk-oriented steps.
package step

import (
	"context"

	"github.com/ab180/lrbatch/job"
	"github.com/airbloc/logger"
	"github.com/pkg/errors"
)

var log = logger.New("step")

// RepeatStatus tells a tasklet step whether to call the tasklet again.
type RepeatStatus int

const (
	Finished RepeatStatus = iota
	Continuable
)

func (r RepeatStatus) String() string {
	if r == Continuable {
		return "CONTINUABLE"
	}
	return "FINISHED"
}

// Tasklet is a single unit of work repeated until it returns Finished.
type Tasklet interface {
	Execute(ctx context.Context, se *job.StepExecution) (RepeatStatus, error)
}

type TaskletFunc func(ctx context.Context, se *job.StepExecution) (RepeatStatus, error)

func (f TaskletFunc) Execute(ctx context.Context, se *job.StepExecution) (RepeatStatus, error) {
	return f(ctx, se)
}

// NoopTasklet does nothing and finishes at once.
var NoopTasklet Tasklet = TaskletFunc(func(context.Context, *job.StepExecution) (RepeatStatus, error) {
	return Finished, nil
})

// TaskletStep runs a tasklet, committing after every call.
type TaskletStep struct {
	name    string
	tasklet Tasklet
}

var _ job.Step = (*TaskletStep)(nil)

func NewTasklet(name string, t Tasklet) *TaskletStep {
	return &TaskletStep{name: name, tasklet: t}
}

func (s *TaskletStep) Name() string {
	return s.name
}

func (s *TaskletStep) Execute(ctx context.Context, se *job.StepExecution) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := s.tasklet.Execute(ctx, se)
		if err != nil {
			se.Rollback()
			return errors.Wrapf(err, "execute tasklet of step %s", s.name)
		}
		if err := se.Commit(ctx, job.Contribution{}); err != nil {
			return err
		}
		if status == Finished {
			return nil
		}
		log.Debug("Tasklet of step {} is continuable (commit #{})", s.name, se.CommitCount)
	}
}
