package step_test

import (
	"context"
	"testing"

	"github.com/ab180/lrbatch/coordinator"
	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/metric"
	"github.com/ab180/lrbatch/repository"
	"github.com/ab180/lrbatch/step"
	"github.com/ab180/lrbatch/test/testutils"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

// runJob runs a job on an in-memory repository, reporting to given registry.
func runJob(reg *metric.Registry, j *job.Job) *job.Execution {
	return runJobWithContext(testutils.ContextWithTimeout(), reg, j)
}

func runJobWithContext(ctx context.Context, reg *metric.Registry, j *job.Job) *job.Execution {
	launcher := job.NewLauncher(repository.New(coordinator.NewLocalMemory()), job.WithRegistry(reg))
	e, err := launcher.Run(ctx, j, nil)
	So(err, ShouldBeNil)
	return e
}

func stepTimer(reg *metric.Registry, stepName, status string) (*metric.Timer, error) {
	return reg.Get("spring.batch.step").
		Tag("name", stepName).
		Tag("status", status).
		Timer()
}

func TestTaskletStep(t *testing.T) {
	Convey("Given a registry", t, func() {
		reg := metric.NewRegistry()

		Convey("When running a noop tasklet", func() {
			e := runJob(reg, job.New("job", step.NewTasklet("noop", step.NoopTasklet)))

			Convey("It should complete with a single commit", func() {
				So(e.Status, ShouldEqual, job.Completed)
				So(e.StepExecutions, ShouldHaveLength, 1)
				So(e.StepExecutions[0].CommitCount, ShouldEqual, 1)
				So(e.StepExecutions[0].ExitStatus.ExitCode, ShouldEqual, job.ExitCompleted.ExitCode)
			})

			Convey("It should record the step timer", func() {
				timer, err := stepTimer(reg, "noop", "COMPLETED")
				So(err, ShouldBeNil)
				So(timer.Count(), ShouldEqual, 1)
			})
		})

		Convey("When running a continuable tasklet", func() {
			calls := 0
			tasklet := step.TaskletFunc(func(_ context.Context, _ *job.StepExecution) (step.RepeatStatus, error) {
				calls++
				if calls < 3 {
					return step.Continuable, nil
				}
				return step.Finished, nil
			})
			e := runJob(reg, job.New("job", step.NewTasklet("repeat", tasklet)))

			Convey("It should be called until it finishes, committing every call", func() {
				So(e.Status, ShouldEqual, job.Completed)
				So(calls, ShouldEqual, 3)
				So(e.StepExecutions[0].CommitCount, ShouldEqual, 3)
			})
		})

		Convey("When running a failing tasklet", func() {
			tasklet := step.TaskletFunc(func(context.Context, *job.StepExecution) (step.RepeatStatus, error) {
				return step.Finished, errors.New("station")
			})
			e := runJob(reg, job.New("job", step.NewTasklet("failing", tasklet)))

			Convey("It should fail the step with a rollback", func() {
				So(e.Status, ShouldEqual, job.Failed)
				se := e.StepExecutions[0]
				So(se.Status, ShouldEqual, job.Failed)
				So(se.RollbackCount, ShouldEqual, 1)
				So(se.CommitCount, ShouldEqual, 0)
				So(se.Err().Error(), ShouldContainSubstring, "station")
			})

			Convey("It should record the step timer with the failed status", func() {
				_, err := stepTimer(reg, "failing", "FAILED")
				So(err, ShouldBeNil)
			})
		})
	})
}
