package job

import (
	"context"
	"fmt"

	"github.com/ab180/lrbatch/metric"
	"github.com/airbloc/logger"
	"github.com/pkg/errors"
	"github.com/therne/errorist"
)

var log = logger.New("job")

// Step is a unit of work of a job.
type Step interface {
	Name() string

	// Execute runs the step body. Returning an error fails the step and its job.
	Execute(ctx context.Context, se *StepExecution) error
}

// Job is an ordered list of steps executed as a unit.
type Job struct {
	name      string
	steps     []Step
	listeners []Listener
}

func New(name string, steps ...Step) *Job {
	return &Job{
		name:  name,
		steps: steps,
	}
}

// Start replaces the steps of the job with given one.
func (j *Job) Start(s Step) *Job {
	j.steps = []Step{s}
	return j
}

// Next appends a step to run after the current last step.
func (j *Job) Next(s Step) *Job {
	j.steps = append(j.steps, s)
	return j
}

// WithListener registers a listener called on every execution of the job.
func (j *Job) WithListener(l Listener) *Job {
	j.listeners = append(j.listeners, l)
	return j
}

func (j *Job) Name() string {
	return j.name
}

func (j *Job) Steps() []Step {
	return j.steps
}

// GetStep returns the step with given name, or nil if there is no such step.
func (j *Job) GetStep(name string) Step {
	for _, s := range j.steps {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Execute runs the steps in order until one of them does not complete.
// The outcome is recorded on the execution rather than returned. A canceled context stops
// the job before its next step, and the job ends as STOPPED.
func (j *Job) Execute(ctx context.Context, e *Execution, listeners ...Listener) {
	metrics := e.Metrics()
	activeSample := metrics.CreateLongTaskTimer("job.active", "Active jobs", metric.NewTag("name", j.name)).Start()
	sample := metric.StartSample()

	listeners = append(append([]Listener{}, listeners...), j.listeners...)

	e.start()
	if err := j.run(ctx, e, listeners); err != nil {
		if isStopped(err) {
			log.Warn("Job {} has been stopped: {}", j.name, err)
			e.Status = Stopped
			e.ExitStatus = ExitStopped.WithError(err)
		} else {
			log.Error("Encountered an error executing job {}: {}", j.name, err)
			e.Status = Failed
			e.ExitStatus = ExitFailed.WithError(err)
		}
		e.AddFailure(err)
	} else if len(e.StepExecutions) == 0 {
		e.Status = Completed
		e.ExitStatus = e.ExitStatus.And(ExitNoop.AddExitDescription("All steps already completed or no steps configured for this job."))
	}
	e.end()

	for _, l := range listeners {
		l.AfterJob(ctx, e)
	}
	if err := e.update(context.WithoutCancel(ctx)); err != nil {
		log.Error("Unable to persist the final status of job {}: {}", j.name, err)
		e.Status = Unknown
		e.ExitStatus = ExitUnknown.WithError(err)
		e.AddFailure(err)
	}

	metrics.StopTimer(sample, "job", "Job duration",
		metric.NewTag("name", j.name),
		metric.NewTag("status", e.ExitStatus.ExitCode),
	)
	activeSample.Stop()
}

func (j *Job) run(ctx context.Context, e *Execution, listeners []Listener) error {
	if err := e.update(ctx); err != nil {
		return err
	}
	for _, l := range listeners {
		if err := l.BeforeJob(ctx, e); err != nil {
			return errors.Wrap(err, "before job")
		}
	}

	var last *StepExecution
	for _, s := range j.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		shouldStart, err := j.shouldStart(ctx, e, s)
		if err != nil {
			return err
		}
		if !shouldStart {
			log.Info("Step already complete, so no action to execute: {}", s.Name())
			continue
		}
		last = e.NewStepExecution(s.Name())
		j.runStep(ctx, s, last)
		if last.Status != Completed {
			break
		}
	}
	if last != nil {
		e.Status = e.Status.Upgrade(last.Status)
		e.ExitStatus = last.ExitStatus
	}
	return nil
}

// shouldStart returns false if the step has already completed in a former execution of the instance.
func (j *Job) shouldStart(ctx context.Context, e *Execution, s Step) (bool, error) {
	if e.repo == nil || e.Instance == nil {
		return true, nil
	}
	last, err := e.repo.LastStepExecution(ctx, e.Instance, s.Name())
	if err != nil {
		return false, errors.Wrapf(err, "find last execution of step %s", s.Name())
	}
	return last == nil || last.Status != Completed, nil
}

func (j *Job) runStep(ctx context.Context, s Step, se *StepExecution) {
	log.Info("Executing step: [{}]", s.Name())
	sample := metric.StartSample()

	se.start()
	err := se.addToRepository(ctx)
	if err == nil {
		err = executeStep(ctx, s, se)
	}
	if err != nil && isStopped(err) {
		log.Warn("Step {} in job {} has been stopped: {}", s.Name(), j.name, err)
		se.Status = Stopped
		se.ExitStatus = se.ExitStatus.And(ExitStopped.WithError(err))
		se.AddFailure(err)
	} else if err != nil {
		log.Error("Encountered an error executing step {} in job {}: {}", s.Name(), j.name, err)
		se.Status = Failed
		se.ExitStatus = se.ExitStatus.And(ExitFailed.WithError(err))
		se.AddFailure(err)
	} else {
		se.Status = se.Status.Upgrade(Completed)
		se.ExitStatus = se.ExitStatus.And(ExitCompleted)
	}
	se.end()

	if err := se.update(context.WithoutCancel(ctx)); err != nil {
		log.Error("Unable to persist the final status of step {}: {}", s.Name(), err)
		se.Status = Unknown
		se.ExitStatus = se.ExitStatus.And(ExitUnknown.WithError(err))
		se.AddFailure(err)
	}

	elapsed := se.Metrics().StopTimer(sample, "step", "Step duration",
		metric.NewTag("name", s.Name()),
		metric.NewTag("job.name", j.name),
		metric.NewTag("status", se.ExitStatus.ExitCode),
	)
	log.Info("Step: [{}] executed in {}", s.Name(), metric.FormatDuration(elapsed))
}

// isStopped returns true if err comes from a canceled context, e.g. on SIGTERM.
func isStopped(err error) bool {
	return errors.Is(err, context.Canceled)
}

// executeStep runs the step body, converting panics into errors.
func executeStep(ctx context.Context, s Step, se *StepExecution) (err error) {
	defer func() {
		if panicErr := errorist.WrapPanic(recover()); panicErr != nil {
			err = errors.Wrapf(panicErr, "panic in step %s", s.Name())
		}
	}()
	return s.Execute(ctx, se)
}

func (se *StepExecution) addToRepository(ctx context.Context) error {
	repo := se.repository()
	if repo == nil {
		return nil
	}
	return errors.Wrapf(repo.AddStepExecution(ctx, se), "add step execution %s", se.StepName)
}

func (j *Job) String() string {
	return fmt.Sprintf("Job[%s](%d steps)", j.name, len(j.steps))
}
