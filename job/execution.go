package job

import (
	"context"
	"time"

	"github.com/ab180/lrbatch/metric"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Instance is a job identified by its name and parameters. It may be executed more than once
// until one of its executions completes.
type Instance struct {
	ID      int64  `json:"id"`
	JobName string `json:"jobName"`
	Key     string `json:"key"`
}

// Execution is a single run of a job instance.
type Execution struct {
	baseStatus
	ID             int64
	Instance       *Instance
	Parameters     Parameters
	CreatedAt      time.Time
	StepExecutions []*StepExecution

	failures *multierror.Error
	repo     Repository
	metrics  *metric.Batch
}

// NewExecution returns an execution which has not started yet.
func NewExecution(id int64, instance *Instance, params Parameters) *Execution {
	if params == nil {
		params = Parameters{}
	}
	return &Execution{
		baseStatus: newBaseStatus(),
		ID:         id,
		Instance:   instance,
		Parameters: params,
		CreatedAt:  time.Now(),
	}
}

func (e *Execution) JobName() string {
	if e.Instance == nil {
		return ""
	}
	return e.Instance.JobName
}

// bind attaches the repository and the meters the execution reports to.
func (e *Execution) bind(repo Repository, metrics *metric.Batch) {
	e.repo = repo
	e.metrics = metrics
}

// Metrics returns the meters the execution reports to.
func (e *Execution) Metrics() *metric.Batch {
	if e.metrics == nil {
		return metric.NewBatch(metric.Global, metric.DefaultPrefix)
	}
	return e.metrics
}

// NewStepExecution creates an execution of given step within the job execution.
func (e *Execution) NewStepExecution(stepName string) *StepExecution {
	se := &StepExecution{
		baseStatus: newBaseStatus(),
		StepName:   stepName,
		Execution:  e,
	}
	e.StepExecutions = append(e.StepExecutions, se)
	return se
}

// AddFailure records an error which occurred outside of the steps.
func (e *Execution) AddFailure(err error) {
	e.failures = multierror.Append(e.failures, err)
}

// FailureMessages returns the messages of the errors recorded by AddFailure.
func (e *Execution) FailureMessages() []string {
	return failureMessages(e.failures)
}

// Err returns every error occurred in the job and its steps, or nil if there was none.
func (e *Execution) Err() error {
	var all *multierror.Error
	if e.failures != nil {
		all = multierror.Append(all, e.failures.Errors...)
	}
	for _, se := range e.StepExecutions {
		if se.failures != nil {
			all = multierror.Append(all, se.failures.Errors...)
		}
	}
	return all.ErrorOrNil()
}

// Summary returns the counts of every step execution prefixed by the step name,
// along with their totals.
func (e *Execution) Summary() metric.Counts {
	total := make(metric.Counts)
	perStep := make(metric.Counts)
	for _, se := range e.StepExecutions {
		total.Add(se.Counts())
		perStep = perStep.Assign(se.Counts().AddPrefix(se.StepName + "."))
	}
	return perStep.Assign(total.AddPrefix("total."))
}

func (e *Execution) update(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	return errors.Wrapf(e.repo.UpdateExecution(ctx, e), "update execution %d", e.ID)
}

// StepExecution is a single run of a step within a job execution.
type StepExecution struct {
	baseStatus
	ID        int64
	StepName  string
	Execution *Execution `json:"-"`

	ReadCount     int
	WriteCount    int
	FilterCount   int
	CommitCount   int
	RollbackCount int

	failures *multierror.Error
}

// Contribution is what a step did since its last commit.
type Contribution struct {
	ReadCount   int
	FilterCount int
	WriteCount  int
}

func (se *StepExecution) JobName() string {
	if se.Execution == nil {
		return ""
	}
	return se.Execution.JobName()
}

// Metrics returns the meters the step reports to.
func (se *StepExecution) Metrics() *metric.Batch {
	if se.Execution == nil {
		return metric.NewBatch(metric.Global, metric.DefaultPrefix)
	}
	return se.Execution.Metrics()
}

// MeterTags returns the tags identifying the step on item and chunk meters.
func (se *StepExecution) MeterTags() []metric.Tag {
	return []metric.Tag{
		metric.NewTag("job.name", se.JobName()),
		metric.NewTag("step.name", se.StepName),
	}
}

// Commit applies the contribution and persists the step execution.
func (se *StepExecution) Commit(ctx context.Context, c Contribution) error {
	se.ReadCount += c.ReadCount
	se.FilterCount += c.FilterCount
	se.WriteCount += c.WriteCount
	se.CommitCount++
	// a written chunk is recorded even if ctx has been canceled meanwhile
	return se.update(context.WithoutCancel(ctx))
}

// Rollback discards the current contribution.
func (se *StepExecution) Rollback() {
	se.RollbackCount++
}

func (se *StepExecution) AddFailure(err error) {
	se.failures = multierror.Append(se.failures, err)
}

// FailureMessages returns the messages of the errors occurred in the step.
func (se *StepExecution) FailureMessages() []string {
	return failureMessages(se.failures)
}

// Err returns errors occurred in the step, or nil if there was none.
func (se *StepExecution) Err() error {
	return se.failures.ErrorOrNil()
}

func (se *StepExecution) Counts() metric.Counts {
	return metric.Counts{
		"read":     uint64(se.ReadCount),
		"write":    uint64(se.WriteCount),
		"filter":   uint64(se.FilterCount),
		"commit":   uint64(se.CommitCount),
		"rollback": uint64(se.RollbackCount),
	}
}

func (se *StepExecution) repository() Repository {
	if se.Execution == nil {
		return nil
	}
	return se.Execution.repo
}

func (se *StepExecution) update(ctx context.Context) error {
	repo := se.repository()
	if repo == nil {
		return nil
	}
	return errors.Wrapf(repo.UpdateStepExecution(ctx, se), "update step execution %s", se.StepName)
}

func failureMessages(errs *multierror.Error) []string {
	if errs == nil {
		return nil
	}
	return lo.Map(errs.Errors, func(err error, _ int) string { return err.Error() })
}
