package job

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrExecutionAlreadyRunning is returned when launching an instance which has a running execution.
	ErrExecutionAlreadyRunning = errors.New("job execution is already running")

	// ErrInstanceAlreadyComplete is returned when launching an instance which has completed before.
	ErrInstanceAlreadyComplete = errors.New("job instance is already complete")
)

// Repository persists the executions of jobs and steps.
type Repository interface {
	// CreateExecution creates an execution of the job instance identified by given name and parameters.
	// It fails with ErrExecutionAlreadyRunning or ErrInstanceAlreadyComplete when the instance
	// cannot be launched again.
	CreateExecution(ctx context.Context, jobName string, params Parameters) (*Execution, error)
	UpdateExecution(ctx context.Context, e *Execution) error

	// AddStepExecution assigns an ID to given step execution and stores it.
	AddStepExecution(ctx context.Context, se *StepExecution) error
	UpdateStepExecution(ctx context.Context, se *StepExecution) error

	// LastStepExecution returns the latest execution of the step among every execution of the instance.
	// It returns nil if the step has never been executed in the instance.
	LastStepExecution(ctx context.Context, instance *Instance, stepName string) (*StepExecution, error)
}
