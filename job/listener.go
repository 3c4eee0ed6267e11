package job

import "context"

// Listener is notified of the lifecycle of job executions.
type Listener interface {
	// BeforeJob is called after the execution started. Returning an error fails the job without running any step.
	BeforeJob(ctx context.Context, e *Execution) error

	// AfterJob is called when the execution finished, whatever its status is.
	AfterJob(ctx context.Context, e *Execution)
}

// ListenerFuncs builds a Listener from functions. Nil functions are skipped.
type ListenerFuncs struct {
	Before func(ctx context.Context, e *Execution) error
	After  func(ctx context.Context, e *Execution)
}

func (l ListenerFuncs) BeforeJob(ctx context.Context, e *Execution) error {
	if l.Before == nil {
		return nil
	}
	return l.Before(ctx, e)
}

func (l ListenerFuncs) AfterJob(ctx context.Context, e *Execution) {
	if l.After != nil {
		l.After(ctx, e)
	}
}
