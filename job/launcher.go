package job

import (
	"context"

	"github.com/ab180/lrbatch/metric"
	"github.com/creasty/defaults"
	"github.com/pkg/errors"
)

type Options struct {
	// MeterPrefix is prepended to the names of the meters reported by jobs.
	MeterPrefix string `default:"spring.batch"`
	Listeners   []Listener

	registry *metric.Registry
}

type Option func(o *Options)

// WithRegistry sets the registry the jobs report to. Defaults to metric.Global.
func WithRegistry(r *metric.Registry) Option {
	return func(o *Options) {
		o.registry = r
	}
}

func WithMeterPrefix(prefix string) Option {
	return func(o *Options) {
		o.MeterPrefix = prefix
	}
}

// WithListener registers a listener called on every job run by the launcher.
func WithListener(l Listener) Option {
	return func(o *Options) {
		o.Listeners = append(o.Listeners, l)
	}
}

func buildOptions(opts []Option) (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	for _, optFn := range opts {
		optFn(&o)
	}
	if o.registry == nil {
		o.registry = metric.Global
	}
	return o
}

// Launcher runs jobs synchronously.
type Launcher struct {
	repo    Repository
	metrics *metric.Batch
	opt     Options
}

func NewLauncher(repo Repository, opts ...Option) *Launcher {
	opt := buildOptions(opts)
	return &Launcher{
		repo:    repo,
		metrics: metric.NewBatch(opt.registry, opt.MeterPrefix),
		opt:     opt,
	}
}

// Run executes the job and blocks until it finishes. A failure of the job itself is reported on the
// returned execution; errors are returned only when the job could not be launched.
func (l *Launcher) Run(ctx context.Context, j *Job, params Parameters) (*Execution, error) {
	if params == nil {
		params = Parameters{}
	}
	e, err := l.repo.CreateExecution(ctx, j.Name(), params)
	if err != nil {
		return nil, errors.Wrapf(err, "launch job %s", j.Name())
	}
	e.bind(l.repo, l.metrics)

	log.Info("Job: [{}] launched with the following parameters: {}", j.Name(), params)
	j.Execute(ctx, e, l.opt.Listeners...)
	log.Info("Job: [{}] completed with the following parameters: {} and the following status: [{}] in {}",
		j.Name(), params, e.Status, metric.FormatDuration(e.Elapsed()))

	if e.Status != Completed {
		log.Warn("Job {} did not complete. Summary:\n{}", j.Name(), e.Summary())
	}
	return e, nil
}
