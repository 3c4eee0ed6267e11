package retry

import (
	"time"

	"github.com/creasty/defaults"
)

type Options struct {
	// Attempts is the number of calls made before giving up, including the first one.
	Attempts int           `default:"3"`
	Delay    time.Duration `default:"200ms"`
}

type Option func(o *Options)

func WithAttempts(attempts int) Option {
	return func(o *Options) {
		o.Attempts = attempts
	}
}

func WithDelay(delay time.Duration) Option {
	return func(o *Options) {
		o.Delay = delay
	}
}

func buildOptions(opts []Option) (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	for _, optFn := range opts {
		optFn(&o)
	}
	return o
}
