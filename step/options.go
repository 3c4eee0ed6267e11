package step

import (
	"time"

	"github.com/creasty/defaults"
)

type ChunkOptions struct {
	// ChunkSize is the number of items read before a chunk is written and committed.
	ChunkSize int `default:"1"`

	// WriteAttempts is the number of times a chunk is written before the step gives up.
	WriteAttempts int           `default:"1"`
	RetryDelay    time.Duration `default:"100ms"`
}

type ChunkOption func(o *ChunkOptions)

func WithChunkSize(size int) ChunkOption {
	return func(o *ChunkOptions) {
		o.ChunkSize = size
	}
}

// WithWriteRetry makes a failed chunk write retried up to given attempts.
func WithWriteRetry(attempts int, delay time.Duration) ChunkOption {
	return func(o *ChunkOptions) {
		o.WriteAttempts = attempts
		o.RetryDelay = delay
	}
}

func buildChunkOptions(opts []ChunkOption) (o ChunkOptions) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	for _, optFn := range opts {
		optFn(&o)
	}
	return o
}
