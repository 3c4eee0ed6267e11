package step

import (
	"context"
	"io"
	"reflect"

	"github.com/ab180/lrbatch/item"
	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/metric"
	"github.com/ab180/lrbatch/pkg/retry"
	"github.com/pkg/errors"
)

// ChunkStep reads items one by one, processes them and writes them by chunks.
type ChunkStep[I, O any] struct {
	name      string
	reader    item.Reader[I]
	processor item.Processor[I, O]
	writer    item.Writer[O]
	opt       ChunkOptions
}

// NewChunk creates a chunk-oriented step. The processor may be nil when I can be written as O,
// in which case items pass through unchanged.
func NewChunk[I, O any](name string, r item.Reader[I], p item.Processor[I, O], w item.Writer[O], opts ...ChunkOption) (*ChunkStep[I, O], error) {
	opt := buildChunkOptions(opts)
	if opt.ChunkSize <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", opt.ChunkSize)
	}
	if opt.WriteAttempts <= 0 {
		return nil, errors.Errorf("write attempts must be positive, got %d", opt.WriteAttempts)
	}
	if r == nil {
		return nil, errors.New("reader is required")
	}
	if w == nil {
		return nil, errors.New("writer is required")
	}
	if p == nil {
		in, out := reflect.TypeOf((*I)(nil)).Elem(), reflect.TypeOf((*O)(nil)).Elem()
		if !in.AssignableTo(out) {
			return nil, errors.Errorf("a processor is required to convert %s into %s", in, out)
		}
	}
	return &ChunkStep[I, O]{
		name:      name,
		reader:    r,
		processor: p,
		writer:    w,
		opt:       opt,
	}, nil
}

var _ job.Step = (*ChunkStep[int, int])(nil)

func (s *ChunkStep[I, O]) Name() string {
	return s.name
}

func (s *ChunkStep[I, O]) Execute(ctx context.Context, se *job.StepExecution) (err error) {
	if err := s.open(ctx); err != nil {
		return err
	}
	defer func() {
		if closeErr := s.close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := s.doChunk(ctx, se)
		if err != nil {
			se.Rollback()
			return err
		}
		if done {
			return nil
		}
	}
}

// doChunk reads, processes and writes a chunk, then commits it.
// It returns true when the reader has been exhausted.
func (s *ChunkStep[I, O]) doChunk(ctx context.Context, se *job.StepExecution) (done bool, err error) {
	inputs := make([]I, 0, s.opt.ChunkSize)
	for len(inputs) < s.opt.ChunkSize {
		in, err := s.read(ctx, se)
		if errors.Is(err, io.EOF) {
			done = true
			break
		}
		if err != nil {
			return false, errors.Wrapf(err, "read item #%d", se.ReadCount+len(inputs)+1)
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return true, se.Commit(ctx, job.Contribution{})
	}

	outputs := make([]O, 0, len(inputs))
	for i, in := range inputs {
		out, keep, err := s.process(ctx, se, in)
		if err != nil {
			return false, errors.Wrapf(err, "process item #%d", se.ReadCount+i+1)
		}
		if keep {
			outputs = append(outputs, out)
		}
	}
	if err := s.write(ctx, se, outputs); err != nil {
		return false, errors.Wrapf(err, "write chunk of %d items", len(outputs))
	}

	return done, se.Commit(ctx, job.Contribution{
		ReadCount:   len(inputs),
		FilterCount: len(inputs) - len(outputs),
		WriteCount:  len(outputs),
	})
}

func (s *ChunkStep[I, O]) read(ctx context.Context, se *job.StepExecution) (I, error) {
	sample := metric.StartSample()
	in, err := s.reader.Read(ctx)
	s.stopTimer(se, sample, "item.read", "Item reading duration", err == nil || errors.Is(err, io.EOF))
	return in, err
}

func (s *ChunkStep[I, O]) process(ctx context.Context, se *job.StepExecution, in I) (out O, keep bool, err error) {
	sample := metric.StartSample()
	if s.processor == nil {
		out, keep = passThrough[I, O](in), true
	} else {
		out, keep, err = s.processor.Process(ctx, in)
	}
	s.stopTimer(se, sample, "item.process", "Item processing duration", err == nil)
	return out, keep, err
}

// passThrough assigns an item to the output type. NewChunk has checked that I is assignable to O.
func passThrough[I, O any](in I) (out O) {
	reflect.ValueOf(&out).Elem().Set(reflect.ValueOf(&in).Elem())
	return out
}

func (s *ChunkStep[I, O]) write(ctx context.Context, se *job.StepExecution, outputs []O) error {
	sample := metric.StartSample()
	err := retry.Do(ctx, func() error {
		if err := s.writer.Write(ctx, outputs); err != nil {
			log.Warn("Failed to write a chunk of step {}: {}", s.name, err)
			return err
		}
		return nil
	}, retry.WithAttempts(s.opt.WriteAttempts), retry.WithDelay(s.opt.RetryDelay))
	s.stopTimer(se, sample, "chunk.write", "Chunk writing duration", err == nil)
	return err
}

func (s *ChunkStep[I, O]) stopTimer(se *job.StepExecution, sample metric.Sample, name, description string, ok bool) {
	status := metric.StatusSuccess
	if !ok {
		status = metric.StatusFailure
	}
	tags := append(se.MeterTags(), metric.NewTag("status", status))
	se.Metrics().StopTimer(sample, name, description, tags...)
}

func (s *ChunkStep[I, O]) open(ctx context.Context) error {
	for _, c := range s.streams() {
		if err := c.Open(ctx); err != nil {
			return errors.Wrapf(err, "open stream of step %s", s.name)
		}
	}
	return nil
}

func (s *ChunkStep[I, O]) close(ctx context.Context) error {
	for _, c := range s.streams() {
		if err := c.Close(ctx); err != nil {
			return errors.Wrapf(err, "close stream of step %s", s.name)
		}
	}
	return nil
}

func (s *ChunkStep[I, O]) streams() (streams []item.Stream) {
	for _, c := range []any{s.reader, s.processor, s.writer} {
		if st, ok := c.(item.Stream); ok {
			streams = append(streams, st)
		}
	}
	return streams
}
