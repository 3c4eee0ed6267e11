package step_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ab180/lrbatch/item"
	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/metric"
	"github.com/ab180/lrbatch/step"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func oneToTen() *item.ListReader[int] {
	return item.NewListReader(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
}

// collector is a writer which keeps the chunks written to it.
type collector struct {
	chunks [][]int
	fails  int
}

func (c *collector) Write(_ context.Context, items []int) error {
	if c.fails > 0 {
		c.fails--
		return errors.New("temporary failure")
	}
	c.chunks = append(c.chunks, append([]int{}, items...))
	return nil
}

func itemTimer(reg *metric.Registry, name, stepName, status string) (*metric.Timer, error) {
	return reg.Get("spring.batch."+name).
		Tags(
			metric.NewTag("job.name", "job"),
			metric.NewTag("step.name", stepName),
			metric.NewTag("status", status),
		).
		Timer()
}

func TestChunkStep(t *testing.T) {
	Convey("Given a chunk step over ten items with a chunk size of 5", t, func() {
		reg := metric.NewRegistry()
		w := &collector{}
		s, err := step.NewChunk[int, int]("chunk", oneToTen(), nil, w, step.WithChunkSize(5))
		So(err, ShouldBeNil)

		Convey("When the job runs", func() {
			e := runJob(reg, job.New("job", s))
			So(e.Status, ShouldEqual, job.Completed)

			Convey("It should write the items by two chunks", func() {
				So(w.chunks, ShouldResemble, [][]int{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}})
			})

			Convey("It should count reads, writes and commits", func() {
				se := e.StepExecutions[0]
				So(se.ReadCount, ShouldEqual, 10)
				So(se.WriteCount, ShouldEqual, 10)
				So(se.FilterCount, ShouldEqual, 0)
				So(se.CommitCount, ShouldEqual, 3)
				So(se.RollbackCount, ShouldEqual, 0)
			})

			Convey("It should time every read including the end of input", func() {
				read, err := itemTimer(reg, "item.read", "chunk", metric.StatusSuccess)
				So(err, ShouldBeNil)
				So(read.Count(), ShouldEqual, 11)

				process, err := itemTimer(reg, "item.process", "chunk", metric.StatusSuccess)
				So(err, ShouldBeNil)
				So(process.Count(), ShouldEqual, 10)

				write, err := itemTimer(reg, "chunk.write", "chunk", metric.StatusSuccess)
				So(err, ShouldBeNil)
				So(write.Count(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a processor filtering every item", t, func() {
		reg := metric.NewRegistry()
		w := &collector{}
		dropAll := item.ProcessorFunc[int, int](func(_ context.Context, in int) (int, bool, error) {
			return in, false, nil
		})
		s, err := step.NewChunk[int, int]("filter", oneToTen(), dropAll, w, step.WithChunkSize(5))
		So(err, ShouldBeNil)

		Convey("When the job runs", func() {
			e := runJob(reg, job.New("job", s))

			Convey("It should still write empty chunks", func() {
				So(e.Status, ShouldEqual, job.Completed)
				So(w.chunks, ShouldResemble, [][]int{{}, {}})

				se := e.StepExecutions[0]
				So(se.FilterCount, ShouldEqual, 10)
				So(se.WriteCount, ShouldEqual, 0)

				write, err := itemTimer(reg, "chunk.write", "filter", metric.StatusSuccess)
				So(err, ShouldBeNil)
				So(write.Count(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a reader failing on the third item", t, func() {
		reg := metric.NewRegistry()
		n := 0
		r := item.ReaderFunc[int](func(context.Context) (int, error) {
			n++
			if n == 3 {
				return 0, errors.New("corrupted input")
			}
			return n, nil
		})
		w := &collector{}
		s, err := step.NewChunk[int, int]("broken", r, nil, w, step.WithChunkSize(5))
		So(err, ShouldBeNil)

		Convey("When the job runs", func() {
			e := runJob(reg, job.New("job", s))

			Convey("It should fail the step and the job", func() {
				So(e.Status, ShouldEqual, job.Failed)
				So(e.ExitStatus.ExitCode, ShouldEqual, job.ExitFailed.ExitCode)
				So(w.chunks, ShouldBeEmpty)

				se := e.StepExecutions[0]
				So(se.Status, ShouldEqual, job.Failed)
				So(se.RollbackCount, ShouldEqual, 1)
				So(se.ReadCount, ShouldEqual, 0)
				So(se.Err().Error(), ShouldContainSubstring, "read item #3")
			})

			Convey("It should time the failed read", func() {
				failed, err := itemTimer(reg, "item.read", "broken", metric.StatusFailure)
				So(err, ShouldBeNil)
				So(failed.Count(), ShouldEqual, 1)

				succeeded, err := itemTimer(reg, "item.read", "broken", metric.StatusSuccess)
				So(err, ShouldBeNil)
				So(succeeded.Count(), ShouldEqual, 2)
			})

			Convey("It should tag the job timer with the failed status", func() {
				_, err := reg.Get("spring.batch.job").Tag("name", "job").Tag("status", "FAILED").Timer()
				So(err, ShouldBeNil)
			})
		})
	})

	Convey("Given a writer failing once", t, func() {
		reg := metric.NewRegistry()
		w := &collector{fails: 1}

		Convey("When the write is retried", func() {
			s, err := step.NewChunk[int, int]("retry", oneToTen(), nil, w,
				step.WithChunkSize(10),
				step.WithWriteRetry(2, time.Millisecond),
			)
			So(err, ShouldBeNil)
			e := runJob(reg, job.New("job", s))

			Convey("It should complete", func() {
				So(e.Status, ShouldEqual, job.Completed)
				So(w.chunks, ShouldHaveLength, 1)
				So(w.chunks[0], ShouldHaveLength, 10)
			})
		})

		Convey("When the write is not retried", func() {
			s, err := step.NewChunk[int, int]("no-retry", oneToTen(), nil, w, step.WithChunkSize(10))
			So(err, ShouldBeNil)
			e := runJob(reg, job.New("job", s))

			Convey("It should fail with a failed chunk.write", func() {
				So(e.Status, ShouldEqual, job.Failed)
				So(e.StepExecutions[0].RollbackCount, ShouldEqual, 1)

				_, err := itemTimer(reg, "chunk.write", "no-retry", metric.StatusFailure)
				So(err, ShouldBeNil)
			})
		})
	})
}

// numbers is assignable from []int without being the same type.
type numbers []int

func TestChunkStep_PassThrough(t *testing.T) {
	Convey("Given a chunk step without a processor into an assignable type", t, func() {
		var written []numbers
		w := item.WriterFunc[numbers](func(_ context.Context, items []numbers) error {
			written = append(written, items...)
			return nil
		})
		r := item.NewListReader([]int{1, 2}, []int{3})
		s, err := step.NewChunk[[]int, numbers]("convert", r, nil, w, step.WithChunkSize(5))
		So(err, ShouldBeNil)

		Convey("It should write the items unchanged", func() {
			e := runJob(metric.NewRegistry(), job.New("job", s))
			So(e.Status, ShouldEqual, job.Completed)
			So(written, ShouldResemble, []numbers{{1, 2}, {3}})
		})
	})

	Convey("Given a chunk step without a processor into an interface type", t, func() {
		var written []any
		w := item.WriterFunc[any](func(_ context.Context, items []any) error {
			written = append(written, items...)
			return nil
		})
		s, err := step.NewChunk[int, any]("boxed", item.NewListReader(1, 2), nil, w)
		So(err, ShouldBeNil)

		Convey("It should write the items unchanged", func() {
			e := runJob(metric.NewRegistry(), job.New("job", s))
			So(e.Status, ShouldEqual, job.Completed)
			So(written, ShouldResemble, []any{1, 2})
		})
	})
}

func TestChunkStep_WrappedEOF(t *testing.T) {
	Convey("Given a reader ending its input with a wrapped io.EOF", t, func() {
		n := 0
		r := item.ReaderFunc[int](func(context.Context) (int, error) {
			if n == 3 {
				return 0, errors.Wrap(io.EOF, "no more rows")
			}
			n++
			return n, nil
		})
		w := &collector{}
		s, err := step.NewChunk[int, int]("wrapped", r, nil, w, step.WithChunkSize(5))
		So(err, ShouldBeNil)

		Convey("It should complete as the end of input", func() {
			e := runJob(metric.NewRegistry(), job.New("job", s))
			So(e.Status, ShouldEqual, job.Completed)
			So(w.chunks, ShouldResemble, [][]int{{1, 2, 3}})
			So(e.StepExecutions[0].ReadCount, ShouldEqual, 3)
		})
	})
}

func TestChunkStep_Cancel(t *testing.T) {
	Convey("Given a job canceled while writing its first chunk", t, func() {
		reg := metric.NewRegistry()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var written [][]int
		w := item.WriterFunc[int](func(_ context.Context, items []int) error {
			written = append(written, append([]int{}, items...))
			cancel()
			return nil
		})
		s, err := step.NewChunk[int, int]("chunk", oneToTen(), nil, w, step.WithChunkSize(5))
		So(err, ShouldBeNil)
		next := step.NewTasklet("next", step.NoopTasklet)

		Convey("When the job runs", func() {
			e := runJobWithContext(ctx, reg, job.New("job", s, next))

			Convey("It should commit the written chunk and stop before the next one", func() {
				So(written, ShouldResemble, [][]int{{1, 2, 3, 4, 5}})

				se := e.StepExecutions[0]
				So(se.Status, ShouldEqual, job.Stopped)
				So(se.ReadCount, ShouldEqual, 5)
				So(se.WriteCount, ShouldEqual, 5)
				So(se.CommitCount, ShouldEqual, 1)
				So(se.RollbackCount, ShouldEqual, 0)
			})

			Convey("It should stop the job without running the next step", func() {
				So(e.Status, ShouldEqual, job.Stopped)
				So(e.ExitStatus.ExitCode, ShouldEqual, job.ExitStopped.ExitCode)
				So(e.StepExecutions, ShouldHaveLength, 1)

				_, err := reg.Get("spring.batch.job").Tag("name", "job").Tag("status", "STOPPED").Timer()
				So(err, ShouldBeNil)
			})
		})
	})
}

// trackedReader records the lifecycle calls made on it.
type trackedReader struct {
	*item.ListReader[int]
	opened, closed bool
}

func (r *trackedReader) Open(context.Context) error {
	r.opened = true
	return nil
}

func (r *trackedReader) Close(context.Context) error {
	r.closed = true
	return nil
}

func TestChunkStep_Stream(t *testing.T) {
	Convey("Given a reader implementing item.Stream", t, func() {
		r := &trackedReader{ListReader: oneToTen()}
		s, err := step.NewChunk[int, int]("stream", r, nil, &collector{}, step.WithChunkSize(3))
		So(err, ShouldBeNil)

		Convey("It should be opened and closed by the step", func() {
			e := runJob(metric.NewRegistry(), job.New("job", s))
			So(e.Status, ShouldEqual, job.Completed)
			So(r.opened, ShouldBeTrue)
			So(r.closed, ShouldBeTrue)
		})
	})
}

func TestNewChunk(t *testing.T) {
	Convey("Given invalid arguments", t, func() {
		w := &collector{}

		Convey("It should reject a non-positive chunk size", func() {
			_, err := step.NewChunk[int, int]("s", oneToTen(), nil, w, step.WithChunkSize(0))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "chunk size")
		})

		Convey("It should reject a missing reader or writer", func() {
			_, err := step.NewChunk[int, int]("s", nil, nil, w)
			So(err, ShouldNotBeNil)

			_, err = step.NewChunk[int, int]("s", oneToTen(), nil, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("It should require a processor when items cannot pass through", func() {
			printer := item.NewPrintWriter[string](io.Discard)
			_, err := step.NewChunk[int, string]("s", oneToTen(), nil, printer)
			So(err, ShouldNotBeNil)
		})
	})
}
