package test

import (
	"bytes"
	"testing"

	"github.com/ab180/lrbatch/coordinator"
	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/metric"
	"github.com/ab180/lrbatch/repository"
	"github.com/ab180/lrbatch/test/integration"
	"github.com/ab180/lrbatch/test/testutils"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFailingJob(t *testing.T) {
	Convey("Given a job repository", t, integration.WithEtcd(func(crd coordinator.Coordinator) {
		reg := metric.NewRegistry()
		launcher := job.NewLauncher(repository.New(crd), job.WithRegistry(reg))

		Convey("When running FailingJob", func() {
			var out bytes.Buffer
			j, err := FailingJob(&out)
			So(err, ShouldBeNil)

			e, err := launcher.Run(testutils.ContextWithTimeout(), j, nil)
			So(err, ShouldBeNil)

			Convey("It should fail after writing the first chunk", func() {
				So(e.Status, ShouldEqual, job.Failed)
				So(e.ExitStatus.ExitCode, ShouldEqual, job.ExitFailed.ExitCode)
				So(out.String(), ShouldEqual, "item = 1\nitem = 2\nitem = 3\nitem = 4\nitem = 5\n")

				se := e.StepExecutions[0]
				So(se.WriteCount, ShouldEqual, 5)
				So(se.CommitCount, ShouldEqual, 1)
				So(se.RollbackCount, ShouldEqual, 1)
				So(e.Err().Error(), ShouldContainSubstring, "station")
			})

			Convey("It should report the failure through the meters", func() {
				_, err := reg.Get("spring.batch.item.process").Tag("status", metric.StatusFailure).Timer()
				So(err, ShouldBeNil)
				_, err = reg.Get("spring.batch.step").Tag("name", "print").Tag("status", "FAILED").Timer()
				So(err, ShouldBeNil)
				_, err = reg.Get("spring.batch.job").Tag("name", "failing").Tag("status", "FAILED").Timer()
				So(err, ShouldBeNil)
			})
		})
	}))
}

func TestJobs(t *testing.T) {
	Convey("Every sample job should be buildable", t, func() {
		So(JobNames(), ShouldResemble, []string{"failing", "metrics"})
		for _, name := range JobNames() {
			j, err := Jobs[name](&bytes.Buffer{})
			So(err, ShouldBeNil)
			So(j.Steps(), ShouldNotBeEmpty)
		}
	})
}
