package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/allot/internal/scheduler"
	"github.com/okian/allot/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

type fakeExpirer struct {
	n        int
	err      error
	deadline bool
}

func (f *fakeExpirer) ExpirePhases(ctx context.Context) (int, error) {
	_, f.deadline = ctx.Deadline()
	return f.n, f.err
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler", t, func() {
		s := scheduler.New(scheduler.WithLogger(logger.Nop()))

		Convey("When a job has a bad schedule", func() {
			err := s.AddJob("every tuesday-ish", &countingJob{})

			Convey("Then registration fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "counting")
			})
		})

		Convey("When a job runs immediately", func() {
			job := &countingJob{}
			err := s.RunNow(job)

			Convey("Then it ran once", func() {
				So(err, ShouldBeNil)
				So(int(job.runs.Load()), ShouldEqual, 1)
			})
		})

		Convey("When a failing job runs immediately", func() {
			boom := errors.New("boom")
			err := s.RunNow(&countingJob{err: boom})

			Convey("Then its error is returned", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When a job is scheduled every second", func() {
			job := &countingJob{}
			So(s.AddJob("@every 1s", job), ShouldBeNil)
			s.Start()
			deadline := time.Now().Add(3 * time.Second)
			for job.runs.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(50 * time.Millisecond)
			}
			s.Stop()

			Convey("Then it fires", func() {
				So(int(job.runs.Load()), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestPhaseExpiryJob(t *testing.T) {
	Convey("Given a phase expiry job", t, func() {
		exp := &fakeExpirer{n: 2}
		job := scheduler.NewPhaseExpiryJob(exp, 0, logger.Nop())

		Convey("Then it is named for metrics", func() {
			So(job.Name(), ShouldEqual, "phase_expiry")
		})

		Convey("When it runs", func() {
			err := job.Run()

			Convey("Then it expires phases under a deadline", func() {
				So(err, ShouldBeNil)
				So(exp.deadline, ShouldBeTrue)
			})
		})

		Convey("When expiry fails", func() {
			exp.err = errors.New("store closed")

			Convey("Then the job fails", func() {
				So(job.Run(), ShouldEqual, exp.err)
			})
		})
	})
}
