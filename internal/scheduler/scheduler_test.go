package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testScheduler() *Scheduler {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(logrus.NewEntry(logger))
}

func TestScheduleAtFiresOnce(t *testing.T) {
	s := testScheduler()
	defer s.Shutdown()

	var fired atomic.Int32
	s.ScheduleAt("one", time.Now().Add(10*time.Millisecond), func(context.Context) {
		fired.Add(1)
	})

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !s.Has("one") }, time.Second, 5*time.Millisecond, "one-shot removes itself")
}

func TestScheduleAtPastFiresImmediately(t *testing.T) {
	s := testScheduler()
	defer s.Shutdown()

	var fired atomic.Int32
	s.ScheduleAt("past", time.Now().Add(-time.Hour), func(context.Context) {
		fired.Add(1)
	})
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduleAtReplacesById(t *testing.T) {
	s := testScheduler()
	defer s.Shutdown()

	var first, second atomic.Int32
	s.ScheduleAt("job", time.Now().Add(20*time.Millisecond), func(context.Context) { first.Add(1) })
	s.ScheduleAt("job", time.Now().Add(30*time.Millisecond), func(context.Context) { second.Add(1) })

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, first.Load(), "replaced arming never fires")
}

func TestRemoveDisarms(t *testing.T) {
	s := testScheduler()
	defer s.Shutdown()

	var fired atomic.Int32
	s.ScheduleAt("doomed", time.Now().Add(30*time.Millisecond), func(context.Context) { fired.Add(1) })
	assert.True(t, s.Has("doomed"))
	s.Remove("doomed")
	assert.False(t, s.Has("doomed"))

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())

	s.Remove("never-existed") // no-op
}

func TestScheduleEveryTicks(t *testing.T) {
	s := testScheduler()
	defer s.Shutdown()

	var ticks atomic.Int32
	s.ScheduleEvery("tick", 15*time.Millisecond, func(context.Context) { ticks.Add(1) })

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduleEverySkipsOverlap(t *testing.T) {
	s := testScheduler()
	defer s.Shutdown()

	var running atomic.Int32
	var overlapped atomic.Bool
	s.ScheduleEvery("slow", 10*time.Millisecond, func(context.Context) {
		if running.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(35 * time.Millisecond)
		running.Add(-1)
	})

	time.Sleep(150 * time.Millisecond)
	assert.False(t, overlapped.Load(), "overlapping ticks must be skipped")
}

func TestShutdownStopsJobs(t *testing.T) {
	s := testScheduler()

	var ticks atomic.Int32
	s.ScheduleEvery("tick", 10*time.Millisecond, func(context.Context) { ticks.Add(1) })
	time.Sleep(35 * time.Millisecond)
	s.Shutdown()

	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, ticks.Load())
	assert.False(t, s.Has("tick"))
}

func TestPanickingJobDoesNotKillScheduler(t *testing.T) {
	s := testScheduler()
	defer s.Shutdown()

	var after atomic.Int32
	s.ScheduleAt("boom", time.Now(), func(context.Context) { panic("boom") })
	s.ScheduleAt("next", time.Now().Add(20*time.Millisecond), func(context.Context) { after.Add(1) })

	assert.Eventually(t, func() bool { return after.Load() == 1 }, time.Second, 5*time.Millisecond)
}
