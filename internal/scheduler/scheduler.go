// Package scheduler runs time-triggered jobs: one-shot downsells and
// subscription expiries, interval reconciliation and webhook audits.
// Jobs are addressed by id so a re-schedule replaces the previous arming.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type job struct {
	id     string
	timer  *time.Timer
	ticker *time.Ticker
	done   chan struct{}
	// running guards the max-one-instance rule for interval jobs.
	running sync.Mutex
}

// Scheduler is safe for concurrent use. All jobs run with the scheduler's
// base context so they observe shutdown.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Entry
}

func New(logger *logrus.Entry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// ScheduleAt arms a one-shot job. An existing job with the same id is
// replaced. The job removes itself after firing.
func (s *Scheduler) ScheduleAt(id string, at time.Time, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)

	j := &job{id: id, done: make(chan struct{})}
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	j.timer = time.AfterFunc(delay, func() {
		defer s.Remove(id)
		select {
		case <-s.ctx.Done():
			return
		case <-j.done:
			return
		default:
		}
		s.run(id, fn)
	})
	s.jobs[id] = j
}

// ScheduleEvery arms an interval job. The first run happens after one full
// interval. Overlapping runs are skipped, never queued.
func (s *Scheduler) ScheduleEvery(id string, every time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)

	j := &job{id: id, done: make(chan struct{}), ticker: time.NewTicker(every)}
	s.jobs[id] = j

	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-j.done:
				return
			case <-j.ticker.C:
				if !j.running.TryLock() {
					s.logger.WithField("job", id).Warn("interval job still running, skipping tick")
					continue
				}
				s.run(id, fn)
				j.running.Unlock()
			}
		}
	}()
}

// Remove disarms a job. Removing an unknown id is a no-op.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// Has reports whether a job with the id is armed.
func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// Shutdown cancels every job and the base context.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.jobs {
		s.removeLocked(id)
	}
	s.cancel()
}

func (s *Scheduler) removeLocked(id string) {
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	delete(s.jobs, id)
	if j.timer != nil {
		j.timer.Stop()
	}
	if j.ticker != nil {
		j.ticker.Stop()
	}
	select {
	case <-j.done:
	default:
		close(j.done)
	}
}

func (s *Scheduler) run(id string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{"job": id, "panic": r}).Error("scheduled job panicked")
		}
	}()
	fn(s.ctx)
}
