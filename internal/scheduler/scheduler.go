// Package scheduler drives pipeline cycles on a fixed interval and on demand,
// one cycle at a time.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/pipeline"
)

// Runner runs a single cycle.
type Runner interface {
	RunCycle(ctx context.Context) pipeline.Report
}

type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	log        *logrus.Entry

	trigger chan struct{} // one slot: requests made mid-cycle coalesce

	cycleMu sync.Mutex // held for the duration of a cycle
	mu      sync.Mutex
	cancel  context.CancelFunc
}

func New(r Runner, interval time.Duration, runOnStart bool, log *logrus.Entry) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		runner:     r,
		interval:   interval,
		runOnStart: runOnStart,
		log:        log,
		trigger:    make(chan struct{}, 1),
	}
}

// Run loops until ctx is done. It returns nil on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithField("interval", s.interval.String()).Info("scheduler started")
	if s.runOnStart {
		s.RunOnce(ctx)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.WithError(ctx.Err()).Info("scheduler stopping")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.trigger:
			s.RunOnce(ctx)
			ticker.Reset(s.interval)
		}
	}
}

// TriggerNow queues a cycle. It returns false when one is already queued.
func (s *Scheduler) TriggerNow() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce runs exactly one cycle, waiting for any cycle in progress first.
func (s *Scheduler) RunOnce(ctx context.Context) pipeline.Report {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	cycleCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()
	return s.runner.RunCycle(cycleCtx)
}

// CancelCurrent asks the running cycle to stop after its current record. It
// reports whether a cycle was running.
func (s *Scheduler) CancelCurrent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}
