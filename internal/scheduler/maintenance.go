package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/cache"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/metrics"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/store"
)

// Maintenance runs retention pruning and cache cleanup on cron schedules.
type Maintenance struct {
	cron      *cron.Cron
	store     store.Store
	cache     cache.Cache
	retention time.Duration
	metrics   *metrics.Metrics
	log       *logrus.Entry
	now       func() time.Time
}

// NewMaintenance registers the jobs; a nil cache skips the cleanup job.
func NewMaintenance(st store.Store, c cache.Cache, cfg config.ScheduleConfig, m *metrics.Metrics, log *logrus.Entry) (*Maintenance, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	mt := &Maintenance{
		store:     st,
		cache:     c,
		retention: cfg.Retention,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
	if mt.retention <= 0 {
		mt.retention = 30 * 24 * time.Hour
	}
	cl := cron.PrintfLogger(log)
	mt.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	if cfg.PruneSchedule != "" {
		if _, err := mt.cron.AddFunc(cfg.PruneSchedule, func() { _, _ = mt.PruneNow(context.Background()) }); err != nil {
			return nil, fmt.Errorf("prune schedule %q: %w", cfg.PruneSchedule, err)
		}
	}
	if c != nil && cfg.CacheCleanup != "" {
		if _, err := mt.cron.AddFunc(cfg.CacheCleanup, func() { _, _ = mt.CleanupNow(context.Background()) }); err != nil {
			return nil, fmt.Errorf("cache cleanup schedule %q: %w", cfg.CacheCleanup, err)
		}
	}
	return mt, nil
}

func (m *Maintenance) Start() { m.cron.Start() }

// Stop halts the schedule and waits for running jobs or ctx.
func (m *Maintenance) Stop(ctx context.Context) {
	select {
	case <-m.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Jobs is the number of registered jobs.
func (m *Maintenance) Jobs() int { return len(m.cron.Entries()) }

// PruneNow deletes events not updated within the retention window.
func (m *Maintenance) PruneNow(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.retention)
	n, err := m.store.Prune(ctx, cutoff)
	if err != nil {
		m.log.WithError(err).Warn("prune failed")
		return 0, err
	}
	m.metrics.Pruned(n)
	m.log.WithFields(logrus.Fields{"removed": n, "cutoff": cutoff.UTC().Format(time.RFC3339)}).Info("pruned old events")
	return n, nil
}

func (m *Maintenance) CleanupNow(ctx context.Context) (int, error) {
	if m.cache == nil {
		return 0, nil
	}
	n, err := m.cache.Cleanup(ctx)
	if err != nil {
		m.log.WithError(err).Warn("cache cleanup failed")
		return 0, err
	}
	m.log.WithField("removed", n).Debug("cache cleaned")
	return n, nil
}
