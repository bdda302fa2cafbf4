// Package pipeline runs one fetch, normalize, filter and dedup cycle for the
// active country.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/dedup"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/geofilter"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/metrics"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/normalize"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/postprocess"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/source"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/store"
)

// ErrNoConnectors fails a cycle that has nothing to fetch from.
var ErrNoConnectors = errors.New("pipeline: no connectors configured")

// Profiles is the view of the country registry a cycle needs.
type Profiles interface {
	Active() country.Profile
	TokensFor(id string) (country.Tokens, bool)
}

type Options struct {
	Workers      int
	FetchTimeout time.Duration
	Post         *postprocess.Engine
	Metrics      *metrics.Metrics
	Quota        interface{ Remaining() int }
	Logger       *logrus.Entry
	Now          func() time.Time
}

type Orchestrator struct {
	profiles   Profiles
	connectors []source.Connector
	store      store.Store
	dedup      *dedup.Deduplicator
	normalizer *normalize.Normalizer
	filter     *geofilter.Filter
	opts       Options

	phase atomic.Value // Phase
	mu    sync.Mutex
	last  *Report
}

func New(profiles Profiles, connectors []source.Connector, st store.Store, dd *dedup.Deduplicator, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	o := &Orchestrator{
		profiles:   profiles,
		connectors: connectors,
		store:      st,
		dedup:      dd,
		normalizer: normalize.New(),
		filter:     geofilter.New(profiles),
		opts:       opts,
	}
	o.phase.Store(Idle)
	return o
}

// Phase is the state of the running cycle, or the final state of the last one.
func (o *Orchestrator) Phase() Phase { return o.phase.Load().(Phase) }

// LastReport returns the most recent finished cycle.
func (o *Orchestrator) LastReport() (Report, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Report{}, false
	}
	return *o.last, true
}

// RunCycle runs one cycle against the profile active at its start. When ctx
// is cancelled the cycle stops after the record in flight and commits what
// was already applied.
func (o *Orchestrator) RunCycle(ctx context.Context) Report {
	p := o.profiles.Active()
	rep := Report{
		CycleID:     uuid.NewString(),
		Country:     p.ID,
		StartedAt:   o.opts.Now(),
		Dropped:     map[normalize.Reason]int{},
		FilteredOut: map[geofilter.Reason]int{},
	}
	log := o.opts.Logger.WithFields(logrus.Fields{"cycle_id": rep.CycleID, "country": p.ID})
	log.Info("cycle started")

	o.phase.Store(Fetching)
	cands := o.fetch(ctx, p, &rep, log)
	if err := ctx.Err(); err != nil && len(cands) == 0 {
		rep.Cancelled = true
		return o.finish(rep, Failed, fmt.Errorf("cycle cancelled during fetch: %w", err), log)
	}
	if len(rep.Failures) == len(o.connectors) {
		err := ErrNoConnectors
		if len(o.connectors) > 0 {
			err = errors.New("all connectors failed")
		}
		return o.finish(rep, Failed, err, log)
	}

	o.phase.Store(Normalizing)
	events := o.normalize(cands, p, &rep, log)

	o.phase.Store(Filtering)
	kept := o.filterEvents(events, p, &rep, log)

	o.phase.Store(Deduplicating)
	if err := o.apply(ctx, p.ID, kept, &rep, log); err != nil {
		return o.finish(rep, Failed, err, log)
	}
	if len(rep.Failures) > 0 {
		return o.finish(rep, PartialFailure, nil, log)
	}
	return o.finish(rep, Committed, nil, log)
}

type fetchResult struct {
	out []model.RawCandidate
	err error
}

func (o *Orchestrator) fetch(ctx context.Context, p country.Profile, rep *Report, log *logrus.Entry) []model.RawCandidate {
	results := make([]fetchResult, len(o.connectors))
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i, c := range o.connectors {
		g.Go(func() error {
			results[i] = o.fetchOne(ctx, c, p)
			return nil
		})
	}
	_ = g.Wait()

	var all []model.RawCandidate
	for i, r := range results {
		name := o.connectors[i].Name()
		if r.err != nil {
			rep.Failures = append(rep.Failures, ConnectorFailure{Source: name, Err: r.err})
			o.opts.Metrics.ConnectorFailed(name)
			log.WithField("source", name).WithError(r.err).Warn("connector failed")
			continue
		}
		o.opts.Metrics.Fetched(name, len(r.out))
		log.WithFields(logrus.Fields{"source": name, "candidates": len(r.out)}).Debug("connector fetched")
		all = append(all, r.out...)
	}
	rep.Fetched = len(all)
	return all
}

// fetchOne bounds c by the fetch timeout even if c ignores its context.
func (o *Orchestrator) fetchOne(ctx context.Context, c source.Connector, p country.Profile) fetchResult {
	cctx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()
	done := make(chan fetchResult, 1)
	go func() {
		out, err := c.Fetch(cctx, p)
		done <- fetchResult{out: out, err: err}
	}()
	select {
	case r := <-done:
		return r
	case <-cctx.Done():
		return fetchResult{err: fmt.Errorf("fetch: %w", cctx.Err())}
	}
}

func (o *Orchestrator) normalize(cands []model.RawCandidate, p country.Profile, rep *Report, log *logrus.Entry) []model.NormalizedEvent {
	loc := location(p)
	now := o.opts.Now()
	out := make([]model.NormalizedEvent, 0, len(cands))
	for _, c := range cands {
		if c.RetrievedAt.IsZero() {
			c.RetrievedAt = now
		}
		c.RetrievedAt = c.RetrievedAt.In(loc)
		ev, err := o.normalizer.Normalize(c, p.ID)
		if err != nil {
			var drop *normalize.Drop
			if errors.As(err, &drop) {
				rep.Dropped[drop.Reason]++
				o.opts.Metrics.Dropped(string(drop.Reason))
			}
			log.WithFields(logrus.Fields{"source": c.Source, "reason": err}).Debug("candidate dropped")
			continue
		}
		out = append(out, ev)
	}
	rep.Normalized = len(out)
	return out
}

func (o *Orchestrator) filterEvents(events []model.NormalizedEvent, p country.Profile, rep *Report, log *logrus.Entry) []model.NormalizedEvent {
	out := make([]model.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		d := o.filter.Evaluate(ev, p)
		if !d.Keep {
			rep.FilteredOut[d.Reason]++
			o.opts.Metrics.Rejected(string(d.Reason))
			log.WithFields(logrus.Fields{"title": ev.Title, "reason": d.Reason, "token": d.Token}).Debug("event filtered")
			continue
		}
		if o.opts.Post != nil {
			ev = o.opts.Post.Apply(ev)
		}
		out = append(out, ev)
	}
	rep.Kept = len(out)
	return out
}

// apply runs every kept event through dedup under one store Tx. Store calls
// ignore cancellation so the record in flight and the commit complete.
func (o *Orchestrator) apply(ctx context.Context, countryID string, events []model.NormalizedEvent, rep *Report, log *logrus.Entry) error {
	if len(events) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		rep.Cancelled = true
		return nil
	}
	tx, err := o.store.Begin(ctx, countryID)
	if err != nil {
		if ctx.Err() != nil {
			rep.Cancelled = true
			return nil
		}
		return err
	}
	sctx := context.WithoutCancel(ctx)
	for _, ev := range events {
		if ctx.Err() != nil {
			rep.Cancelled = true
			log.Info("cycle cancelled, committing applied records")
			break
		}
		res, err := o.dedup.Apply(sctx, tx, ev)
		if err != nil {
			if rbErr := tx.Rollback(sctx); rbErr != nil {
				log.WithError(rbErr).Warn("rollback failed")
			}
			return fmt.Errorf("%w: dedup: %v", store.ErrUnavailable, err)
		}
		switch res.Outcome {
		case dedup.Inserted:
			rep.Inserted++
		case dedup.Merged:
			rep.Merged++
		case dedup.Ambiguous:
			rep.Merged++
			rep.Ambiguous++
		}
	}
	if err := tx.Commit(sctx); err != nil {
		return err
	}
	o.opts.Metrics.Deduped(rep.Inserted, rep.Merged-rep.Ambiguous, rep.Ambiguous)
	return nil
}

func (o *Orchestrator) finish(rep Report, state Phase, err error, log *logrus.Entry) Report {
	rep.State = state
	rep.FinishedAt = o.opts.Now()
	if err != nil {
		rep.Err = err.Error()
	}
	o.phase.Store(state)
	o.opts.Metrics.CycleDone(string(state), rep.Duration(), state != Failed, rep.FinishedAt)
	if o.opts.Quota != nil {
		o.opts.Metrics.QuotaRemaining(o.opts.Quota.Remaining())
	}

	fields := logrus.Fields{
		"state":        state,
		"fetched":      rep.Fetched,
		"normalized":   rep.Normalized,
		"dropped":      rep.DroppedTotal(),
		"filtered_out": rep.FilteredTotal(),
		"inserted":     rep.Inserted,
		"merged":       rep.Merged,
		"ambiguous":    rep.Ambiguous,
		"failures":     len(rep.Failures),
		"duration":     rep.Duration().Truncate(time.Millisecond).String(),
	}
	if state == Failed {
		log.WithFields(fields).WithError(err).Error("cycle failed")
	} else {
		log.WithFields(fields).Info("cycle finished")
	}

	o.mu.Lock()
	o.last = &rep
	o.mu.Unlock()
	return rep
}

func location(p country.Profile) *time.Location {
	if p.TimeZone != "" {
		if loc, err := time.LoadLocation(p.TimeZone); err == nil {
			return loc
		}
	}
	return time.UTC
}
