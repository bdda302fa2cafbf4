// Package service is the command surface used by the HTTP API and CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/metrics"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/pipeline"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/store"
)

// ErrUnknownCountry is returned for ids missing from the registry.
var ErrUnknownCountry = errors.New("unknown country")

// Cycles queues or stops cycles without waiting for them.
type Cycles interface {
	TriggerNow() bool
	CancelCurrent() bool
}

// Quota reports the search budget of the current day.
type Quota interface {
	Remaining() int
	Used() int
}

// Reporter exposes the outcome of the last cycle.
type Reporter interface {
	LastReport() (pipeline.Report, bool)
	Phase() pipeline.Phase
}

type Options struct {
	// StatePath persists the active country; empty keeps it in memory.
	StatePath string
	Metrics   *metrics.Metrics
	Quota     Quota
	Logger    *logrus.Entry
}

type Service struct {
	registry *country.Registry
	store    store.Store
	cycles   Cycles
	reporter Reporter
	opts     Options
}

func New(reg *country.Registry, st store.Store, cycles Cycles, reporter Reporter, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	opts.Metrics.ActiveCountry(reg.Active().ID)
	return &Service{registry: reg, store: st, cycles: cycles, reporter: reporter, opts: opts}
}

// CountryInfo is one entry of ListCountries.
type CountryInfo struct {
	ID     string `json:"id"`
	Code   string `json:"code,omitempty"`
	Active bool   `json:"active"`
	Cities int    `json:"cities"`
}

func (s *Service) ListCountries() []CountryInfo {
	active := s.registry.Active().ID
	profiles := s.registry.List()
	out := make([]CountryInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, CountryInfo{ID: p.ID, Code: p.Code, Active: p.ID == active, Cities: len(p.Cities)})
	}
	return out
}

func (s *Service) GetCountry(id string) (country.Profile, error) {
	p, ok := s.registry.Get(id)
	if !ok {
		return country.Profile{}, fmt.Errorf("%w: %s", ErrUnknownCountry, id)
	}
	return p, nil
}

func (s *Service) ActiveCountry() country.Profile { return s.registry.Active() }

// SetActiveCountry switches the active profile, persists the choice and
// queues a cycle for it. A running cycle keeps its original country.
func (s *Service) SetActiveCountry(id string) (country.Profile, error) {
	if err := s.registry.SetActive(id); err != nil {
		if errors.Is(err, country.ErrNotFound) {
			return country.Profile{}, fmt.Errorf("%w: %s", ErrUnknownCountry, id)
		}
		return country.Profile{}, err
	}
	p := s.registry.Active()
	log := s.opts.Logger.WithField("country", p.ID)
	if err := store.SaveActiveCountry(s.opts.StatePath, p.ID); err != nil {
		log.WithError(err).Warn("persist active country")
	}
	s.opts.Metrics.ActiveCountry(p.ID)
	queued := s.cycles != nil && s.cycles.TriggerNow()
	log.WithField("queued", queued).Info("active country changed")
	return p, nil
}

// resolve maps id to a profile. An empty id means the active country.
func (s *Service) resolve(id string) (country.Profile, error) {
	if id == "" {
		return s.registry.Active(), nil
	}
	return s.GetCountry(id)
}

// GetEvents returns the stored events of id ordered by start. An empty id
// means the active country.
func (s *Service) GetEvents(ctx context.Context, id string) ([]model.CanonicalEvent, error) {
	p, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	evs, err := s.store.GetAll(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get events %s: %w", p.ID, err)
	}
	if evs == nil {
		evs = []model.CanonicalEvent{}
	}
	return evs, nil
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// EventQuery selects a page of one country's events. Page starts at 1.
type EventQuery struct {
	Country string
	Search  string
	Source  string
	Page    int
	Limit   int
}

type EventPage struct {
	Country string                 `json:"country"`
	Events  []model.CanonicalEvent `json:"events"`
	Total   int                    `json:"total"`
	Page    int                    `json:"page"`
	Limit   int                    `json:"limit"`
}

// FindEvents searches title and location, filters by source and pages the
// result. Out of range page and limit values are clamped.
func (s *Service) FindEvents(ctx context.Context, q EventQuery) (EventPage, error) {
	p, err := s.resolve(q.Country)
	if err != nil {
		return EventPage{}, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultPageSize
	case q.Limit > MaxPageSize:
		q.Limit = MaxPageSize
	}
	page, err := s.store.Find(ctx, store.Query{
		Country: p.ID,
		Text:    q.Search,
		Source:  q.Source,
		Offset:  (q.Page - 1) * q.Limit,
		Limit:   q.Limit,
	})
	if err != nil {
		return EventPage{}, fmt.Errorf("find events %s: %w", p.ID, err)
	}
	if page.Events == nil {
		page.Events = []model.CanonicalEvent{}
	}
	return EventPage{Country: p.ID, Events: page.Events, Total: page.Total, Page: q.Page, Limit: q.Limit}, nil
}

// ResetEvents deletes every stored event of id and returns the country
// reset. It waits for a cycle writing that country to commit first.
func (s *Service) ResetEvents(ctx context.Context, id string) (string, error) {
	p, err := s.resolve(id)
	if err != nil {
		return "", err
	}
	if err := s.store.Reset(ctx, p.ID); err != nil {
		return "", fmt.Errorf("reset %s: %w", p.ID, err)
	}
	s.opts.Logger.WithField("country", p.ID).Warn("events reset")
	return p.ID, nil
}

// ResetAllEvents resets every registered country.
func (s *Service) ResetAllEvents(ctx context.Context) ([]string, error) {
	ids := s.registry.IDs()
	for _, id := range ids {
		if err := s.store.Reset(ctx, id); err != nil {
			return nil, fmt.Errorf("reset %s: %w", id, err)
		}
	}
	s.opts.Logger.WithField("countries", ids).Warn("all events reset")
	return ids, nil
}

// CancelCycle asks the running cycle to stop after its current record. It
// reports false when no cycle is running.
func (s *Service) CancelCycle() bool {
	if s.cycles == nil {
		return false
	}
	ok := s.cycles.CancelCurrent()
	s.opts.Logger.WithField("cancelled", ok).Info("cycle cancel requested")
	return ok
}

// TriggerCycleNow reports whether a new cycle was queued; false means one is
// already pending.
func (s *Service) TriggerCycleNow() bool {
	if s.cycles == nil {
		return false
	}
	return s.cycles.TriggerNow()
}

func (s *Service) LastReport() (pipeline.Report, bool) {
	if s.reporter == nil {
		return pipeline.Report{}, false
	}
	return s.reporter.LastReport()
}

// Stats is the dashboard summary.
type Stats struct {
	store.Stats
	ActiveCountry  string         `json:"active_country"`
	Phase          pipeline.Phase `json:"phase"`
	Running        bool           `json:"running"`
	QuotaRemaining *int           `json:"quota_remaining,omitempty"`
	QuotaUsed      *int           `json:"quota_used,omitempty"`
	LastCycle      *CycleRef      `json:"last_cycle,omitempty"`
}

type CycleRef struct {
	ID         string         `json:"id"`
	State      pipeline.Phase `json:"state"`
	FinishedAt time.Time      `json:"finished_at"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	out := Stats{Stats: st, ActiveCountry: s.registry.Active().ID, Phase: pipeline.Idle}
	if s.reporter != nil {
		out.Phase = s.reporter.Phase()
		out.Running = out.Phase != pipeline.Idle && !out.Phase.Terminal()
		if rep, ok := s.reporter.LastReport(); ok {
			out.LastCycle = &CycleRef{ID: rep.CycleID, State: rep.State, FinishedAt: rep.FinishedAt}
		}
	}
	if s.opts.Quota != nil {
		n, used := s.opts.Quota.Remaining(), s.opts.Quota.Used()
		out.QuotaRemaining = &n
		out.QuotaUsed = &used
		s.opts.Metrics.QuotaRemaining(n)
	}
	return out, nil
}
