// Package dedup collapses normalized events that describe the same
// real-world event into one canonical record.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/textkey"
)

// ErrAmbiguous marks an event that matched more than one canonical record.
var ErrAmbiguous = errors.New("dedup: multiple canonical matches")

// Tx is the slice of a store transaction the deduplicator needs. It is
// scoped to one country.
type Tx interface {
	FindCandidates(ctx context.Context, from, to time.Time) ([]model.CanonicalEvent, error)
	Upsert(ctx context.Context, ev model.CanonicalEvent) error
}

type Outcome string

const (
	Inserted  Outcome = "inserted"
	Merged    Outcome = "merged"
	Ambiguous Outcome = "ambiguous"
)

// Result reports what Apply did. Flagged lists records marked for
// reconciliation on an ambiguous match.
type Result struct {
	Outcome Outcome
	ID      string
	Flagged []string
}

type Deduplicator struct {
	sim    Similarity
	window time.Duration
	now    func() time.Time
	log    *logrus.Entry
}

type Option func(*Deduplicator)

// WithClock overrides the timestamp source for first-seen/last-updated.
func WithClock(now func() time.Time) Option {
	return func(d *Deduplicator) { d.now = now }
}

// WithLogger sets the entry used for ambiguity warnings.
func WithLogger(l *logrus.Entry) Option {
	return func(d *Deduplicator) { d.log = l }
}

func New(sim Similarity, opts ...Option) *Deduplicator {
	if sim == nil {
		sim = TokenSet{}
	}
	d := &Deduplicator{
		sim:    sim,
		window: 36 * time.Hour,
		now:    func() time.Time { return time.Now().UTC() },
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Matches reports whether ev and c are the same event: similar titles, same
// calendar day and compatible locations.
func (d *Deduplicator) Matches(ev model.NormalizedEvent, c model.CanonicalEvent) bool {
	if !sameDay(ev.Start, c.Start) {
		return false
	}
	if !locationsCompatible(ev.LocationKey, c.Location) {
		return false
	}
	return d.sim.Similar(ev.TitleKey, c.TitleKey)
}

// Apply inserts ev as a new canonical event or merges it into the existing
// match. Display fields of an existing record are never overwritten.
func (d *Deduplicator) Apply(ctx context.Context, tx Tx, ev model.NormalizedEvent) (Result, error) {
	cands, err := tx.FindCandidates(ctx, ev.Start.Add(-d.window), ev.Start.Add(d.window))
	if err != nil {
		return Result{}, fmt.Errorf("find candidates: %w", err)
	}
	var matches []model.CanonicalEvent
	for _, c := range cands {
		if d.Matches(ev, c) {
			matches = append(matches, c)
		}
	}
	id := EventID(ev.Country, ev.TitleKey, ev.Start, ev.LocationKey)
	if len(matches) == 0 {
		// A row already holding the derived ID is the same event.
		for _, c := range cands {
			if c.ID == id {
				matches = append(matches, c)
				break
			}
		}
	}
	now := d.now()
	prov := model.Provenance{Source: ev.Source, URL: ev.URL}

	if len(matches) == 0 {
		ce := model.CanonicalEvent{
			ID:          id,
			Title:       ev.Title,
			TitleKey:    ev.TitleKey,
			Start:       ev.Start,
			Location:    ev.Location,
			Country:     ev.Country,
			Provenance:  []model.Provenance{prov},
			FirstSeen:   now,
			LastUpdated: now,
			Labels:      copyLabels(ev.Labels),
		}
		if err := tx.Upsert(ctx, ce); err != nil {
			return Result{}, fmt.Errorf("insert %s: %w", ce.ID, err)
		}
		return Result{Outcome: Inserted, ID: ce.ID}, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].FirstSeen.Equal(matches[j].FirstSeen) {
			return matches[i].FirstSeen.Before(matches[j].FirstSeen)
		}
		return matches[i].ID < matches[j].ID
	})
	target := matches[0]
	target.AddProvenance(prov)
	target.LastUpdated = now
	if err := tx.Upsert(ctx, target); err != nil {
		return Result{}, fmt.Errorf("merge %s: %w", target.ID, err)
	}
	if len(matches) == 1 {
		return Result{Outcome: Merged, ID: target.ID}, nil
	}

	res := Result{Outcome: Ambiguous, ID: target.ID}
	for _, other := range matches[1:] {
		res.Flagged = append(res.Flagged, other.ID)
		if other.NeedsReconciliation {
			continue
		}
		other.NeedsReconciliation = true
		if err := tx.Upsert(ctx, other); err != nil {
			return res, fmt.Errorf("flag %s: %w", other.ID, err)
		}
	}
	d.log.WithFields(logrus.Fields{
		"country": ev.Country,
		"title":   ev.Title,
		"kept":    target.ID,
		"flagged": res.Flagged,
	}).Warn(ErrAmbiguous.Error())
	return res, nil
}

// sameDay compares calendar days in a's location.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// locationsCompatible holds when both are empty or they share a word.
func locationsCompatible(evKey, canonical string) bool {
	a := textkey.TokenSet(evKey)
	b := textkey.TokenSet(canonical)
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0
	}
	for t := range a {
		if _, ok := b[t]; ok {
			return true
		}
	}
	return false
}

func copyLabels(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
