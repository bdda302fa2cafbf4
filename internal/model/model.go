package model

import (
	"sort"
	"time"
)

// RawCandidate is a single item returned by a connector before normalization.
type RawCandidate struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	DateText    string    `json:"date_text"`
	Location    string    `json:"location"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
	// Scoped is set when the query that produced the candidate already
	// targeted the active country.
	Scoped bool `json:"scoped"`
}

// NormalizedEvent is a candidate with a usable title and a parsed start time.
type NormalizedEvent struct {
	Title       string // display form
	TitleKey    string // folded form used for comparison
	Start       time.Time
	Location    string
	LocationKey string
	Source      string
	URL         string
	Summary     string
	Country     string // profile the record was evaluated under
	Scoped      bool
	Labels      map[string]string
}

// Provenance is one (source, url) pair that contributed to a canonical event.
type Provenance struct {
	Source string `json:"source"`
	URL    string `json:"url"`
}

// CanonicalEvent is the deduplicated, persisted representation of one event.
type CanonicalEvent struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	TitleKey            string            `json:"title_key"`
	Start               time.Time         `json:"start"`
	Location            string            `json:"location"`
	Country             string            `json:"country"`
	Provenance          []Provenance      `json:"provenance"`
	FirstSeen           time.Time         `json:"first_seen"`
	LastUpdated         time.Time         `json:"last_updated"`
	NeedsReconciliation bool              `json:"needs_reconciliation,omitempty"`
	Labels              map[string]string `json:"labels,omitempty"`
}

// HasProvenance reports whether p is already recorded.
func (e *CanonicalEvent) HasProvenance(p Provenance) bool {
	for _, have := range e.Provenance {
		if have == p {
			return true
		}
	}
	return false
}

// AddProvenance records p if absent and keeps the set sorted. It reports
// whether the set changed.
func (e *CanonicalEvent) AddProvenance(p Provenance) bool {
	if e.HasProvenance(p) {
		return false
	}
	e.Provenance = append(e.Provenance, p)
	SortProvenance(e.Provenance)
	return true
}

// SortProvenance orders pairs by source then url.
func SortProvenance(ps []Provenance) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Source != ps[j].Source {
			return ps[i].Source < ps[j].Source
		}
		return ps[i].URL < ps[j].URL
	})
}

// SortByStart orders events by start time ascending, ties broken by ID.
func SortByStart(evs []CanonicalEvent) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}

// Clone returns a copy that shares no slices or maps with e.
func (e CanonicalEvent) Clone() CanonicalEvent {
	out := e
	if e.Provenance != nil {
		out.Provenance = append([]Provenance(nil), e.Provenance...)
	}
	if e.Labels != nil {
		out.Labels = make(map[string]string, len(e.Labels))
		for k, v := range e.Labels {
			out.Labels[k] = v
		}
	}
	return out
}
