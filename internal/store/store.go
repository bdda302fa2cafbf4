// Package store persists canonical events, partitioned by country.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
)

// ErrUnavailable wraps every failure to reach or write the persistence layer.
var ErrUnavailable = errors.New("store unavailable")

// Tx is a single-writer scope over one country's events. Writes are visible
// to FindCandidates within the same Tx.
type Tx interface {
	FindCandidates(ctx context.Context, from, to time.Time) ([]model.CanonicalEvent, error)
	Upsert(ctx context.Context, ev model.CanonicalEvent) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Store interface {
	// Begin blocks until the country's writer scope is free or ctx is done.
	Begin(ctx context.Context, country string) (Tx, error)
	// GetAll returns the country's events ordered by start time.
	GetAll(ctx context.Context, country string) ([]model.CanonicalEvent, error)
	// Prune deletes events not updated since cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	// Find returns one page of the country's events matching q, ordered by
	// start time, with the total match count.
	Find(ctx context.Context, q Query) (Page, error)
	// Reset deletes every event of country.
	Reset(ctx context.Context, country string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats summarizes the store for the dashboard.
type Stats struct {
	Total               int            `json:"total"`
	ByCountry           map[string]int `json:"by_country"`
	BySource            map[string]int `json:"by_source"`
	NeedsReconciliation int            `json:"needs_reconciliation"`
}

// Query filters one country's events. Text matches title or location
// case-insensitively; Source matches any provenance source exactly, ignoring
// case. Limit 0 returns every match after Offset.
type Query struct {
	Country string
	Text    string
	Source  string
	Offset  int
	Limit   int
}

type Page struct {
	Events []model.CanonicalEvent `json:"events"`
	Total  int                    `json:"total"`
}

func (q Query) matches(ev model.CanonicalEvent) bool {
	if t := strings.ToLower(strings.TrimSpace(q.Text)); t != "" {
		if !strings.Contains(strings.ToLower(ev.Title), t) && !strings.Contains(strings.ToLower(ev.Location), t) {
			return false
		}
	}
	if src := strings.TrimSpace(q.Source); src != "" {
		for _, p := range ev.Provenance {
			if strings.EqualFold(p.Source, src) {
				return true
			}
		}
		return false
	}
	return true
}

// window clamps Offset and Limit to n matches.
func (q Query) window(n int) (int, int) {
	from := min(max(q.Offset, 0), n)
	to := n
	if q.Limit > 0 {
		to = min(from+q.Limit, n)
	}
	return from, to
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// Open builds the configured store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "file":
		return OpenFile(cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
