package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
)

// fileDoc is the on-disk layout of FileStore.
type fileDoc struct {
	Version int                    `json:"version"`
	Events  []model.CanonicalEvent `json:"events"`
}

// FileStore keeps every event in memory and rewrites one JSON document on
// each commit.
type FileStore struct {
	path string

	mu   sync.Mutex // guards data and locks
	data map[string]map[string]model.CanonicalEvent
	// one-slot semaphore per country
	locks map[string]chan struct{}
}

// OpenFile loads path if it exists. An empty path keeps events in memory only.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: map[string]map[string]model.CanonicalEvent{}, locks: map[string]chan struct{}{}}
	if path == "" {
		return s, nil
	}
	var doc fileDoc
	if err := LoadJSON(path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, unavailable("load", err)
	}
	for _, ev := range doc.Events {
		s.partition(ev.Country)[ev.ID] = ev
	}
	return s, nil
}

// partition must be called with mu held.
func (s *FileStore) partition(country string) map[string]model.CanonicalEvent {
	p, ok := s.data[country]
	if !ok {
		p = map[string]model.CanonicalEvent{}
		s.data[country] = p
	}
	return p
}

func (s *FileStore) lockFor(country string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[country]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[country] = l
	}
	return l
}

func (s *FileStore) acquire(ctx context.Context, country string) (func(), error) {
	l := s.lockFor(country)
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *FileStore) Begin(ctx context.Context, country string) (Tx, error) {
	release, err := s.acquire(ctx, country)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	work := make(map[string]model.CanonicalEvent, len(s.data[country]))
	for id, ev := range s.data[country] {
		work[id] = ev
	}
	s.mu.Unlock()
	return &fileTx{s: s, country: country, work: work, release: release}, nil
}

func (s *FileStore) GetAll(_ context.Context, country string) ([]model.CanonicalEvent, error) {
	s.mu.Lock()
	out := make([]model.CanonicalEvent, 0, len(s.data[country]))
	for _, ev := range s.data[country] {
		out = append(out, ev.Clone())
	}
	s.mu.Unlock()
	model.SortByStart(out)
	return out, nil
}

func (s *FileStore) Find(ctx context.Context, q Query) (Page, error) {
	all, err := s.GetAll(ctx, q.Country)
	if err != nil {
		return Page{}, err
	}
	matched := all[:0]
	for _, ev := range all {
		if q.matches(ev) {
			matched = append(matched, ev)
		}
	}
	from, to := q.window(len(matched))
	return Page{Events: matched[from:to], Total: len(matched)}, nil
}

func (s *FileStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	return s.mutateAll(ctx, func(p map[string]model.CanonicalEvent) int {
		n := 0
		for id, ev := range p {
			if ev.LastUpdated.Before(cutoff) {
				delete(p, id)
				n++
			}
		}
		return n
	})
}

func (s *FileStore) Reset(ctx context.Context, country string) error {
	release, err := s.acquire(ctx, country)
	if err != nil {
		return err
	}
	defer release()
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.data[country]
	delete(s.data, country)
	if err := s.persistLocked(); err != nil {
		s.data[country] = old
		return err
	}
	return nil
}

// mutateAll applies fn to every partition under its writer lock and persists
// once.
func (s *FileStore) mutateAll(ctx context.Context, fn func(map[string]model.CanonicalEvent) int) (int, error) {
	s.mu.Lock()
	countries := make([]string, 0, len(s.data))
	for c := range s.data {
		countries = append(countries, c)
	}
	s.mu.Unlock()
	sort.Strings(countries)

	var releases []func()
	defer func() {
		for _, r := range releases {
			r()
		}
	}()
	for _, c := range countries {
		r, err := s.acquire(ctx, c)
		if err != nil {
			return 0, err
		}
		releases = append(releases, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range countries {
		total += fn(s.data[c])
	}
	if total == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *FileStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{ByCountry: map[string]int{}, BySource: map[string]int{}}
	for c, p := range s.data {
		if len(p) == 0 {
			continue
		}
		st.ByCountry[c] = len(p)
		st.Total += len(p)
		for _, ev := range p {
			if ev.NeedsReconciliation {
				st.NeedsReconciliation++
			}
			seen := map[string]bool{}
			for _, pr := range ev.Provenance {
				if !seen[pr.Source] {
					seen[pr.Source] = true
					st.BySource[pr.Source]++
				}
			}
		}
	}
	return st, nil
}

func (s *FileStore) Close() error { return nil }

// persistLocked writes the whole document; mu must be held.
func (s *FileStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	doc := fileDoc{Version: 1}
	for _, p := range s.data {
		for _, ev := range p {
			doc.Events = append(doc.Events, ev)
		}
	}
	sort.Slice(doc.Events, func(i, j int) bool {
		if doc.Events[i].Country != doc.Events[j].Country {
			return doc.Events[i].Country < doc.Events[j].Country
		}
		return doc.Events[i].ID < doc.Events[j].ID
	})
	if err := SaveJSON(s.path, doc); err != nil {
		return unavailable("persist", err)
	}
	return nil
}

type fileTx struct {
	s       *FileStore
	country string
	work    map[string]model.CanonicalEvent
	release func()
	done    bool
}

func (t *fileTx) FindCandidates(_ context.Context, from, to time.Time) ([]model.CanonicalEvent, error) {
	if t.done {
		return nil, errTxDone
	}
	var out []model.CanonicalEvent
	for _, ev := range t.work {
		if inWindow(ev.Start, from, to) {
			out = append(out, ev.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fileTx) Upsert(_ context.Context, ev model.CanonicalEvent) error {
	if t.done {
		return errTxDone
	}
	if ev.Country != t.country {
		return fmt.Errorf("upsert %s: country %q outside tx scope %q", ev.ID, ev.Country, t.country)
	}
	if prev, ok := t.work[ev.ID]; ok {
		ev = mergeExisting(prev, ev)
	} else {
		ev = ev.Clone()
		model.SortProvenance(ev.Provenance)
	}
	t.work[ev.ID] = ev
	return nil
}

func (t *fileTx) Commit(_ context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	defer t.release()

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	old, had := s.data[t.country]
	s.data[t.country] = t.work
	if err := s.persistLocked(); err != nil {
		if had {
			s.data[t.country] = old
		} else {
			delete(s.data, t.country)
		}
		return err
	}
	return nil
}

func (t *fileTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.release()
	return nil
}

var errTxDone = errors.New("store: transaction already finished")

// mergeExisting applies upsert semantics to an existing row: display fields
// and first-seen stay, provenance is unioned, the rest comes from next.
func mergeExisting(prev, next model.CanonicalEvent) model.CanonicalEvent {
	out := prev.Clone()
	for _, p := range next.Provenance {
		out.AddProvenance(p)
	}
	out.LastUpdated = next.LastUpdated
	out.NeedsReconciliation = next.NeedsReconciliation
	if len(out.Labels) == 0 && len(next.Labels) > 0 {
		out.Labels = next.Clone().Labels
	}
	return out
}
