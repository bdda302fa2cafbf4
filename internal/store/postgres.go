package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

const selectEvents = `SELECT e.id, e.country, e.title, e.title_key, e.start_at, e.location,
       e.first_seen, e.last_updated, e.needs_reconciliation, e.labels, p.source, p.url
  FROM canonical_events e
  LEFT JOIN event_provenance p ON p.event_id = e.id`

const upsertEvent = `INSERT INTO canonical_events
    (id, country, title, title_key, start_at, location, first_seen, last_updated, needs_reconciliation, labels)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)
ON CONFLICT (id) DO UPDATE SET
    last_updated = EXCLUDED.last_updated,
    needs_reconciliation = EXCLUDED.needs_reconciliation`

const insertProvenance = `INSERT INTO event_provenance (event_id, source, url)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`

const eventFilter = `e.country = $1
   AND ($2 = '' OR e.title ILIKE '%' || $2 || '%' OR e.location ILIKE '%' || $2 || '%')
   AND ($3 = '' OR EXISTS (SELECT 1 FROM event_provenance fp WHERE fp.event_id = e.id AND lower(fp.source) = lower($3)))`

// PostgresStore keeps events in two tables. Each Tx holds a transaction
// scoped advisory lock on the country.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects through the pgx stdlib driver and applies the
// embedded migrations.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, unavailable("open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, unavailable("ping", err)
	}
	s := NewPostgres(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres wraps an existing handle without migrating.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate runs every embedded migration in name order. They are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
			return unavailable("migrate "+name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Begin(ctx context.Context, country string) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, country); err != nil {
		_ = tx.Rollback()
		return nil, unavailable("lock "+country, err)
	}
	return &pgTx{tx: tx, country: country}, nil
}

func (s *PostgresStore) GetAll(ctx context.Context, country string) ([]model.CanonicalEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+`
 WHERE e.country = $1
 ORDER BY e.start_at, e.id, p.source, p.url`, country)
	if err != nil {
		return nil, unavailable("get all", err)
	}
	return scanEvents(rows)
}

func (s *PostgresStore) Find(ctx context.Context, q Query) (Page, error) {
	text, src := strings.TrimSpace(q.Text), strings.TrimSpace(q.Source)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM canonical_events e WHERE `+eventFilter,
		q.Country, text, src).Scan(&total); err != nil {
		return Page{}, unavailable("find", err)
	}
	// LIMIT NULL is unbounded.
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	rows, err := s.db.QueryContext(ctx, selectEvents+`
 WHERE e.id IN (SELECT e.id FROM canonical_events e WHERE `+eventFilter+`
                ORDER BY e.start_at, e.id LIMIT $4 OFFSET $5)
 ORDER BY e.start_at, e.id, p.source, p.url`, q.Country, text, src, limit, max(q.Offset, 0))
	if err != nil {
		return Page{}, unavailable("find", err)
	}
	evs, err := scanEvents(rows)
	if err != nil {
		return Page{}, err
	}
	if evs == nil {
		evs = []model.CanonicalEvent{}
	}
	return Page{Events: evs, Total: total}, nil
}

func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM canonical_events WHERE last_updated < $1`, cutoff)
	if err != nil {
		return 0, unavailable("prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("prune", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Reset(ctx context.Context, country string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM canonical_events WHERE country = $1`, country); err != nil {
		return unavailable("reset", err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByCountry: map[string]int{}, BySource: map[string]int{}}
	rows, err := s.db.QueryContext(ctx, `SELECT country, COUNT(*), COUNT(*) FILTER (WHERE needs_reconciliation)
  FROM canonical_events GROUP BY country`)
	if err != nil {
		return st, unavailable("stats", err)
	}
	for rows.Next() {
		var c string
		var n, flagged int
		if err := rows.Scan(&c, &n, &flagged); err != nil {
			rows.Close()
			return st, unavailable("stats", err)
		}
		st.ByCountry[c] = n
		st.Total += n
		st.NeedsReconciliation += flagged
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, unavailable("stats", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT source, COUNT(DISTINCT event_id) FROM event_provenance GROUP BY source`)
	if err != nil {
		return st, unavailable("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return st, unavailable("stats", err)
		}
		st.BySource[src] = n
	}
	if err := rows.Err(); err != nil {
		return st, unavailable("stats", err)
	}
	return st, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

type pgTx struct {
	tx      *sql.Tx
	country string
}

func (t *pgTx) FindCandidates(ctx context.Context, from, to time.Time) ([]model.CanonicalEvent, error) {
	rows, err := t.tx.QueryContext(ctx, selectEvents+`
 WHERE e.country = $1 AND e.start_at BETWEEN $2 AND $3
 ORDER BY e.id, p.source, p.url`, t.country, from, to)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	return scanEvents(rows)
}

func (t *pgTx) Upsert(ctx context.Context, ev model.CanonicalEvent) error {
	if ev.Country != t.country {
		return fmt.Errorf("upsert %s: country %q outside tx scope %q", ev.ID, ev.Country, t.country)
	}
	labels := "{}"
	if len(ev.Labels) > 0 {
		b, err := json.Marshal(ev.Labels)
		if err != nil {
			return fmt.Errorf("encode labels: %w", err)
		}
		labels = string(b)
	}
	if _, err := t.tx.ExecContext(ctx, upsertEvent,
		ev.ID, ev.Country, ev.Title, ev.TitleKey, ev.Start, ev.Location,
		ev.FirstSeen, ev.LastUpdated, ev.NeedsReconciliation, labels); err != nil {
		return fmt.Errorf("upsert %s: %w", ev.ID, err)
	}
	for _, p := range ev.Provenance {
		if _, err := t.tx.ExecContext(ctx, insertProvenance, ev.ID, p.Source, p.URL); err != nil {
			return fmt.Errorf("provenance %s: %w", ev.ID, err)
		}
	}
	return nil
}

func (t *pgTx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (t *pgTx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// scanEvents folds joined provenance rows back into events, keeping the
// order of first appearance.
func scanEvents(rows *sql.Rows) ([]model.CanonicalEvent, error) {
	defer rows.Close()
	var out []model.CanonicalEvent
	index := map[string]int{}
	for rows.Next() {
		var (
			ev          model.CanonicalEvent
			labels      []byte
			source, url sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Country, &ev.Title, &ev.TitleKey, &ev.Start, &ev.Location,
			&ev.FirstSeen, &ev.LastUpdated, &ev.NeedsReconciliation, &labels, &source, &url); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		i, seen := index[ev.ID]
		if !seen {
			if len(labels) > 0 {
				if err := json.Unmarshal(labels, &ev.Labels); err != nil {
					return nil, fmt.Errorf("decode labels %s: %w", ev.ID, err)
				}
				if len(ev.Labels) == 0 {
					ev.Labels = nil
				}
			}
			out = append(out, ev)
			i = len(out) - 1
			index[ev.ID] = i
		}
		if source.Valid {
			out[i].Provenance = append(out[i].Provenance, model.Provenance{Source: source.String, URL: url.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
