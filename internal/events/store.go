package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
	uid          TEXT PRIMARY KEY,
	year         INTEGER NOT NULL,
	month        INTEGER NOT NULL,
	day          INTEGER NOT NULL,
	title        TEXT NOT NULL,
	recurring    INTEGER NOT NULL DEFAULT 0,
	counts_years INTEGER NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT 'manual',
	updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_date ON events(year, month, day);
CREATE INDEX IF NOT EXISTS idx_events_yearly ON events(month, day) WHERE recurring = 1;
`

const selectColumns = `SELECT uid, year, month, day, title, recurring, counts_years, source, updated_at FROM events`

// Store persists events in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// The special path ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: apply schema: %w", config.ErrStoreOpen, err)
	}

	slog.Debug(config.MsgStoreOpened,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyPath, path)

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock overrides the time source used for UpdatedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Put inserts or replaces an event by UID.
func (s *Store) Put(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (uid, year, month, day, title, recurring, counts_years, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			year         = excluded.year,
			month        = excluded.month,
			day          = excluded.day,
			title        = excluded.title,
			recurring    = excluded.recurring,
			counts_years = excluded.counts_years,
			source       = excluded.source,
			updated_at   = excluded.updated_at
	`, e.UID, e.Date.Year, e.Date.Month, e.Date.Day, e.Title, e.Recurring, e.CountsYears, e.Source,
		e.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreWrite, err)
	}
	return nil
}

// SetNote saves the free-text note for a day. The text is trimmed and an
// empty result removes the note.
func (s *Store) SetNote(ctx context.Context, d jalali.Date, text string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		err := s.DeleteNote(ctx, d)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.Put(ctx, Event{
		UID:    NoteUID(d),
		Date:   d,
		Title:  text,
		Source: config.EventSourceManual,
	})
}

// DeleteNote removes the note attached to d.
func (s *Store) DeleteNote(ctx context.Context, d jalali.Date) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.Delete(ctx, NoteUID(d))
}

// Delete removes an event by UID.
func (s *Store) Delete(ctx context.Context, uid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreWrite, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	return nil
}

// DeleteSource removes every event imported from source whose UID is not in keep.
// It returns the number of rows removed.
func (s *Store) DeleteSource(ctx context.Context, source string, keep map[string]struct{}) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uid FROM events WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	var stale []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
		}
		if _, ok := keep[uid]; !ok {
			stale = append(stale, uid)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}

	for _, uid := range stale {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE uid = ?`, uid); err != nil {
			return 0, fmt.Errorf("%s: %w", config.ErrStoreWrite, err)
		}
	}
	return len(stale), nil
}

// Get returns a single event.
func (s *Store) Get(ctx context.Context, uid string) (Event, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE uid = ?`, uid)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	return e, err
}

// List returns every event ordered by date then UID.
func (s *Store) List(ctx context.Context) ([]Event, error) {
	return s.query(ctx, selectColumns+` ORDER BY year, month, day, uid`)
}

// ForDate returns the events observed on d, including recurring ones.
func (s *Store) ForDate(ctx context.Context, d jalali.Date) ([]Event, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	yearlyDay := d.Day
	if d.Month == 12 && d.Day == 29 && !jalali.IsLeap(d.Year) {
		yearlyDay = 30
	}
	candidates, err := s.query(ctx, selectColumns+`
		WHERE (year = ? AND month = ? AND day = ?)
		   OR (recurring = 1 AND month = ? AND day IN (?, ?))
		ORDER BY recurring, year, uid`,
		d.Year, d.Month, d.Day, d.Month, d.Day, yearlyDay)
	if err != nil {
		return nil, err
	}

	out := candidates[:0]
	for _, e := range candidates {
		if e.OccursOn(d) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Snapshot loads the whole store into an immutable Set.
func (s *Store) Snapshot(ctx context.Context) (Set, error) {
	all, err := s.List(ctx)
	if err != nil {
		return Set{}, err
	}
	return NewSet(all), nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(r scanner) (Event, error) {
	var (
		e       Event
		updated string
	)
	err := r.Scan(&e.UID, &e.Date.Year, &e.Date.Month, &e.Date.Day, &e.Title,
		&e.Recurring, &e.CountsYears, &e.Source, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, err
	}
	if err != nil {
		return Event{}, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return Event{}, fmt.Errorf("%s: updated_at: %w", config.ErrStoreQuery, err)
	}
	return e, nil
}
