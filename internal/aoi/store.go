package aoi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

const storeTimeLayout = "2006-01-02T15:04:05Z"

const schema = `
CREATE TABLE IF NOT EXISTS aois (
  id         TEXT PRIMARY KEY,
  location   TEXT NOT NULL,
  priority   INTEGER NOT NULL DEFAULT 0,
  starttime  TEXT,
  endtime    TEXT,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS aoi_tags (
  aoi_id TEXT NOT NULL REFERENCES aois(id) ON DELETE CASCADE,
  tag    TEXT NOT NULL,
  PRIMARY KEY(aoi_id, tag)
);
CREATE INDEX IF NOT EXISTS idx_aoi_tags_tag ON aoi_tags(tag);
`

// Store is the SQLite-backed AOI catalog.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the catalog database at path. Use ":memory:" for a
// throwaway catalog.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open aoi store: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open aoi store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create aoi schema: %w", err)
	}
	return &Store{db: db, logger: slog.Default()}, nil
}

// WithLogger sets a custom logger for the store.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts or replaces AOIs. Tags are replaced as a whole.
func (s *Store) Upsert(ctx context.Context, aois ...*AOI) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, a := range aois {
		if err = a.Validate(); err != nil {
			return err
		}
		loc, merr := json.Marshal(a.Location)
		if merr != nil {
			err = fmt.Errorf("encode location of %s: %w", a.ID, merr)
			return err
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO aois(id, location, priority, starttime, endtime, updated_at)
VALUES(?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  location = excluded.location,
  priority = excluded.priority,
  starttime = excluded.starttime,
  endtime = excluded.endtime,
  updated_at = CURRENT_TIMESTAMP`,
			a.ID, string(loc), a.Priority, nullTime(a.StartTime), nullTime(a.EndTime))
		if err != nil {
			return fmt.Errorf("upsert %s: %w", a.ID, err)
		}

		if _, err = tx.ExecContext(ctx, `DELETE FROM aoi_tags WHERE aoi_id = ?`, a.ID); err != nil {
			return fmt.Errorf("clear tags of %s: %w", a.ID, err)
		}
		for _, tag := range a.Tags {
			if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO aoi_tags(aoi_id, tag) VALUES(?, ?)`, a.ID, tag); err != nil {
				return fmt.Errorf("tag %s: %w", a.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Delete removes an AOI.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM aois WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns one AOI.
func (s *Store) Get(ctx context.Context, id string) (*AOI, error) {
	aois, err := s.query(ctx, `SELECT id, location, priority, starttime, endtime FROM aois WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(aois) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return aois[0], nil
}

// List returns every AOI in registration order.
func (s *Store) List(ctx context.Context) ([]*AOI, error) {
	return s.query(ctx, `SELECT id, location, priority, starttime, endtime FROM aois ORDER BY rowid`)
}

// ByIDs returns the listed AOIs in the order given. Unknown ids are logged
// and skipped, as are inactive AOIs.
func (s *Store) ByIDs(ctx context.Context, ids []string) ([]*AOI, error) {
	out := make([]*AOI, 0, len(ids))
	for _, id := range ids {
		a, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("requested aoi not found", slog.String("aoi", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		if a.HasTag(TagInactive) {
			s.logger.Info("skipping inactive aoi", slog.String("aoi", id))
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Active returns the AOIs whose validity window overlaps [start, end], in
// registration order. AOIs tagged inactive are excluded. When tag is not
// empty only AOIs carrying it are returned.
func (s *Store) Active(ctx context.Context, start, end time.Time, tag string) ([]*AOI, error) {
	return s.query(ctx, `
SELECT a.id, a.location, a.priority, a.starttime, a.endtime
FROM aois a
WHERE (a.starttime IS NULL OR a.starttime <= ?)
  AND (a.endtime IS NULL OR a.endtime >= ?)
  AND NOT EXISTS (SELECT 1 FROM aoi_tags t WHERE t.aoi_id = a.id AND t.tag = ?)
  AND (? = '' OR EXISTS (SELECT 1 FROM aoi_tags t WHERE t.aoi_id = a.id AND t.tag = ?))
ORDER BY a.rowid`,
		formatTime(end), formatTime(start), TagInactive, tag, tag)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*AOI, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query aois: %w", err)
	}
	defer rows.Close()

	var out []*AOI
	for rows.Next() {
		var (
			a          AOI
			loc        string
			start, end sql.NullString
		)
		if err := rows.Scan(&a.ID, &loc, &a.Priority, &start, &end); err != nil {
			return nil, fmt.Errorf("scan aoi: %w", err)
		}
		a.Location = &geojson.Geometry{}
		if err := json.Unmarshal([]byte(loc), a.Location); err != nil {
			s.logger.Warn("skipping aoi with unreadable location", slog.String("aoi", a.ID), slog.String("error", err.Error()))
			continue
		}
		if a.StartTime, err = parseNullTime(start); err != nil {
			return nil, fmt.Errorf("aoi %s starttime: %w", a.ID, err)
		}
		if a.EndTime, err = parseNullTime(end); err != nil {
			return nil, fmt.Errorf("aoi %s endtime: %w", a.ID, err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aois: %w", err)
	}

	for _, a := range out {
		if a.Tags, err = s.tags(ctx, a.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) tags(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM aoi_tags WHERE aoi_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("query tags of %s: %w", id, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(storeTimeLayout)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(storeTimeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
