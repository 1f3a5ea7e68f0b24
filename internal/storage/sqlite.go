package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"tg_monitor/internal/model"
	"tg_monitor/migrations"
)

// Accepted on read. Rows written by this package use time.RFC3339Nano; the
// space-separated forms come from older writers and from CURRENT_TIMESTAMP.
var readLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes upserts and keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetLast returns the stored watermark for a source URL.
func (s *SQLite) GetLast(ctx context.Context, sourceURL string) (*model.Watermark, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT group_url, group_id, group_name, last_message_time, last_message_id, updated_at
		 FROM last_messages WHERE group_url = ?`, sourceURL,
	)

	var w model.Watermark
	var groupID, messageID sql.NullInt64
	var name, lastTime, updated sql.NullString
	err := row.Scan(&w.SourceURL, &groupID, &name, &lastTime, &messageID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan watermark: %w", err)
	}
	if !lastTime.Valid {
		return nil, nil
	}

	w.LastMessageTime, err = parseTime(lastTime.String)
	if err != nil {
		return nil, fmt.Errorf("parse last_message_time: %w", err)
	}
	w.PlatformID = groupID.Int64
	w.DisplayName = name.String
	w.LastMessageID = messageID.Int64
	if updated.Valid {
		w.UpdatedAt, err = parseTime(updated.String)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
	}
	return &w, nil
}

// SaveLast inserts or replaces the watermark of src.
func (s *SQLite) SaveLast(ctx context.Context, src model.Source, messageTime time.Time, messageID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO last_messages (group_url, group_id, group_name, last_message_time, last_message_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_url) DO UPDATE SET
		   group_id = excluded.group_id,
		   group_name = excluded.group_name,
		   last_message_time = excluded.last_message_time,
		   last_message_id = excluded.last_message_id,
		   updated_at = excluded.updated_at`,
		src.URL, src.PlatformID, src.DisplayName,
		formatTime(messageTime), messageID, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("upsert watermark: %w", err)
	}
	return nil
}

// GetAll returns every stored watermark keyed by source URL.
func (s *SQLite) GetAll(ctx context.Context) (map[string]model.WatermarkSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_url, last_message_time, group_id, group_name FROM last_messages`,
	)
	if err != nil {
		return nil, fmt.Errorf("query watermarks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]model.WatermarkSnapshot)
	for rows.Next() {
		var url string
		var lastTime, name sql.NullString
		var groupID sql.NullInt64
		if err := rows.Scan(&url, &lastTime, &groupID, &name); err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		snap := model.WatermarkSnapshot{PlatformID: groupID.Int64, DisplayName: name.String}
		if lastTime.Valid {
			t, err := parseTime(lastTime.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_message_time of %s: %w", url, err)
			}
			snap.MessageTime = t
		}
		out[url] = snap
	}
	return out, rows.Err()
}

// Fallback returns now minus minutesAgo.
func (s *SQLite) Fallback(minutesAgo int) time.Time {
	return s.now().UTC().Add(-time.Duration(minutesAgo) * time.Minute)
}

// PurgeOlderThan deletes watermarks not updated within the last days days.
func (s *SQLite) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM last_messages WHERE julianday(updated_at) < julianday(?)`,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purge watermarks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Stats counts stored sources and those updated during the last day.
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	dayAgo := formatTime(s.now().UTC().Add(-24 * time.Hour))
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN julianday(updated_at) > julianday(?) THEN 1 ELSE 0 END), 0)
		 FROM last_messages`, dayAgo,
	).Scan(&st.TotalSources, &st.ActiveToday)
	if err != nil {
		return model.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads a stored timestamp. Values without a zone are UTC.
func parseTime(s string) (time.Time, error) {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
