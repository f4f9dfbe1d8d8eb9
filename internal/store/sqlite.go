package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/paydash/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: every ":memory:" connection would be its own database,
	// and the log has a single writer anyway.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	var v int
	if err := s.db.Get(&v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		currentVersion, err = s.SchemaVersion()
		if err != nil {
			return err
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// eventRow is the database shape of a channel event.
type eventRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Data       string    `db:"data"`
	ReceivedAt time.Time `db:"received_at"`
}

// AppendEvent records one channel event. Missing IDs and timestamps are
// filled in; appending an ID twice keeps the first copy.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.ChannelEvent) error {
	if ev.Name == "" {
		return fmt.Errorf("appending channel event: empty name")
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	data := "{}"
	if len(ev.Data) > 0 {
		if !json.Valid(ev.Data) {
			return fmt.Errorf("appending channel event %s: payload is not valid JSON", ev.Name)
		}
		data = string(ev.Data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO channel_events (id, name, data, received_at)
		 VALUES (?, ?, ?, ?)`,
		ev.ID, ev.Name, data, ev.ReceivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending channel event %s: %w", ev.Name, err)
	}
	return nil
}

// RecentEvents returns events newest first.
func (s *SQLiteStore) RecentEvents(
	ctx context.Context,
	filter EventFilter,
) ([]model.ChannelEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	query := "SELECT id, name, data, received_at FROM channel_events"
	var args []interface{}
	if filter.Name != "" {
		query += " WHERE name = ?"
		args = append(args, filter.Name)
	}
	query += " ORDER BY received_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying channel events: %w", err)
	}

	events := make([]model.ChannelEvent, len(rows))
	for i, r := range rows {
		events[i] = model.ChannelEvent{
			ID:         r.ID,
			Name:       r.Name,
			Data:       json.RawMessage(r.Data),
			ReceivedAt: r.ReceivedAt,
		}
	}
	return events, nil
}

// CountEvents returns the number of stored events.
func (s *SQLiteStore) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM channel_events"); err != nil {
		return 0, fmt.Errorf("counting channel events: %w", err)
	}
	return n, nil
}

// PruneEvents deletes all but the newest keep events and returns how many
// were removed.
func (s *SQLiteStore) PruneEvents(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_events WHERE id NOT IN (
			SELECT id FROM channel_events ORDER BY received_at DESC, rowid DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning channel events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning channel events: %w", err)
	}
	return n, nil
}
