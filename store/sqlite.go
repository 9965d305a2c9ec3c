// SQLite-backed durable event log and snapshot store. modernc.org/sqlite is a
// pure-Go driver, so the binary stays CGO-free.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bank-accounts/domain"
	"bank-accounts/events"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	stream_id   TEXT    NOT NULL,
	version     INTEGER NOT NULL,
	event_id    TEXT    NOT NULL,
	event_type  TEXT    NOT NULL,
	recorded_at INTEGER NOT NULL,
	payload     BLOB    NOT NULL,
	PRIMARY KEY (stream_id, version)
);
CREATE TABLE IF NOT EXISTS snapshots (
	stream_id TEXT    NOT NULL PRIMARY KEY,
	version   INTEGER NOT NULL,
	state     BLOB    NOT NULL,
	taken_at  INTEGER NOT NULL
);`

// SQLiteStore persists event streams and snapshots in a single SQLite file.
// It implements both EventStore and SnapshotStore.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the store at path and applies the
// schema. WAL keeps readers from blocking the single writer per stream.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveEvents(streamID string, expectedVersion int, newEvents []events.Event) error {
	if len(newEvents) == 0 {
		return nil
	}
	if err := validateSequence(streamID, expectedVersion, newEvents); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append transaction for stream %s: %w", streamID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentVersion int
	err = tx.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = ?`, streamID).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("read head version for stream %s: %w", streamID, err)
	}
	if currentVersion != expectedVersion {
		return fmt.Errorf("%w: expected version %d, but current version is %d for stream %s",
			ErrVersionConflict, expectedVersion, currentVersion, streamID)
	}

	for _, event := range newEvents {
		base := event.GetBase()
		payload, err := events.Encode(event)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO events (stream_id, version, event_id, event_type, recorded_at, payload) VALUES (?, ?, ?, ?, ?, ?)`,
			streamID, base.Version, base.EventID.String(), string(base.Type), base.Timestamp.UnixMilli(), payload)
		if err != nil {
			return fmt.Errorf("append event %s (v%d) to stream %s: %w", base.EventID, base.Version, streamID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append to stream %s: %w", streamID, err)
	}
	return nil
}

func (s *SQLiteStore) GetEvents(streamID string) ([]events.Event, error) {
	return s.readEvents(streamID, 0)
}

func (s *SQLiteStore) GetEventsAfterVersion(streamID string, version int) ([]events.Event, error) {
	return s.readEvents(streamID, version)
}

func (s *SQLiteStore) readEvents(streamID string, afterVersion int) ([]events.Event, error) {
	rows, err := s.db.Query(`SELECT event_type, payload FROM events WHERE stream_id = ? AND version > ? ORDER BY version ASC`,
		streamID, afterVersion)
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", streamID, err)
	}
	defer rows.Close()

	stream := make([]events.Event, 0)
	for rows.Next() {
		var eventType string
		var payload []byte
		if err := rows.Scan(&eventType, &payload); err != nil {
			return nil, fmt.Errorf("scan event from stream %s: %w", streamID, err)
		}
		event, err := events.Decode(events.EventType(eventType), payload)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", streamID, err)
		}
		stream = append(stream, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream %s: %w", streamID, err)
	}
	return stream, nil
}

func (s *SQLiteStore) SaveSnapshot(snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil snapshot")
	}
	_, err := s.db.Exec(`INSERT INTO snapshots (stream_id, version, state, taken_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(stream_id) DO UPDATE SET version = excluded.version, state = excluded.state, taken_at = excluded.taken_at`,
		snapshot.AggregateID, snapshot.Version, snapshot.State, snapshot.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("save snapshot for %s (v%d): %w", snapshot.AggregateID, snapshot.Version, err)
	}
	return nil
}

func (s *SQLiteStore) GetLatestSnapshot(streamID string) (*domain.Snapshot, bool, error) {
	var snapshot domain.Snapshot
	var takenAt int64
	err := s.db.QueryRow(`SELECT stream_id, version, state, taken_at FROM snapshots WHERE stream_id = ?`, streamID).
		Scan(&snapshot.AggregateID, &snapshot.Version, &snapshot.State, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot for %s: %w", streamID, err)
	}
	snapshot.Timestamp = time.UnixMilli(takenAt).UTC()
	return &snapshot, true, nil
}
