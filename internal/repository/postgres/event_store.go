package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/repository"
)

const eventColumns = "id, stream_id, stream_type, version, event_type, payload, created_at"

type eventStore struct {
	db *sql.DB
}

// NewEventStore creates a new EventStore backed by Postgres.
func NewEventStore(db *sql.DB) repository.EventStore {
	return &eventStore{db: db}
}

// SaveEvents appends events to streamID in one transaction. Appends to the
// same stream are serialized with a transaction-scoped advisory lock, so
// unchecked appends (expectedVersion -1) still get consecutive versions.
func (s *eventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", streamID); err != nil {
		return fmt.Errorf("failed to lock stream %s: %w", streamID, err)
	}

	var version int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = $1", streamID).Scan(&version); err != nil {
		return fmt.Errorf("failed to get current stream version: %w", err)
	}
	if expectedVersion >= 0 && version != expectedVersion {
		return &repository.ErrConcurrency{StreamID: streamID, Expected: expectedVersion, Actual: version}
	}

	if err := appendEvents(ctx, tx, streamID, streamType, version, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func appendEvents(ctx context.Context, tx *sql.Tx, streamID, streamType string, version int, events []entity.Event) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO events ("+eventColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), streamID, streamType, version+i+1, event.EventType(), payload, now); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", event.EventType(), err)
		}
	}
	return nil
}

// LoadEvents returns the stream in version order. An unknown stream is empty.
func (s *eventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+eventColumns+" FROM events WHERE stream_id = $1 ORDER BY version", streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for stream %s: %w", streamID, err)
	}
	defer rows.Close()

	var records []entity.EventStoreRecord
	for rows.Next() {
		var rec entity.EventStoreRecord
		if err := rows.Scan(&rec.ID, &rec.StreamID, &rec.StreamType, &rec.Version, &rec.EventType, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return records, nil
}
