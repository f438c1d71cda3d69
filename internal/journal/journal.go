package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/flitsinc/taskbridge/internal/eventlog"
)

// Journal persists a copy of every domain event so the conversation audit
// trail survives restarts. The in-memory event log stays authoritative;
// the journal is a write-behind sink, so a failure to persist is logged
// and otherwise ignored.
type Journal struct {
	db        *sql.DB
	sessionID string
}

func New(db *sql.DB, sessionID string) *Journal {
	return &Journal{db: db, sessionID: sessionID}
}

// Record implements eventlog.Sink.
func (j *Journal) Record(evt eventlog.Event) {
	if err := j.Append(context.Background(), evt); err != nil {
		log.Printf("journal: %v", err)
	}
}

func (j *Journal) Append(ctx context.Context, evt eventlog.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	at := evt.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (id, session_id, kind, at, payload)
		VALUES (?, ?, ?, ?, ?)
	`, ulid.Make().String(), nullString(j.sessionID), string(evt.Kind), at.Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns persisted events for the journal's session, oldest first.
func (j *Journal) List(ctx context.Context, limit int) ([]eventlog.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT payload FROM events
		WHERE session_id = ?
		ORDER BY id ASC
		LIMIT ?
	`, j.sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []eventlog.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var evt eventlog.Event
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
