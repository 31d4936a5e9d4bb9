package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"prompthunter/pkg/models"
)

// RecordEvent appends an event and trims the feed to the newest limit entries.
// A limit of zero or less keeps everything.
func (s *Store) RecordEvent(ctx context.Context, event models.Event, limit int) error {
	var details sql.NullString
	if len(event.Details) > 0 {
		data, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}
		details = sql.NullString{String: string(data), Valid: true}
	}
	created := event.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin event transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO events (id, kind, message, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.ID, string(event.Kind), event.Message, details, formatTime(created)); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if limit > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events
			WHERE seq NOT IN (SELECT seq FROM events ORDER BY seq DESC LIMIT ?)`, limit); err != nil {
			return fmt.Errorf("failed to trim events: %w", err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns up to limit events, newest first
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, message, details, created_at
		FROM events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			e       models.Event
			kind    string
			details sql.NullString
			created string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Message, &details, &created); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = models.EventKind(kind)
		e.CreatedAt = parseTime(created)
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode event %s details: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
