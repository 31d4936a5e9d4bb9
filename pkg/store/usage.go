package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Usage is one persisted monthly counter
type Usage struct {
	Key       string    `json:"key"`
	Dimension string    `json:"dimension"`
	Month     string    `json:"month"`
	Used      int       `json:"used"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetMonthlyUsage returns the counter for key, zero when it was never written
func (s *Store) GetMonthlyUsage(ctx context.Context, key string) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx, `SELECT used FROM monthly_usage WHERE key = ?`, key).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage %s: %w", key, err)
	}
	return used, nil
}

// IncrementMonthlyUsage adds n to the counter for key and returns the new value
func (s *Store) IncrementMonthlyUsage(ctx context.Context, key string, n int) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx, `INSERT INTO monthly_usage (key, used, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET used = used + excluded.used, updated_at = excluded.updated_at
		RETURNING used`, key, n, s.timestamp()).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage %s: %w", key, err)
	}
	return used, nil
}

// ListUsage returns every counter, newest month first
func (s *Store) ListUsage(ctx context.Context) ([]Usage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, used, updated_at FROM monthly_usage ORDER BY key DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	defer rows.Close()

	var out []Usage
	for rows.Next() {
		var (
			u       Usage
			updated string
		)
		if err := rows.Scan(&u.Key, &u.Used, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		u.UpdatedAt = parseTime(updated)
		u.Dimension, u.Month, _ = strings.Cut(u.Key, ":")
		out = append(out, u)
	}
	return out, rows.Err()
}
