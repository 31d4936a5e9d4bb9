package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/models"
)

const sourceColumns = `id, handle, user_id, display_name, is_active, priority,
	last_scan_at, last_seen_item_id, created_at`

// activeOrder ranks high priority first, then the least recently scanned,
// with never-scanned sources ahead of everything at the same priority
const activeOrder = `ORDER BY CASE priority WHEN 'high' THEN 2 WHEN 'normal' THEN 1 ELSE 0 END DESC,
	last_scan_at IS NOT NULL, last_scan_at ASC, id ASC`

func scanSource(row rowScanner) (*models.Source, error) {
	var (
		src      models.Source
		active   int
		priority string
		lastScan sql.NullString
		created  string
	)
	err := row.Scan(&src.ID, &src.Handle, &src.UserID, &src.DisplayName, &active, &priority,
		&lastScan, &src.LastSeenItemID, &created)
	if err != nil {
		return nil, err
	}
	src.IsActive = active == 1
	src.Priority = models.Priority(priority)
	src.LastScanAt = nullTime(lastScan)
	src.CreatedAt = parseTime(created)
	return &src, nil
}

func (s *Store) listSources(ctx context.Context, query string, args ...any) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// AddSource registers a new active source. A handle that is already
// registered yields errors.ErrDuplicate.
func (s *Store) AddSource(ctx context.Context, handle, displayName string, priority models.Priority) (*models.Source, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO sources (handle, display_name, priority, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (handle) DO NOTHING`,
		handle, displayName, string(priority), s.timestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to add source %s: %w", handle, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("source %s: %w", handle, errs.ErrDuplicate)
	}
	return s.GetSource(ctx, handle)
}

// GetSource loads a source by handle (case-insensitive)
func (s *Store) GetSource(ctx context.Context, handle string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE handle = ?`,
		strings.TrimPrefix(handle, "@"))
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", handle, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source %s: %w", handle, err)
	}
	return src, nil
}

// ListActiveSources returns active sources in scan order
func (s *Store) ListActiveSources(ctx context.Context) ([]models.Source, error) {
	return s.listSources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE is_active = 1 `+activeOrder)
}

// ListSources returns every source, active or not, in scan order
func (s *Store) ListSources(ctx context.Context) ([]models.Source, error) {
	return s.listSources(ctx, `SELECT `+sourceColumns+` FROM sources `+activeOrder)
}

// SetSourceActive toggles whether a source takes part in runs
func (s *Store) SetSourceActive(ctx context.Context, handle string, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sources SET is_active = ? WHERE handle = ?`,
		v, strings.TrimPrefix(handle, "@"))
	if err != nil {
		return fmt.Errorf("failed to update source %s: %w", handle, err)
	}
	return requireRow(res, "source "+handle)
}

// SetSourceUserID caches the resolved upstream user id
func (s *Store) SetSourceUserID(ctx context.Context, id int64, userID, displayName string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sources
		SET user_id = ?, display_name = CASE WHEN ? = '' THEN display_name ELSE ? END
		WHERE id = ?`, userID, displayName, displayName, id)
	if err != nil {
		return fmt.Errorf("failed to set user id for source %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("source %d", id))
}

// UpdateSourceScan records a completed pass. An empty lastSeenID keeps the
// previous value so a pass without new items does not lose the cursor.
func (s *Store) UpdateSourceScan(ctx context.Context, id int64, scannedAt time.Time, lastSeenID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sources
		SET last_scan_at = ?, last_seen_item_id = CASE WHEN ? = '' THEN last_seen_item_id ELSE ? END
		WHERE id = ?`, formatTime(scannedAt), lastSeenID, lastSeenID, id)
	if err != nil {
		return fmt.Errorf("failed to update scan state for source %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("source %d", id))
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, errs.ErrNotFound)
	}
	return nil
}
