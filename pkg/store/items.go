package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/models"
)

const itemColumns = `external_id, source_handle, content, url, created_at_upstream,
	is_match, category, confidence, reasoning, ingested_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item     models.Item
		upstream sql.NullString
		category string
		ingested string
		isMatch  int
	)
	err := row.Scan(&item.ExternalID, &item.SourceHandle, &item.Content, &item.URL, &upstream,
		&isMatch, &category, &item.Classification.Confidence, &item.Classification.Reasoning, &ingested)
	if err != nil {
		return nil, err
	}
	if t := nullTime(upstream); t != nil {
		item.CreatedAtUpstream = *t
	}
	item.Classification.IsMatch = isMatch == 1
	item.Classification.Category = models.NormalizeCategory(category)
	item.IngestedAt = parseTime(ingested)
	return &item, nil
}

// FindByID returns the item with externalID, or errors.ErrNotFound
func (s *Store) FindByID(ctx context.Context, externalID string) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE external_id = ?`, externalID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", externalID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", externalID, err)
	}
	return item, nil
}

// Insert stores a new item. An existing external id yields errors.ErrDuplicate
// and leaves the stored row untouched.
func (s *Store) Insert(ctx context.Context, item *models.Item) error {
	ingested := item.IngestedAt
	if ingested.IsZero() {
		ingested = s.now()
	}
	var upstream any
	if !item.CreatedAtUpstream.IsZero() {
		upstream = formatTime(item.CreatedAtUpstream)
	}
	isMatch := 0
	if item.Classification.IsMatch {
		isMatch = 1
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO NOTHING`,
		item.ExternalID, item.SourceHandle, item.Content, item.URL, upstream,
		isMatch, string(item.Classification.Category), item.Classification.Confidence,
		item.Classification.Reasoning, formatTime(ingested))
	if err != nil {
		return fmt.Errorf("failed to insert item %s: %w", item.ExternalID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert item %s: %w", item.ExternalID, err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", item.ExternalID, errs.ErrDuplicate)
	}
	return nil
}

// CountItems returns the number of stored items
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// RecentItems lists the newest items first, optionally restricted to one category
func (s *Store) RecentItems(ctx context.Context, limit int, category models.Category) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY ingested_at DESC, external_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
