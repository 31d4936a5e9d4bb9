// Package dedup ingests classified items exactly once per external id.
package dedup

import (
	"context"
	"errors"
	"fmt"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
)

// ItemStore is the persistence the Deduplicator needs
type ItemStore interface {
	FindByID(ctx context.Context, externalID string) (*models.Item, error)
	Insert(ctx context.Context, item *models.Item) error
}

// Outcome says what Ingest did with an item
type Outcome string

const (
	Inserted  Outcome = "inserted"
	Duplicate Outcome = "duplicate"
)

// Deduplicator checks the store before inserting
type Deduplicator struct {
	store  ItemStore
	logger logger.Logger
}

// New creates a Deduplicator over store
func New(store ItemStore, log logger.Logger) *Deduplicator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Deduplicator{store: store, logger: log}
}

// Ingest inserts item unless an item with the same external id exists.
// Losing an insert race to another writer is reported as Duplicate.
func (d *Deduplicator) Ingest(ctx context.Context, item *models.Item) (Outcome, error) {
	_, err := d.store.FindByID(ctx, item.ExternalID)
	switch {
	case err == nil:
		d.logger.DebugWithFields("duplicate item skipped", map[string]interface{}{
			"item_id": item.ExternalID,
		})
		return Duplicate, nil
	case !errors.Is(err, errs.ErrNotFound):
		return "", fmt.Errorf("failed to check item %s: %w", item.ExternalID, err)
	}

	if err := d.store.Insert(ctx, item); err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			return Duplicate, nil
		}
		return "", err
	}
	return Inserted, nil
}

// Counts tallies a batch of ingests
type Counts struct {
	Inserted   int
	Duplicates int
}

// IngestAll ingests items in order, stopping at the first store error
func (d *Deduplicator) IngestAll(ctx context.Context, items []*models.Item) (Counts, error) {
	var c Counts
	for _, item := range items {
		outcome, err := d.Ingest(ctx, item)
		if err != nil {
			return c, fmt.Errorf("failed to store item %s: %w", item.ExternalID, err)
		}
		if outcome == Inserted {
			c.Inserted++
		} else {
			c.Duplicates++
		}
	}
	return c, nil
}
