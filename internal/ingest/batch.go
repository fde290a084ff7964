package ingest

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tylerhslee/gw2tp/internal/models"
)

// Batch accumulates transformed rows during a single run. Nothing touches
// the store until the batch is handed to the Persister. Implementations
// synchronize Add so fetch workers can share one batch.
type Batch interface {
	// Add transforms one raw record and appends the resulting rows.
	// A *models.TransformError marks a skippable record.
	Add(raw json.RawMessage) error
	// Rows returns the accumulated rows, parents before children.
	Rows() []any
	Len() int
}

// ItemBatch collects catalog rows: one Item per record plus a
// category-detail row when the record's type has an extension table.
type ItemBatch struct {
	mu      sync.Mutex
	items   []any
	details []any
}

func NewItemBatch() *ItemBatch { return &ItemBatch{} }

func (b *ItemBatch) Add(raw json.RawMessage) error {
	item, err := models.ItemFromRaw(raw)
	if err != nil {
		return err
	}
	detail, hasDetail, err := models.DetailFromRaw(raw)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
	if hasDetail {
		b.details = append(b.details, detail)
	}
	return nil
}

// Rows lists every item before any detail row so the store sees parents
// first.
func (b *ItemBatch) Rows() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := make([]any, 0, len(b.items)+len(b.details))
	rows = append(rows, b.items...)
	rows = append(rows, b.details...)
	return rows
}

func (b *ItemBatch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items) + len(b.details)
}

// ListingBatch collects market snapshots from the commerce endpoint. The
// capture timestamp is taken at transformation time.
type ListingBatch struct {
	mu       sync.Mutex
	listings []any
	now      func() time.Time
}

func NewListingBatch() *ListingBatch {
	return &ListingBatch{now: time.Now}
}

func (b *ListingBatch) Add(raw json.RawMessage) error {
	listing, err := models.ListingFromRaw(raw, b.now())
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.listings = append(b.listings, listing)
	b.mu.Unlock()
	return nil
}

func (b *ListingBatch) Rows() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := make([]any, len(b.listings))
	copy(rows, b.listings)
	return rows
}

func (b *ListingBatch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listings)
}
