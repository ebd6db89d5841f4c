package domain

import (
	"context"

	"github.com/google/uuid"
)

// SnapshotRepository defines the interface for snapshot persistence operations
type SnapshotRepository interface {
	// Get retrieves the snapshot for a company and period
	// Returns nil without an error when no snapshot exists yet
	Get(ctx context.Context, companyID uuid.UUID, period Month) (*Snapshot, error)

	// Upsert inserts the snapshot or replaces the stored metrics for its
	// (company, period) pair
	Upsert(ctx context.Context, snapshot *Snapshot) error

	// ListByCompany retrieves every snapshot for a company ordered by
	// period ascending
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*Snapshot, error)
}

// FeedSource defines the interface for pulling one company-month of raw
// metric readings from an upstream system
type FeedSource interface {
	// Name identifies the feed in logs
	Name() string

	// Provenance returns the provenance stamped on values this feed reports
	Provenance() Provenance

	// Fetch retrieves the readings for a company and period
	Fetch(ctx context.Context, companyID uuid.UUID, period Month) (ReadingBatch, error)
}
