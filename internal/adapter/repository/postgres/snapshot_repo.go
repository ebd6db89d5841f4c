package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/runwaylens/runwaylens-backend/internal/domain"
)

// snapshotRepository implements domain.SnapshotRepository
type snapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *DB) domain.SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Get retrieves the snapshot for a company month. It returns nil without an
// error when the month has never been consolidated.
func (r *snapshotRepository) Get(ctx context.Context, companyID uuid.UUID, period domain.Month) (*domain.Snapshot, error) {
	query := `
		SELECT id, company_id, period_month, metrics, created_at, updated_at
		FROM snapshots
		WHERE company_id = $1 AND period_month = $2
	`

	snapshot, err := scanSnapshot(r.db.QueryRowContext(ctx, query, companyID, period.Time()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return snapshot, nil
}

// Upsert inserts the snapshot, or replaces the stored metric state when its
// company month already exists
func (r *snapshotRepository) Upsert(ctx context.Context, snapshot *domain.Snapshot) error {
	metricsJSON, err := json.Marshal(snapshot.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	query := `
		INSERT INTO snapshots (id, company_id, period_month, metrics)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, period_month)
		DO UPDATE SET metrics = EXCLUDED.metrics, updated_at = now()
	`

	_, err = r.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.CompanyID,
		snapshot.Period.Time(),
		string(metricsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// ListByCompany retrieves every stored snapshot for a company in month order
func (r *snapshotRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.Snapshot, error) {
	query := `
		SELECT id, company_id, period_month, metrics, created_at, updated_at
		FROM snapshots
		WHERE company_id = $1
		ORDER BY period_month ASC
	`

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}

// rowScanner covers both sql.Row and sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSnapshot reads one snapshot row, decoding the metric state from its
// JSONB column
func scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	var periodDay time.Time
	var metricsJSON []byte

	err := row.Scan(
		&snapshot.ID,
		&snapshot.CompanyID,
		&periodDay,
		&metricsJSON,
		&snapshot.CreatedAt,
		&snapshot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// The period is stored as the first day of the month. Calendar fields
	// are read directly so the driver's session timezone cannot shift the
	// date across a month boundary.
	snapshot.Period = domain.NewMonth(periodDay.Year(), periodDay.Month())

	metrics := make(map[domain.MetricKey]domain.MetricValue)
	if err := json.Unmarshal(metricsJSON, &metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	snapshot.Metrics = metrics

	return &snapshot, nil
}
