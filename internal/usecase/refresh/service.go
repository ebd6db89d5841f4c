package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/runwaylens/runwaylens-backend/internal/domain"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/derive"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/merge"
	log "github.com/sirupsen/logrus"
)

// RefreshService handles consolidation of one company month: it collects
// readings from the configured feeds, merges them under provenance
// precedence, recomputes the derived metrics and persists the result
type RefreshService struct {
	SnapshotRepo domain.SnapshotRepository
	Feeds        []domain.FeedSource
	Now          func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRefreshService creates a new RefreshService instance
func NewRefreshService(
	snapshotRepo domain.SnapshotRepository,
	feeds []domain.FeedSource,
) *RefreshService {
	return &RefreshService{
		SnapshotRepo: snapshotRepo,
		Feeds:        feeds,
		Now:          func() time.Time { return time.Now().UTC() },
		locks:        make(map[string]*sync.Mutex),
	}
}

// Refresh rebuilds the snapshot for a company month from the configured feeds
// Logic:
//  1. Load the stored snapshot, or start a new one for a month never seen before
//  2. Fetch readings from every feed and merge each batch under its feed's provenance
//  3. Recompute ARR, MRR growth and runway from the merged metrics
//  4. Persist and return the consolidated snapshot
//
// A feed that fails to fetch is logged and skipped; its metrics are simply
// absent from this refresh and whatever the snapshot already holds stays.
// Refreshes of the same company month are serialized so concurrent triggers
// cannot interleave their read-merge-write cycles.
func (s *RefreshService) Refresh(ctx context.Context, companyID uuid.UUID, period domain.Month) (*domain.Snapshot, error) {
	if companyID == uuid.Nil {
		return nil, errors.New("company id is required")
	}
	if period.IsZero() {
		return nil, errors.New("period is required")
	}

	unlock := s.lock(companyID, period)
	defer unlock()

	snapshot, err := s.loadOrCreate(ctx, companyID, period)
	if err != nil {
		return nil, err
	}

	var merged, failed int
	for _, feed := range s.Feeds {
		batch, err := feed.Fetch(ctx, companyID, period)
		if err != nil {
			log.WithFields(log.Fields{
				"feed":    feed.Name(),
				"company": companyID,
				"period":  period.Key(),
			}).Warnf("Feed fetch failed, skipping: %v", err)
			failed++
			continue
		}
		snapshot = merge.Apply(snapshot, batch.Patch(), feed.Provenance(), s.Now())
		merged++
	}

	snapshot, err = s.finalize(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"company":      companyID,
		"period":       period.Key(),
		"feeds_merged": merged,
		"feeds_failed": failed,
	}).Info("Refreshed company month")

	return snapshot, nil
}

// ApplyManual records operator-entered values for a company month. Manual
// entries take the highest precedence: once written, no feed refresh will
// replace them.
// Logic:
//  1. Validate that every patched key is a known catalog metric
//  2. Load the stored snapshot, or start a new one
//  3. Merge the patch with manual_entry provenance
//  4. Recompute the derived metrics and persist
func (s *RefreshService) ApplyManual(ctx context.Context, companyID uuid.UUID, period domain.Month, patch domain.MetricPatch) (*domain.Snapshot, error) {
	if companyID == uuid.Nil {
		return nil, errors.New("company id is required")
	}
	if period.IsZero() {
		return nil, errors.New("period is required")
	}
	if len(patch) == 0 {
		return nil, errors.New("at least one metric value is required")
	}
	for key := range patch {
		if !domain.IsKnownMetric(key) {
			return nil, fmt.Errorf("unknown metric %q", key)
		}
	}

	unlock := s.lock(companyID, period)
	defer unlock()

	snapshot, err := s.loadOrCreate(ctx, companyID, period)
	if err != nil {
		return nil, err
	}

	snapshot = merge.Apply(snapshot, patch, domain.ProvenanceManualEntry, s.Now())

	return s.finalize(ctx, snapshot)
}

// loadOrCreate fetches the stored snapshot for the period, or creates a
// fresh one when the month has never been consolidated
func (s *RefreshService) loadOrCreate(ctx context.Context, companyID uuid.UUID, period domain.Month) (*domain.Snapshot, error) {
	snapshot, err := s.SnapshotRepo.Get(ctx, companyID, period)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return domain.NewSnapshot(companyID, period), nil
	}
	return snapshot, nil
}

// finalize recomputes the derived metrics against the previous month and
// persists the consolidated snapshot
func (s *RefreshService) finalize(ctx context.Context, snapshot *domain.Snapshot) (*domain.Snapshot, error) {
	previous, err := s.SnapshotRepo.Get(ctx, snapshot.CompanyID, snapshot.Period.Prev())
	if err != nil {
		return nil, err
	}

	now := s.Now()
	result := derive.Calculate(derive.FromSnapshot(snapshot, previous), now)
	snapshot = applyDerived(snapshot, result, now)
	snapshot.UpdatedAt = now

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if err := s.SnapshotRepo.Upsert(ctx, snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// applyDerived writes the recomputed metrics back into the snapshot with
// computed provenance. The merge precedence applies, so a derived key that
// was entered manually or imported from a spreadsheet keeps its value.
// A computed value whose inputs disappeared is cleared rather than left
// stale, such as runway after burn turns non-positive.
func applyDerived(snapshot *domain.Snapshot, result derive.Result, now time.Time) *domain.Snapshot {
	patch := domain.MetricPatch{
		domain.MetricARR:          result.ARR.Value,
		domain.MetricMRRGrowthMoM: result.MRRGrowthMoM.Value,
		domain.MetricRunwayMonths: result.RunwayMonths.Value,
	}

	snapshot = merge.Apply(snapshot, patch, domain.ProvenanceComputed, now)

	for key, value := range patch {
		if value != nil {
			continue
		}
		current := snapshot.Metric(key)
		if current.Value != nil && current.Source == domain.ProvenanceComputed {
			snapshot.Metrics[key] = domain.EmptyMetricValue()
		}
	}

	return snapshot
}

// lock acquires the mutex that serializes work on one company month and
// returns its release function
func (s *RefreshService) lock(companyID uuid.UUID, period domain.Month) func() {
	key := companyID.String() + "/" + period.Key()

	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
