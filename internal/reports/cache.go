package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cache finds, inserts and completes report records keyed by
// (user, type, UTC day of start date).
type Cache struct {
	store  storage.ReportsStorage
	logger *zap.Logger
}

func NewCache(store storage.ReportsStorage, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger.With(zap.String("component", "reports.cache"))}
}

// FindExisting returns the best record in the window's day boundary, or nil.
func (c *Cache) FindExisting(ctx context.Context, userID uuid.UUID, reportType ReportType, w ReportWindow) (*Report, error) {
	rec, err := c.store.FindReport(ctx, userID, string(reportType), w.DayStart, w.DayStart.AddDate(0, 0, 1))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return toReport(rec), nil
}

// Invalidate deletes a record. Missing records are not an error.
func (c *Cache) Invalidate(ctx context.Context, reportID uuid.UUID) error {
	err := c.store.DeleteReport(ctx, reportID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Lookup applies the hit/stale/miss policy. A non-nil report is always complete.
// Stale records are deleted; a failed delete is logged and treated as a miss.
func (c *Cache) Lookup(ctx context.Context, userID uuid.UUID, reportType ReportType, w ReportWindow) (*Report, error) {
	existing, err := c.FindExisting(ctx, userID, reportType, w)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	if existing.Complete() {
		c.logger.Debug("cache hit",
			zap.String("report_id", existing.ID.String()),
			zap.String("key", w.Key(userID)))
		return existing, nil
	}

	c.logger.Info("stale report found, regenerating",
		zap.String("report_id", existing.ID.String()),
		zap.String("key", w.Key(userID)),
		zap.Time("created_at", existing.CreatedAt))
	if err := c.Invalidate(ctx, existing.ID); err != nil {
		c.logger.Warn("failed to delete stale report",
			zap.String("report_id", existing.ID.String()),
			zap.Error(err))
	}
	return nil, nil
}

// InsertProvisional stores a record without an artifact reference. The start
// date is stored as its UTC day so the record always matches its own key.
func (c *Cache) InsertProvisional(ctx context.Context, userID uuid.UUID, reportType ReportType, startDate time.Time, snapshot Snapshot) (*Report, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	rec := &storage.ReportRecord{
		ID:         uuid.New(),
		UserID:     userID,
		ReportType: string(reportType),
		StartDate:  utcDay(startDate),
		ReportData: data,
	}
	if err := c.store.CreateReport(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert provisional report: %w", err)
	}
	return toReport(rec), nil
}

// AttachArtifact completes a provisional record.
func (c *Cache) AttachArtifact(ctx context.Context, reportID uuid.UUID, objectKey, url string) (*Report, error) {
	rec, err := c.store.AttachArtifact(ctx, reportID, objectKey, url)
	if err != nil {
		return nil, fmt.Errorf("attach artifact: %w", err)
	}
	return toReport(rec), nil
}
