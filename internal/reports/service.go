package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/sugarcheck/internal/blob"
	"github.com/fdg312/sugarcheck/internal/keylock"
	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/fdg312/sugarcheck/internal/userctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config tunes the report service.
type Config struct {
	RenderTimeout time.Duration
	UploadTimeout time.Duration
	// LockWait bounds how long a request waits behind an identical one.
	LockWait  time.Duration
	ListLimit int
	Observer  Observer
}

// Adapter interfaces
type UserStorageAdapter interface {
	GetUser(ctx context.Context, id uuid.UUID) (*storage.User, error)
}

// Service handles report generation and listing
type Service struct {
	users      UserStorageAdapter
	reports    storage.ReportsStorage
	cache      *Cache
	aggregator *Aggregator
	renderer   *Renderer
	pipeline   *Pipeline
	blobStore  blob.Store
	locker     keylock.Locker
	lockWait   time.Duration
	listLimit  int
	logger     *zap.Logger
}

// NewService creates a new reports service
func NewService(
	users UserStorageAdapter,
	reports storage.ReportsStorage,
	logs storage.HealthLogStorage,
	blobStore blob.Store,
	engines EngineFactory,
	locker keylock.Locker,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = keylock.Noop{}
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 20
	}
	pipeline := NewPipeline(engines, blobStore, PipelineConfig{
		RenderTimeout: cfg.RenderTimeout,
		UploadTimeout: cfg.UploadTimeout,
		Observer:      cfg.Observer,
	}, logger)
	if cfg.LockWait <= 0 {
		cfg.LockWait = pipeline.renderTimeout + pipeline.uploadTimeout
	}

	return &Service{
		users:      users,
		reports:    reports,
		cache:      NewCache(reports, logger),
		aggregator: NewAggregator(logs),
		renderer:   NewRenderer(),
		pipeline:   pipeline,
		blobStore:  blobStore,
		locker:     locker,
		lockWait:   cfg.LockWait,
		listLimit:  cfg.ListLimit,
		logger:     logger.With(zap.String("component", "reports.service")),
	}
}

// Generate returns the artifact URL for (userID, type, day of startDate),
// producing the report on a miss or stale record.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req GenerateRequest) (*GenerateResult, error) {
	reportType, err := ParseReportType(req.ReportType)
	if err != nil {
		return nil, err
	}
	startDate, err := ParseStartDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	if err := ensureAccess(ctx, userID); err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	w := ComputeWindow(reportType, startDate)
	key := w.Key(userID)
	log := s.logger.With(zap.String("key", key))

	release, err := s.acquire(ctx, key, log)
	if err != nil {
		return nil, err
	}
	defer release()

	hit, err := s.cache.Lookup(ctx, userID, reportType, w)
	if err != nil {
		return nil, err
	}
	if hit != nil {
		return &GenerateResult{URL: hit.ArtifactURL, ReportID: hit.ID}, nil
	}

	snap, err := s.aggregator.Aggregate(ctx, userID, w)
	if err != nil {
		return nil, err
	}

	rec, err := s.cache.InsertProvisional(ctx, userID, reportType, w.StartDate, snap)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("report_id", rec.ID.String()))

	doc, err := s.renderer.Render(user, reportType, w, snap)
	if err != nil {
		log.Error("document build failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	objectKey := ObjectKey(userID, w, rec.ID)
	artifact, err := s.pipeline.ConvertAndUpload(ctx, doc, objectKey)
	if err != nil {
		// the provisional record stays incomplete; the next request regenerates
		log.Error("artifact pipeline failed", zap.Error(err))
		return nil, err
	}

	done, err := s.complete(ctx, rec, snap, artifact, log)
	if err != nil {
		return nil, err
	}

	log.Info("report generated", zap.Int64("size_bytes", artifact.Size))
	return &GenerateResult{URL: done.ArtifactURL, ReportID: done.ID, Created: true}, nil
}

// complete attaches the artifact. If a concurrent request removed our
// provisional row, the completed record is inserted again.
func (s *Service) complete(ctx context.Context, rec *Report, snap Snapshot, a Artifact, log *zap.Logger) (*Report, error) {
	done, err := s.cache.AttachArtifact(ctx, rec.ID, a.Ref.Key, a.URL)
	switch {
	case err == nil:
		return done, nil
	case errors.Is(err, storage.ErrArtifactAlreadyAttached):
		existing, gerr := s.reports.GetReport(ctx, rec.ID)
		if gerr != nil {
			return nil, fmt.Errorf("reload report: %w", gerr)
		}
		return toReport(existing), nil
	case errors.Is(err, storage.ErrNotFound):
		log.Warn("provisional report vanished before attach, reinserting")
		fresh, ierr := s.cache.InsertProvisional(ctx, rec.UserID, rec.ReportType, rec.StartDate, snap)
		if ierr != nil {
			return nil, ierr
		}
		return s.cache.AttachArtifact(ctx, fresh.ID, a.Ref.Key, a.URL)
	default:
		return nil, err
	}
}

// acquire takes the per-key lock. Backend failures are logged and the
// request continues unlocked.
func (s *Service) acquire(ctx context.Context, key string, log *zap.Logger) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	release, err := s.locker.Acquire(lockCtx, key)
	if err == nil {
		return release, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, keylock.ErrLockTimeout) {
		return nil, fmt.Errorf("%w: waiting for identical request", ErrGenerationTimeout)
	}
	log.Warn("report lock unavailable, continuing unlocked", zap.Error(err))
	return func() {}, nil
}

// ListReports lists reports for a user, newest first
func (s *Service) ListReports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Report, error) {
	if err := ensureAccess(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = s.listLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.reports.ListReports(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	out := make([]Report, len(records))
	for i := range records {
		out[i] = *toReport(&records[i])
	}
	return out, nil
}

// DeleteReport removes a report and its artifact
func (s *Service) DeleteReport(ctx context.Context, reportID uuid.UUID) error {
	rec, err := s.reports.GetReport(ctx, reportID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrReportNotFound
	}
	if err != nil {
		return fmt.Errorf("get report: %w", err)
	}
	if err := ensureAccess(ctx, rec.UserID); err != nil {
		// do not reveal other users' report ids
		return ErrReportNotFound
	}

	if rec.ObjectKey != nil && s.blobStore != nil {
		if err := s.blobStore.Delete(ctx, *rec.ObjectKey); err != nil {
			// metadata deletion is what invalidates the cache entry
			s.logger.Warn("failed to delete report artifact",
				zap.String("report_id", reportID.String()),
				zap.String("object_key", *rec.ObjectKey),
				zap.Error(err))
		}
	}

	if err := s.reports.DeleteReport(ctx, reportID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// ObjectKey is the storage key of a report artifact.
func ObjectKey(userID uuid.UUID, w ReportWindow, reportID uuid.UUID) string {
	return fmt.Sprintf("reports/%s/%s/%s/%s.pdf", userID, w.ReportType, w.DayStart.Format(dateLayout), reportID)
}

// ensureAccess rejects callers acting for another user. Without an
// authenticated subject (auth disabled) every user is accessible.
func ensureAccess(ctx context.Context, userID uuid.UUID) error {
	if caller, ok := userctx.GetUserID(ctx); ok && caller != userID {
		return ErrForbidden
	}
	return nil
}
