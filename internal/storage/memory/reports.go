package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
)

// ReportsMemoryStorage - in-memory storage для отчётов
type ReportsMemoryStorage struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*storage.ReportRecord
	now     func() time.Time
}

// NewReportsMemoryStorage создаёт новое in-memory хранилище
func NewReportsMemoryStorage() *ReportsMemoryStorage {
	return &ReportsMemoryStorage{
		reports: make(map[uuid.UUID]*storage.ReportRecord),
		now:     time.Now,
	}
}

// CreateReport создаёт новый отчёт
func (s *ReportsMemoryStorage) CreateReport(ctx context.Context, report *storage.ReportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}

	now := s.now()
	report.CreatedAt = now
	report.UpdatedAt = now

	s.reports[report.ID] = cloneReport(report)
	return nil
}

// FindReport ищет отчёт по ключу идентичности
func (s *ReportsMemoryStorage) FindReport(ctx context.Context, userID uuid.UUID, reportType string, from, to time.Time) (*storage.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*storage.ReportRecord
	for _, r := range s.reports {
		if r.UserID != userID || r.ReportType != reportType {
			continue
		}
		if r.StartDate.Before(from) || !r.StartDate.Before(to) {
			continue
		}
		matches = append(matches, r)
	}
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}

	sort.Slice(matches, func(i, j int) bool {
		ci, cj := matches[i].Complete(), matches[j].Complete()
		if ci != cj {
			return ci
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return cloneReport(matches[0]), nil
}

// GetReport возвращает отчёт по ID
func (s *ReportsMemoryStorage) GetReport(ctx context.Context, id uuid.UUID) (*storage.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneReport(report), nil
}

// ListReports возвращает список отчётов с пагинацией
func (s *ReportsMemoryStorage) ListReports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]storage.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]storage.ReportRecord, 0)
	for _, r := range s.reports {
		if r.UserID == userID {
			filtered = append(filtered, *cloneReport(r))
		}
	}

	// Сортируем по created_at DESC
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	start := offset
	if start > len(filtered) {
		return []storage.ReportRecord{}, nil
	}
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

// AttachArtifact привязывает артефакт, только если его ещё нет
func (s *ReportsMemoryStorage) AttachArtifact(ctx context.Context, id uuid.UUID, objectKey, url string) (*storage.ReportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, exists := s.reports[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	if report.ArtifactURL != nil {
		return nil, storage.ErrArtifactAlreadyAttached
	}

	report.ObjectKey = &objectKey
	report.ArtifactURL = &url
	report.UpdatedAt = s.now()
	return cloneReport(report), nil
}

// DeleteReport удаляет отчёт
func (s *ReportsMemoryStorage) DeleteReport(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.reports, id)
	return nil
}

func cloneReport(r *storage.ReportRecord) *storage.ReportRecord {
	c := *r
	if r.ReportData != nil {
		c.ReportData = append([]byte(nil), r.ReportData...)
	}
	if r.ObjectKey != nil {
		k := *r.ObjectKey
		c.ObjectKey = &k
	}
	if r.ArtifactURL != nil {
		u := *r.ArtifactURL
		c.ArtifactURL = &u
	}
	return &c
}
