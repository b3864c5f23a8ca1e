package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
)

// MemoryStorage - in-memory реализация storage.Storage
type MemoryStorage struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]storage.User
	health  *HealthLogMemoryStorage
	reports *ReportsMemoryStorage
}

// New создаёт пустой MemoryStorage
func New() *MemoryStorage {
	return &MemoryStorage{
		users:   make(map[uuid.UUID]storage.User),
		health:  NewHealthLogMemoryStorage(),
		reports: NewReportsMemoryStorage(),
	}
}

var _ storage.Storage = (*MemoryStorage)(nil)

func (m *MemoryStorage) GetUser(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

// PutUser добавляет или заменяет пользователя
func (m *MemoryStorage) PutUser(user storage.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.users[user.ID] = user
}

func (m *MemoryStorage) Close() error {
	// no-op для memory
	return nil
}

// HealthLog returns the embedded health log storage for seeding.
func (m *MemoryStorage) HealthLog() *HealthLogMemoryStorage {
	return m.health
}

// GetReportsStorage returns the reports storage
func (m *MemoryStorage) GetReportsStorage() *ReportsMemoryStorage {
	return m.reports
}

// HealthLogStorage methods - делегируем к встроенному health storage

func (m *MemoryStorage) GetUserHealthSnapshot(ctx context.Context, userID uuid.UUID) (*storage.HealthSnapshot, error) {
	return m.health.GetUserHealthSnapshot(ctx, userID)
}

// ReportsStorage methods - delegate to embedded reports storage

func (m *MemoryStorage) CreateReport(ctx context.Context, report *storage.ReportRecord) error {
	return m.reports.CreateReport(ctx, report)
}

func (m *MemoryStorage) FindReport(ctx context.Context, userID uuid.UUID, reportType string, from, to time.Time) (*storage.ReportRecord, error) {
	return m.reports.FindReport(ctx, userID, reportType, from, to)
}

func (m *MemoryStorage) GetReport(ctx context.Context, id uuid.UUID) (*storage.ReportRecord, error) {
	return m.reports.GetReport(ctx, id)
}

func (m *MemoryStorage) ListReports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]storage.ReportRecord, error) {
	return m.reports.ListReports(ctx, userID, limit, offset)
}

func (m *MemoryStorage) AttachArtifact(ctx context.Context, id uuid.UUID, objectKey, url string) (*storage.ReportRecord, error) {
	return m.reports.AttachArtifact(ctx, id, objectKey, url)
}

func (m *MemoryStorage) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return m.reports.DeleteReport(ctx, id)
}
