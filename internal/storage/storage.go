package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound возвращается, когда запись отсутствует
	ErrNotFound = errors.New("not found")

	// ErrArtifactAlreadyAttached возвращается при повторной привязке артефакта к отчёту
	ErrArtifactAlreadyAttached = errors.New("artifact already attached")
)

// User is the subset of the user profile the report header needs.
type User struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Gender      string
	DateOfBirth *time.Time
	CreatedAt   time.Time
}

// GlucoseReading представляет одно измерение глюкозы (mg/dL)
type GlucoseReading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// A1cReading представляет оценку HbA1c
type A1cReading struct {
	Timestamp      time.Time `json:"timestamp"`
	EstimatedValue float64   `json:"estimatedValue"`
}

// RiskAssessment is one result of the external risk model.
type RiskAssessment struct {
	RiskScore        float64   `json:"riskScore"`
	PredictionResult string    `json:"predictionResult"`
	Date             time.Time `json:"date"`
}

// HealthSnapshot is the full, unfiltered health history of a user.
type HealthSnapshot struct {
	GlucoseReadings []GlucoseReading
	A1cReadings     []A1cReading
	// RiskFactors is the most recently recorded symptom questionnaire.
	RiskFactors     map[string]string
	RiskAssessments []RiskAssessment
}

// ReportRecord - сохранённый отчёт (единица кэша)
type ReportRecord struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ReportType  string // "weekly" or "monthly"
	StartDate   time.Time
	ReportData  []byte  // JSON snapshot, immutable once written
	ObjectKey   *string // NULL until the artifact is uploaded
	ArtifactURL *string // NULL while the record is provisional
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Complete reports whether the record carries an artifact reference.
func (r *ReportRecord) Complete() bool {
	return r.ArtifactURL != nil && *r.ArtifactURL != ""
}

// UserStorage - чтение профилей пользователей
type UserStorage interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
}

// HealthLogStorage - read-only доступ к журналу здоровья
type HealthLogStorage interface {
	// GetUserHealthSnapshot возвращает полную историю пользователя без пагинации
	GetUserHealthSnapshot(ctx context.Context, userID uuid.UUID) (*HealthSnapshot, error)
}

// ReportsStorage - интерфейс для работы с отчётами
type ReportsStorage interface {
	// CreateReport вставляет новый отчёт (обычно без артефакта)
	CreateReport(ctx context.Context, report *ReportRecord) error

	// FindReport ищет отчёт пользователя данного типа со start_date в [from, to).
	// Complete records win over provisional ones, newest first.
	FindReport(ctx context.Context, userID uuid.UUID, reportType string, from, to time.Time) (*ReportRecord, error)

	// GetReport возвращает отчёт по ID
	GetReport(ctx context.Context, id uuid.UUID) (*ReportRecord, error)

	// ListReports возвращает список отчётов пользователя с пагинацией (created_at DESC)
	ListReports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ReportRecord, error)

	// AttachArtifact записывает ссылку на артефакт ровно один раз
	AttachArtifact(ctx context.Context, id uuid.UUID, objectKey, url string) (*ReportRecord, error)

	// DeleteReport удаляет отчёт
	DeleteReport(ctx context.Context, id uuid.UUID) error
}

// Storage объединяет все хранилища сервиса
type Storage interface {
	UserStorage
	HealthLogStorage
	ReportsStorage

	// Close закрывает соединение (для Postgres)
	Close() error
}
