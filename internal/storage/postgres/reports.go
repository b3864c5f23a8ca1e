package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportColumns = `id, user_id, report_type, start_date, report_data, object_key, artifact_url, created_at, updated_at`

// PostgresReportsStorage - Postgres storage для отчётов
type PostgresReportsStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresReportsStorage создаёт новое Postgres хранилище
func NewPostgresReportsStorage(pool *pgxpool.Pool) *PostgresReportsStorage {
	return &PostgresReportsStorage{pool: pool}
}

// CreateReport создаёт новый отчёт
func (s *PostgresReportsStorage) CreateReport(ctx context.Context, report *storage.ReportRecord) error {
	query := `
		INSERT INTO reports (id, user_id, report_type, start_date, report_data, object_key, artifact_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}

	err := s.pool.QueryRow(ctx, query,
		report.ID,
		report.UserID,
		report.ReportType,
		report.StartDate,
		report.ReportData,
		report.ObjectKey,
		report.ArtifactURL,
	).Scan(&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// FindReport ищет отчёт по (user_id, report_type) со start_date в пределах дня
func (s *PostgresReportsStorage) FindReport(ctx context.Context, userID uuid.UUID, reportType string, from, to time.Time) (*storage.ReportRecord, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE user_id = $1 AND report_type = $2 AND start_date >= $3 AND start_date < $4
		ORDER BY (artifact_url IS NOT NULL) DESC, created_at DESC
		LIMIT 1
	`

	report, err := scanReport(s.pool.QueryRow(ctx, query, userID, reportType, from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}
	return report, nil
}

// GetReport возвращает отчёт по ID
func (s *PostgresReportsStorage) GetReport(ctx context.Context, id uuid.UUID) (*storage.ReportRecord, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListReports возвращает список отчётов с пагинацией
func (s *PostgresReportsStorage) ListReports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]storage.ReportRecord, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []storage.ReportRecord{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *r)
	}

	return reports, rows.Err()
}

// AttachArtifact записывает ссылку на артефакт; повторная запись запрещена
func (s *PostgresReportsStorage) AttachArtifact(ctx context.Context, id uuid.UUID, objectKey, url string) (*storage.ReportRecord, error) {
	query := `
		UPDATE reports
		SET object_key = $2, artifact_url = $3, updated_at = NOW()
		WHERE id = $1 AND artifact_url IS NULL
		RETURNING ` + reportColumns

	report, err := scanReport(s.pool.QueryRow(ctx, query, id, objectKey, url))
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to attach artifact: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reports WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check report: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}
	return nil, storage.ErrArtifactAlreadyAttached
}

// DeleteReport удаляет отчёт
func (s *PostgresReportsStorage) DeleteReport(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM reports WHERE id = $1`
	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func scanReport(row pgx.Row) (*storage.ReportRecord, error) {
	var r storage.ReportRecord
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.ReportType,
		&r.StartDate,
		&r.ReportData,
		&r.ObjectKey,
		&r.ArtifactURL,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.StartDate = r.StartDate.UTC()
	return &r, nil
}
