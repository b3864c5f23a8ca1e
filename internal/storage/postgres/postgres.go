package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PostgresStorage - Postgres реализация storage.Storage
type PostgresStorage struct {
	pool    *pgxpool.Pool
	db      *sql.DB
	health  *HealthLogReader
	reports *PostgresReportsStorage
}

var _ storage.Storage = (*PostgresStorage)(nil)

// New открывает пул соединений и проверяет доступность базы
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Журнал здоровья читается через database/sql поверх того же пула
	db := stdlib.OpenDBFromPool(pool)

	return &PostgresStorage{
		pool:    pool,
		db:      db,
		health:  NewHealthLogReader(db),
		reports: NewPostgresReportsStorage(pool),
	}, nil
}

func (p *PostgresStorage) GetUser(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	query := `
		SELECT id, name, email, gender, date_of_birth, created_at
		FROM users
		WHERE id = $1
	`

	var u storage.User
	var dob *time.Time
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Gender,
		&dob,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.DateOfBirth = dob
	return &u, nil
}

func (p *PostgresStorage) GetUserHealthSnapshot(ctx context.Context, userID uuid.UUID) (*storage.HealthSnapshot, error) {
	return p.health.GetUserHealthSnapshot(ctx, userID)
}

func (p *PostgresStorage) CreateReport(ctx context.Context, report *storage.ReportRecord) error {
	return p.reports.CreateReport(ctx, report)
}

func (p *PostgresStorage) FindReport(ctx context.Context, userID uuid.UUID, reportType string, from, to time.Time) (*storage.ReportRecord, error) {
	return p.reports.FindReport(ctx, userID, reportType, from, to)
}

func (p *PostgresStorage) GetReport(ctx context.Context, id uuid.UUID) (*storage.ReportRecord, error) {
	return p.reports.GetReport(ctx, id)
}

func (p *PostgresStorage) ListReports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]storage.ReportRecord, error) {
	return p.reports.ListReports(ctx, userID, limit, offset)
}

func (p *PostgresStorage) AttachArtifact(ctx context.Context, id uuid.UUID, objectKey, url string) (*storage.ReportRecord, error) {
	return p.reports.AttachArtifact(ctx, id, objectKey, url)
}

func (p *PostgresStorage) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return p.reports.DeleteReport(ctx, id)
}

func (p *PostgresStorage) Close() error {
	err := p.db.Close()
	p.pool.Close()
	return err
}
