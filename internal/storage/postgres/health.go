package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
)

// HealthLogReader читает журнал здоровья через database/sql
type HealthLogReader struct {
	db *sql.DB
}

func NewHealthLogReader(db *sql.DB) *HealthLogReader {
	return &HealthLogReader{db: db}
}

// GetUserHealthSnapshot загружает полную историю пользователя
func (r *HealthLogReader) GetUserHealthSnapshot(ctx context.Context, userID uuid.UUID) (*storage.HealthSnapshot, error) {
	snap := &storage.HealthSnapshot{}

	glucose, err := r.glucose(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap.GlucoseReadings = glucose

	a1c, err := r.a1c(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap.A1cReadings = a1c

	factors, err := r.riskFactors(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap.RiskFactors = factors

	assessments, err := r.riskAssessments(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap.RiskAssessments = assessments

	return snap, nil
}

func (r *HealthLogReader) glucose(ctx context.Context, userID uuid.UUID) ([]storage.GlucoseReading, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT recorded_at, value_mg_dl FROM glucose_readings WHERE user_id = $1 ORDER BY recorded_at ASC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query glucose readings: %w", err)
	}
	defer rows.Close()

	out := []storage.GlucoseReading{}
	for rows.Next() {
		var g storage.GlucoseReading
		if err := rows.Scan(&g.Timestamp, &g.Value); err != nil {
			return nil, fmt.Errorf("failed to scan glucose reading: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *HealthLogReader) a1c(ctx context.Context, userID uuid.UUID) ([]storage.A1cReading, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT estimated_at, estimated_value FROM a1c_readings WHERE user_id = $1 ORDER BY estimated_at ASC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query a1c readings: %w", err)
	}
	defer rows.Close()

	out := []storage.A1cReading{}
	for rows.Next() {
		var a storage.A1cReading
		if err := rows.Scan(&a.Timestamp, &a.EstimatedValue); err != nil {
			return nil, fmt.Errorf("failed to scan a1c reading: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// riskFactors возвращает последнюю анкету; значения приводятся к строкам
func (r *HealthLogReader) riskFactors(ctx context.Context, userID uuid.UUID) (map[string]string, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT factors FROM risk_factors WHERE user_id = $1 ORDER BY recorded_at DESC LIMIT 1`,
		userID.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query risk factors: %w", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode risk factors: %w", err)
	}

	out := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			b, _ := json.Marshal(val)
			out[k] = string(b)
		}
	}
	return out, nil
}

func (r *HealthLogReader) riskAssessments(ctx context.Context, userID uuid.UUID) ([]storage.RiskAssessment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT risk_score, prediction_result, assessed_at FROM risk_assessments WHERE user_id = $1 ORDER BY assessed_at ASC, id ASC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query risk assessments: %w", err)
	}
	defer rows.Close()

	out := []storage.RiskAssessment{}
	for rows.Next() {
		var a storage.RiskAssessment
		if err := rows.Scan(&a.RiskScore, &a.PredictionResult, &a.Date); err != nil {
			return nil, fmt.Errorf("failed to scan risk assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
