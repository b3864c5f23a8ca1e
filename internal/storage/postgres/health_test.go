package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthLogReader_GetUserHealthSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()
	t1 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT recorded_at, value_mg_dl FROM glucose_readings`)).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"recorded_at", "value_mg_dl"}).
			AddRow(t1, 101.0).
			AddRow(t2, 134.5))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT estimated_at, estimated_value FROM a1c_readings`)).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"estimated_at", "estimated_value"}).
			AddRow(t2, 5.7))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT factors FROM risk_factors`)).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"factors"}).
			AddRow([]byte(`{"age":42,"gender":"male","obesity":"yes","itching":false}`)))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT risk_score, prediction_result, assessed_at FROM risk_assessments`)).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"risk_score", "prediction_result", "assessed_at"}).
			AddRow(0.7, "high risk", t2))

	snap, err := NewHealthLogReader(db).GetUserHealthSnapshot(context.Background(), userID)
	require.NoError(t, err)

	require.Len(t, snap.GlucoseReadings, 2)
	assert.Equal(t, 134.5, snap.GlucoseReadings[1].Value)
	require.Len(t, snap.A1cReadings, 1)
	assert.Equal(t, "42", snap.RiskFactors["age"])
	assert.Equal(t, "false", snap.RiskFactors["itching"])
	assert.Equal(t, "yes", snap.RiskFactors["obesity"])
	require.Len(t, snap.RiskAssessments, 1)
	assert.Equal(t, "high risk", snap.RiskAssessments[0].PredictionResult)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthLogReader_NoRiskFactors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()
	mock.ExpectQuery(`glucose_readings`).WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"recorded_at", "value_mg_dl"}))
	mock.ExpectQuery(`a1c_readings`).WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"estimated_at", "estimated_value"}))
	mock.ExpectQuery(`risk_factors`).WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"factors"}))
	mock.ExpectQuery(`risk_assessments`).WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"risk_score", "prediction_result", "assessed_at"}))

	snap, err := NewHealthLogReader(db).GetUserHealthSnapshot(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, snap.GlucoseReadings)
	assert.Empty(t, snap.RiskFactors)
	assert.Empty(t, snap.RiskAssessments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthLogReader_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()
	boom := errors.New("connection reset")
	mock.ExpectQuery(`glucose_readings`).WithArgs(userID.String()).WillReturnError(boom)

	_, err = NewHealthLogReader(db).GetUserHealthSnapshot(context.Background(), userID)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
