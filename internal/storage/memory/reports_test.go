package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportsMemoryStorage_FindReportPrefersComplete(t *testing.T) {
	ctx := context.Background()
	s := NewReportsMemoryStorage()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := base
	s.now = func() time.Time { tick = tick.Add(time.Second); return tick }

	userID := uuid.New()
	dayStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	complete := &storage.ReportRecord{UserID: userID, ReportType: "weekly", StartDate: base}
	require.NoError(t, s.CreateReport(ctx, complete))
	_, err := s.AttachArtifact(ctx, complete.ID, "reports/a.pdf", "https://cdn/a.pdf")
	require.NoError(t, err)

	provisional := &storage.ReportRecord{UserID: userID, ReportType: "weekly", StartDate: base}
	require.NoError(t, s.CreateReport(ctx, provisional))

	found, err := s.FindReport(ctx, userID, "weekly", dayStart, dayEnd)
	require.NoError(t, err)
	assert.Equal(t, complete.ID, found.ID)
}

func TestReportsMemoryStorage_FindReportDayBoundaries(t *testing.T) {
	ctx := context.Background()
	s := NewReportsMemoryStorage()
	userID := uuid.New()

	dayStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	require.NoError(t, s.CreateReport(ctx, &storage.ReportRecord{
		UserID: userID, ReportType: "weekly", StartDate: dayStart.AddDate(0, 0, 1),
	}))
	require.NoError(t, s.CreateReport(ctx, &storage.ReportRecord{
		UserID: userID, ReportType: "monthly", StartDate: dayStart,
	}))

	_, err := s.FindReport(ctx, userID, "weekly", dayStart, dayEnd)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	found, err := s.FindReport(ctx, userID, "monthly", dayStart, dayEnd)
	require.NoError(t, err)
	assert.Equal(t, "monthly", found.ReportType)
}

func TestReportsMemoryStorage_FindReportSubMillisecondDayEnd(t *testing.T) {
	ctx := context.Background()
	s := NewReportsMemoryStorage()
	userID := uuid.New()

	dayStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 1, 23, 59, 59, 999_500_000, time.UTC)

	rec := &storage.ReportRecord{UserID: userID, ReportType: "weekly", StartDate: late}
	require.NoError(t, s.CreateReport(ctx, rec))

	found, err := s.FindReport(ctx, userID, "weekly", dayStart, dayStart.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	_, err = s.FindReport(ctx, userID, "weekly", dayStart.AddDate(0, 0, 1), dayStart.AddDate(0, 0, 2))
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestReportsMemoryStorage_AttachArtifactOnce(t *testing.T) {
	ctx := context.Background()
	s := NewReportsMemoryStorage()

	r := &storage.ReportRecord{UserID: uuid.New(), ReportType: "weekly", StartDate: time.Now().UTC()}
	require.NoError(t, s.CreateReport(ctx, r))

	got, err := s.AttachArtifact(ctx, r.ID, "k1", "u1")
	require.NoError(t, err)
	require.True(t, got.Complete())

	_, err = s.AttachArtifact(ctx, r.ID, "k2", "u2")
	require.ErrorIs(t, err, storage.ErrArtifactAlreadyAttached)

	stored, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", *stored.ArtifactURL)

	_, err = s.AttachArtifact(ctx, uuid.New(), "k", "u")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReportsMemoryStorage_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewReportsMemoryStorage()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateReport(ctx, &storage.ReportRecord{
			UserID: userID, ReportType: "weekly", StartDate: time.Now().UTC(),
		}))
	}
	require.NoError(t, s.CreateReport(ctx, &storage.ReportRecord{
		UserID: uuid.New(), ReportType: "weekly", StartDate: time.Now().UTC(),
	}))

	list, err := s.ListReports(ctx, userID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.ListReports(ctx, userID, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.DeleteReport(ctx, firstReportID(t, s, userID)))
	list, err = s.ListReports(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.ErrorIs(t, s.DeleteReport(ctx, uuid.New()), storage.ErrNotFound)
}

func firstReportID(t *testing.T, s *ReportsMemoryStorage, userID uuid.UUID) uuid.UUID {
	t.Helper()
	list, err := s.ListReports(context.Background(), userID, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0].ID
}

func TestSeedDemo(t *testing.T) {
	m := New()
	id := SeedDemo(m, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	u, err := m.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Demo User", u.Name)

	snap, err := m.GetUserHealthSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.GlucoseReadings)
	assert.NotEmpty(t, snap.RiskAssessments)
	assert.Equal(t, "yes", snap.RiskFactors["obesity"])
}
