package reports

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fdg312/sugarcheck/internal/keylock"
	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/fdg312/sugarcheck/internal/userctx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (env *testEnv) serviceWith(reports storage.ReportsStorage, locker keylock.Locker, cfg Config) *Service {
	if cfg.RenderTimeout == 0 {
		cfg.RenderTimeout = time.Second
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = time.Second
	}
	return NewService(env.store, reports, env.logs, env.blobs, env.engines.factory, locker, cfg, zap.NewNop())
}

func (env *testEnv) reportsFor(t *testing.T, userID uuid.UUID) []storage.ReportRecord {
	t.Helper()
	list, err := env.store.ListReports(context.Background(), userID, 100, 0)
	require.NoError(t, err)
	return list
}

func (env *testEnv) insertProvisional(t *testing.T, start time.Time) uuid.UUID {
	t.Helper()
	rec := &storage.ReportRecord{UserID: env.userID, ReportType: "weekly", StartDate: start, ReportData: []byte("{}")}
	require.NoError(t, env.store.CreateReport(context.Background(), rec))
	return rec.ID
}

func TestGenerate_FreshReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.True(t, res.Created)

	key := ObjectKey(env.userID, ComputeWindow(ReportTypeWeekly, date(2024, 1, 1)), res.ReportID)
	assert.Equal(t, "http://localhost:8080/v1/artifacts/"+key, res.URL)

	data, _, err := env.blobs.GetPublic(key)
	require.NoError(t, err)
	assert.True(t, isPDF(data))

	rec, err := env.store.GetReport(ctx, res.ReportID)
	require.NoError(t, err)
	assert.True(t, rec.Complete())
	assert.Equal(t, key, *rec.ObjectKey)
	assert.Contains(t, string(rec.ReportData), `"value":120`)
	assert.NotContains(t, string(rec.ReportData), `"value":150`, "reading after the window end")
	assert.Equal(t, int32(1), env.engines.acquired.Load())
	env.engines.waitClosed(t, 1)
}

func TestGenerate_IdempotentWithinDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)

	// same UTC day, different time of day
	second, err := env.service.Generate(ctx, env.userID, GenerateRequest{ReportType: "Weekly", StartDate: "2024-01-01T22:15:00Z"})
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, first.ReportID, second.ReportID)
	assert.False(t, second.Created)

	assert.Equal(t, int32(1), env.logs.calls.Load(), "cache hit must not read the health log")
	assert.Equal(t, int32(1), env.engines.acquired.Load())
	assert.Equal(t, int32(1), env.blobs.uploads.Load())
	assert.Len(t, env.reportsFor(t, env.userID), 1)
}

func TestGenerate_IdempotentAtSubMillisecondDayEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := GenerateRequest{ReportType: "weekly", StartDate: "2024-01-01T23:59:59.9995Z"}

	first, err := env.service.Generate(ctx, env.userID, req)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := env.service.Generate(ctx, env.userID, req)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.URL, second.URL)

	third, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.Equal(t, first.ReportID, third.ReportID)

	list := env.reportsFor(t, env.userID)
	require.Len(t, list, 1)
	assert.Equal(t, date(2024, 1, 1), list[0].StartDate, "start date is stored as its UTC day")
	assert.Equal(t, int32(1), env.blobs.uploads.Load())
}

func TestGenerate_DifferentTypeOrDayIsDifferentReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	weekly, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	monthly, err := env.service.Generate(ctx, env.userID, GenerateRequest{ReportType: "monthly", StartDate: "2024-01-01"})
	require.NoError(t, err)
	nextDay, err := env.service.Generate(ctx, env.userID, GenerateRequest{ReportType: "weekly", StartDate: "2024-01-02"})
	require.NoError(t, err)

	assert.NotEqual(t, weekly.URL, monthly.URL)
	assert.NotEqual(t, weekly.URL, nextDay.URL)
	assert.True(t, monthly.Created)
	assert.True(t, nextDay.Created)
	assert.Len(t, env.reportsFor(t, env.userID), 3)
}

func TestGenerate_StaleRecordIsReplaced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staleID := env.insertProvisional(t, date(2024, 1, 1).Add(3*time.Hour))

	res, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEqual(t, staleID, res.ReportID)

	_, err = env.store.GetReport(ctx, staleID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Len(t, env.reportsFor(t, env.userID), 1)
}

func TestGenerate_StaleDeleteFailureIsTolerated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staleID := env.insertProvisional(t, date(2024, 1, 1))
	svc := env.serviceWith(failingDeleteReports{env.store}, keylock.NewMemory(), Config{})

	res, err := svc.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.True(t, res.Created)

	// the stale row survives, but the complete one wins on lookup
	_, err = env.store.GetReport(ctx, staleID)
	require.NoError(t, err)

	again, err := svc.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.URL, again.URL)
}

func TestGenerate_RenderFailureLeavesProvisionalRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.engines.set(fakeEngine{err: errors.New("engine crashed")})

	_, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.ErrorIs(t, err, ErrRenderFailed)
	assert.False(t, IsRetryable(err))

	list := env.reportsFor(t, env.userID)
	require.Len(t, list, 1)
	assert.False(t, list[0].Complete())
	assert.Equal(t, 0, env.blobs.Len())

	env.engines.set(fakeEngine{data: []byte("%PDF-1.3 ok")})
	res, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.True(t, res.Created)

	list = env.reportsFor(t, env.userID)
	require.Len(t, list, 1)
	assert.True(t, list[0].Complete())
	env.engines.waitClosed(t, 2)
}

func TestGenerate_UploadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.uploadErr = errors.New("bucket gone")

	_, err := env.service.Generate(context.Background(), env.userID, weeklyJan1())
	require.ErrorIs(t, err, ErrUploadFailed)
	env.engines.waitClosed(t, 1)
}

func TestGenerate_RenderTimeout(t *testing.T) {
	env := newTestEnv(t, func(env *testEnv, cfg *Config) {
		cfg.RenderTimeout = 20 * time.Millisecond
	})
	env.engines.set(fakeEngine{data: []byte("%PDF"), delay: 150 * time.Millisecond})

	_, err := env.service.Generate(context.Background(), env.userID, weeklyJan1())
	require.ErrorIs(t, err, ErrGenerationTimeout)
	assert.True(t, IsRetryable(err))
	env.engines.waitClosed(t, 1)
}

func TestGenerate_MissingRiskAssessment(t *testing.T) {
	env := newTestEnv(t)
	other := uuid.New()
	env.store.PutUser(storage.User{ID: other, Name: "New User"})
	env.store.HealthLog().AddGlucose(other, storage.GlucoseReading{Timestamp: date(2024, 1, 2), Value: 99})

	_, err := env.service.Generate(context.Background(), other, weeklyJan1())
	require.ErrorIs(t, err, ErrMissingRiskAssessment)

	assert.Equal(t, int32(0), env.engines.acquired.Load())
	assert.Empty(t, env.reportsFor(t, other))
}

func TestGenerate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  GenerateRequest
		want error
	}{
		{"unknown type", GenerateRequest{ReportType: "yearly", StartDate: "2024-01-01"}, ErrInvalidReportType},
		{"empty type", GenerateRequest{StartDate: "2024-01-01"}, ErrInvalidReportType},
		{"empty date", GenerateRequest{ReportType: "weekly"}, ErrInvalidStartDate},
		{"bad date", GenerateRequest{ReportType: "weekly", StartDate: "01/02/2024"}, ErrInvalidStartDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.Generate(ctx, env.userID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, int32(0), env.logs.calls.Load())
}

func TestGenerate_UserNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Generate(context.Background(), uuid.New(), weeklyJan1())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGenerate_ForbiddenForOtherCaller(t *testing.T) {
	env := newTestEnv(t)
	ctx := userctx.WithUserID(context.Background(), uuid.New())

	_, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	assert.ErrorIs(t, err, ErrForbidden)

	own := userctx.WithUserID(context.Background(), env.userID)
	_, err = env.service.Generate(own, env.userID, weeklyJan1())
	assert.NoError(t, err)
}

func TestGenerate_ConcurrentIdenticalRequestsGenerateOnce(t *testing.T) {
	env := newTestEnv(t)
	env.engines.set(fakeEngine{data: []byte("%PDF-1.3 slow"), delay: 50 * time.Millisecond})

	const n = 5
	var wg sync.WaitGroup
	urls := make([]string, n)
	errs := make([]error, n)
	created := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.service.Generate(context.Background(), env.userID, weeklyJan1())
			errs[i] = err
			if res != nil {
				urls[i] = res.URL
				created[i] = res.Created
			}
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, urls[0], urls[i])
		if created[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
	assert.Equal(t, int32(1), env.engines.acquired.Load())
	assert.Len(t, env.reportsFor(t, env.userID), 1)
}

func TestGenerate_LockWaitTimeout(t *testing.T) {
	env := newTestEnv(t)
	locker := keylock.NewMemory()
	svc := env.serviceWith(env.store, locker, Config{LockWait: 20 * time.Millisecond})

	key := ComputeWindow(ReportTypeWeekly, date(2024, 1, 1)).Key(env.userID)
	release, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	_, err = svc.Generate(context.Background(), env.userID, weeklyJan1())
	require.ErrorIs(t, err, ErrGenerationTimeout)
	assert.Equal(t, int32(0), env.engines.acquired.Load())
}

type brokenLocker struct{}

func (brokenLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return nil, errors.New("redis: connection refused")
}

func TestGenerate_LockBackendFailureContinuesUnlocked(t *testing.T) {
	env := newTestEnv(t)
	svc := env.serviceWith(env.store, brokenLocker{}, Config{})

	res, err := svc.Generate(context.Background(), env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestGenerate_ObserverSeesPipeline(t *testing.T) {
	log := &transitionLog{}
	env := newTestEnv(t, func(env *testEnv, cfg *Config) {
		cfg.Observer = log.observe
	})

	_, err := env.service.Generate(context.Background(), env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.Equal(t, []State{StateRendering, StateRendered, StateUploading, StateUploaded}, log.states())
}

func TestListReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		_, err := env.service.Generate(ctx, env.userID, GenerateRequest{ReportType: "weekly", StartDate: d})
		require.NoError(t, err)
	}

	list, err := env.service.ListReports(ctx, env.userID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	for _, r := range list {
		assert.Equal(t, StatusReady, r.Status())
	}

	page, err := env.service.ListReports(ctx, env.userID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	_, err = env.service.ListReports(ctx, uuid.New(), 10, 0)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.service.ListReports(userctx.WithUserID(ctx, uuid.New()), env.userID, 10, 0)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	require.Equal(t, 1, env.blobs.Len())

	// another caller cannot see it
	err = env.service.DeleteReport(userctx.WithUserID(ctx, uuid.New()), res.ReportID)
	require.ErrorIs(t, err, ErrReportNotFound)

	require.NoError(t, env.service.DeleteReport(ctx, res.ReportID))
	assert.Equal(t, 0, env.blobs.Len())
	assert.Empty(t, env.reportsFor(t, env.userID))

	err = env.service.DeleteReport(ctx, res.ReportID)
	assert.ErrorIs(t, err, ErrReportNotFound)

	// deleting invalidates the cache entry
	again, err := env.service.Generate(ctx, env.userID, weeklyJan1())
	require.NoError(t, err)
	assert.True(t, again.Created)
	assert.NotEqual(t, res.ReportID, again.ReportID)
}
