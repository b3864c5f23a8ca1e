package reports

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fdg312/sugarcheck/internal/blob"
	"github.com/fdg312/sugarcheck/internal/document"
	"github.com/fdg312/sugarcheck/internal/keylock"
	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/fdg312/sugarcheck/internal/storage/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// countingHealthLog counts snapshot reads.
type countingHealthLog struct {
	inner storage.HealthLogStorage
	calls atomic.Int32
}

func (c *countingHealthLog) GetUserHealthSnapshot(ctx context.Context, userID uuid.UUID) (*storage.HealthSnapshot, error) {
	c.calls.Add(1)
	return c.inner.GetUserHealthSnapshot(ctx, userID)
}

// fakeEngine is a scripted render engine.
type fakeEngine struct {
	data    []byte
	err     error
	delay   time.Duration
	panics  bool
	closed  *atomic.Int32
	renders *atomic.Int32
}

func (e *fakeEngine) RenderDocumentToBytes(ctx context.Context, doc document.Document) ([]byte, error) {
	e.renders.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.panics {
		panic("engine crashed")
	}
	return e.data, e.err
}

func (e *fakeEngine) Close() error {
	e.closed.Add(1)
	return nil
}

// engineSpy builds fake engines and records their lifecycle.
type engineSpy struct {
	mu       sync.Mutex
	acquired atomic.Int32
	closed   atomic.Int32
	renders  atomic.Int32
	next     fakeEngine
	acquire  error
}

func newEngineSpy() *engineSpy {
	return &engineSpy{next: fakeEngine{data: []byte("%PDF-1.3 fake")}}
}

func (s *engineSpy) set(e fakeEngine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = e
}

func (s *engineSpy) factory(ctx context.Context) (RenderEngine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquire != nil {
		return nil, s.acquire
	}
	s.acquired.Add(1)
	e := s.next
	e.closed = &s.closed
	e.renders = &s.renders
	return &e, nil
}

// waitClosed waits for background engine goroutines to finish.
func (s *engineSpy) waitClosed(t *testing.T, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.closed.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d engines closed, got %d", want, s.closed.Load())
}

// spyStore wraps a memory blob store with counters and failure injection.
type spyStore struct {
	*blob.MemoryStore
	uploads     atomic.Int32
	deletes     atomic.Int32
	uploadErr   error
	publicErr   error
	uploadDelay time.Duration
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: blob.NewMemoryStore("http://localhost:8080/v1/artifacts")}
}

func (s *spyStore) StreamUpload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (blob.ObjectRef, error) {
	s.uploads.Add(1)
	if s.uploadDelay > 0 {
		select {
		case <-time.After(s.uploadDelay):
		case <-ctx.Done():
			return blob.ObjectRef{}, ctx.Err()
		}
	}
	if s.uploadErr != nil {
		_, _ = io.Copy(io.Discard, r)
		return blob.ObjectRef{}, s.uploadErr
	}
	return s.MemoryStore.StreamUpload(ctx, key, r, size, contentType)
}

func (s *spyStore) MakePublic(ctx context.Context, ref blob.ObjectRef) error {
	if s.publicErr != nil {
		return s.publicErr
	}
	return s.MemoryStore.MakePublic(ctx, ref)
}

func (s *spyStore) Delete(ctx context.Context, key string) error {
	s.deletes.Add(1)
	return s.MemoryStore.Delete(ctx, key)
}

// failingDeleteReports makes DeleteReport fail.
type failingDeleteReports struct {
	storage.ReportsStorage
}

func (f failingDeleteReports) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return errors.New("disk on fire")
}

type testEnv struct {
	store   *memory.MemoryStorage
	logs    *countingHealthLog
	engines *engineSpy
	blobs   *spyStore
	service *Service
	userID  uuid.UUID
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newTestEnv builds a service over memory storage with one user who has a
// risk assessment and glucose readings on 2024-01-01, 01-05 and 01-09.
func newTestEnv(t *testing.T, opts ...func(*testEnv, *Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   memory.New(),
		engines: newEngineSpy(),
		blobs:   newSpyStore(),
		userID:  uuid.New(),
	}
	env.logs = &countingHealthLog{inner: env.store}

	dob := date(1990, time.March, 3)
	env.store.PutUser(storage.User{ID: env.userID, Name: "Test User", Email: "test@example.com", Gender: "male", DateOfBirth: &dob})
	h := env.store.HealthLog()
	h.AddGlucose(env.userID,
		storage.GlucoseReading{Timestamp: date(2024, 1, 5).Add(9 * time.Hour), Value: 120},
		storage.GlucoseReading{Timestamp: date(2024, 1, 1).Add(8 * time.Hour), Value: 101},
		storage.GlucoseReading{Timestamp: date(2024, 1, 9).Add(7 * time.Hour), Value: 150},
	)
	h.SetRiskFactors(env.userID, map[string]string{"age": "33", "gender": "male", "polyuria": "yes", "suddenWeightLoss": "no"})
	h.AddRiskAssessment(env.userID, storage.RiskAssessment{RiskScore: 0.42, PredictionResult: "low risk", Date: date(2023, 12, 20)})

	cfg := Config{RenderTimeout: time.Second, UploadTimeout: time.Second}
	for _, o := range opts {
		o(env, &cfg)
	}

	env.service = NewService(env.store, env.store, env.logs, env.blobs, env.engines.factory, keylock.NewMemory(), cfg, zap.NewNop())
	return env
}

func weeklyJan1() GenerateRequest {
	return GenerateRequest{ReportType: "weekly", StartDate: "2024-01-01"}
}

func isPDF(b []byte) bool {
	return bytes.HasPrefix(b, []byte("%PDF"))
}

func userWithoutAssessment(id uuid.UUID) storage.User {
	return storage.User{ID: id, Name: "No Assessment"}
}
