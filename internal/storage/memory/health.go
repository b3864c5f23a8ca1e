package memory

import (
	"context"
	"sync"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
)

// HealthLogMemoryStorage хранит журнал здоровья в памяти
type HealthLogMemoryStorage struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*storage.HealthSnapshot
}

func NewHealthLogMemoryStorage() *HealthLogMemoryStorage {
	return &HealthLogMemoryStorage{users: make(map[uuid.UUID]*storage.HealthSnapshot)}
}

// GetUserHealthSnapshot возвращает копию истории; для неизвестного пользователя пустой снимок
func (s *HealthLogMemoryStorage) GetUserHealthSnapshot(ctx context.Context, userID uuid.UUID) (*storage.HealthSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.users[userID]
	if !ok {
		return &storage.HealthSnapshot{}, nil
	}

	out := &storage.HealthSnapshot{
		GlucoseReadings: append([]storage.GlucoseReading(nil), src.GlucoseReadings...),
		A1cReadings:     append([]storage.A1cReading(nil), src.A1cReadings...),
		RiskAssessments: append([]storage.RiskAssessment(nil), src.RiskAssessments...),
	}
	if src.RiskFactors != nil {
		out.RiskFactors = make(map[string]string, len(src.RiskFactors))
		for k, v := range src.RiskFactors {
			out.RiskFactors[k] = v
		}
	}
	return out, nil
}

func (s *HealthLogMemoryStorage) entry(userID uuid.UUID) *storage.HealthSnapshot {
	h, ok := s.users[userID]
	if !ok {
		h = &storage.HealthSnapshot{}
		s.users[userID] = h
	}
	return h
}

func (s *HealthLogMemoryStorage) AddGlucose(userID uuid.UUID, readings ...storage.GlucoseReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.entry(userID)
	h.GlucoseReadings = append(h.GlucoseReadings, readings...)
}

func (s *HealthLogMemoryStorage) AddA1c(userID uuid.UUID, readings ...storage.A1cReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.entry(userID)
	h.A1cReadings = append(h.A1cReadings, readings...)
}

func (s *HealthLogMemoryStorage) AddRiskAssessment(userID uuid.UUID, assessments ...storage.RiskAssessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.entry(userID)
	h.RiskAssessments = append(h.RiskAssessments, assessments...)
}

// SetRiskFactors заменяет последнюю анкету симптомов
func (s *HealthLogMemoryStorage) SetRiskFactors(userID uuid.UUID, factors map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.entry(userID)
	h.RiskFactors = make(map[string]string, len(factors))
	for k, v := range factors {
		h.RiskFactors[k] = v
	}
}
