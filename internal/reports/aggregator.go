package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
)

// derivedRiskKeys are bookkeeping fields stored alongside the questionnaire.
var derivedRiskKeys = map[string]struct{}{
	"id":        {},
	"_id":       {},
	"userId":    {},
	"user_id":   {},
	"createdAt": {},
	"updatedAt": {},
}

// Aggregator builds report snapshots from the health log.
type Aggregator struct {
	logs storage.HealthLogStorage
}

func NewAggregator(logs storage.HealthLogStorage) *Aggregator {
	return &Aggregator{logs: logs}
}

// Aggregate filters readings to the window and picks the latest risk state.
func (a *Aggregator) Aggregate(ctx context.Context, userID uuid.UUID, w ReportWindow) (Snapshot, error) {
	h, err := a.logs.GetUserHealthSnapshot(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read health log: %w", err)
	}
	if h == nil {
		h = &storage.HealthSnapshot{}
	}

	assessment, ok := latestAssessment(h.RiskAssessments)
	if !ok {
		return Snapshot{}, ErrMissingRiskAssessment
	}

	snap := Snapshot{
		GlucoseReadings: []storage.GlucoseReading{},
		A1cReadings:     []storage.A1cReading{},
		RiskFactors:     map[string]string{},
		RiskAssessment:  assessment,
	}
	for _, g := range h.GlucoseReadings {
		if w.Contains(g.Timestamp) {
			snap.GlucoseReadings = append(snap.GlucoseReadings, g)
		}
	}
	for _, r := range h.A1cReadings {
		if w.Contains(r.Timestamp) {
			snap.A1cReadings = append(snap.A1cReadings, r)
		}
	}
	sort.SliceStable(snap.GlucoseReadings, func(i, j int) bool {
		return snap.GlucoseReadings[i].Timestamp.Before(snap.GlucoseReadings[j].Timestamp)
	})
	sort.SliceStable(snap.A1cReadings, func(i, j int) bool {
		return snap.A1cReadings[i].Timestamp.Before(snap.A1cReadings[j].Timestamp)
	})

	for k, v := range h.RiskFactors {
		if _, derived := derivedRiskKeys[k]; derived {
			continue
		}
		snap.RiskFactors[k] = v
	}

	return snap, nil
}

// latestAssessment returns the entry with the greatest date; ties go to the
// later entry in the slice.
func latestAssessment(list []storage.RiskAssessment) (storage.RiskAssessment, bool) {
	if len(list) == 0 {
		return storage.RiskAssessment{}, false
	}
	best := 0
	for i := 1; i < len(list); i++ {
		if !list[i].Date.Before(list[best].Date) {
			best = i
		}
	}
	return list[best], true
}
