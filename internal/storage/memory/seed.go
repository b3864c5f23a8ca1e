package memory

import (
	"time"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
)

// DemoUserID is the fixed id of the user created by SeedDemo.
var DemoUserID = uuid.MustParse("6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b")

// SeedDemo заполняет хранилище демо-пользователем с историей за последние 45 дней
func SeedDemo(m *MemoryStorage, now time.Time) uuid.UUID {
	now = now.UTC()
	dob := time.Date(1988, time.May, 14, 0, 0, 0, 0, time.UTC)
	m.PutUser(storage.User{
		ID:          DemoUserID,
		Name:        "Demo User",
		Email:       "demo@sugarcheck.local",
		Gender:      "female",
		DateOfBirth: &dob,
	})

	h := m.HealthLog()
	today := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, time.UTC)
	for i := 45; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		h.AddGlucose(DemoUserID,
			storage.GlucoseReading{Timestamp: day, Value: float64(95 + (i*7)%40)},
			storage.GlucoseReading{Timestamp: day.Add(11 * time.Hour), Value: float64(120 + (i*11)%55)},
		)
		if i%14 == 0 {
			h.AddA1c(DemoUserID, storage.A1cReading{Timestamp: day, EstimatedValue: 5.4 + float64(i%5)/10})
		}
	}

	h.SetRiskFactors(DemoUserID, map[string]string{
		"age":              "37",
		"gender":           "female",
		"polyuria":         "no",
		"polydipsia":       "no",
		"suddenWeightLoss": "no",
		"weakness":         "yes",
		"polyphagia":       "no",
		"genitalThrush":    "no",
		"visualBlurring":   "yes",
		"itching":          "no",
		"irritability":     "no",
		"delayedHealing":   "no",
		"partialParesis":   "no",
		"muscleStiffness":  "no",
		"alopecia":         "no",
		"obesity":          "yes",
	})
	h.AddRiskAssessment(DemoUserID,
		storage.RiskAssessment{RiskScore: 0.41, PredictionResult: "low risk", Date: today.AddDate(0, 0, -30)},
		storage.RiskAssessment{RiskScore: 0.36, PredictionResult: "low risk", Date: today.AddDate(0, 0, -2)},
	)
	return DemoUserID
}
