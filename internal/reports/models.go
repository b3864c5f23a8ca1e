package reports

import (
	"time"

	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/google/uuid"
)

// ReportType is the period a report covers.
type ReportType string

const (
	ReportTypeWeekly  ReportType = "weekly"
	ReportTypeMonthly ReportType = "monthly"

	StatusReady   = "ready"
	StatusPending = "pending"

	contentTypePDF = "application/pdf"
	dateLayout     = "2006-01-02"
)

func (t ReportType) Valid() bool {
	return t == ReportTypeWeekly || t == ReportTypeMonthly
}

// ReportWindow is the derived period of a report request.
type ReportWindow struct {
	ReportType ReportType
	StartDate  time.Time // UTC midnight of the requested day
	EndDate    time.Time // StartDate + 7 or 30 days
	// DayStart and DayEnd bound StartDate's UTC day and never filter
	// report content. Record lookup is [DayStart, DayStart+24h).
	DayStart time.Time
	DayEnd   time.Time
}

// Snapshot is the frozen data a report was rendered from.
type Snapshot struct {
	GlucoseReadings []storage.GlucoseReading `json:"glucoseReadings"`
	A1cReadings     []storage.A1cReading     `json:"a1cReadings"`
	RiskFactors     map[string]string        `json:"riskFactors"`
	RiskAssessment  storage.RiskAssessment   `json:"riskAssessment"`
}

// Report is a persisted report as seen by the service.
type Report struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ReportType  ReportType
	StartDate   time.Time
	ObjectKey   string
	ArtifactURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Complete reports whether the artifact has been attached.
func (r *Report) Complete() bool {
	return r.ArtifactURL != ""
}

func (r *Report) Status() string {
	if r.Complete() {
		return StatusReady
	}
	return StatusPending
}

// GenerateRequest is the body of POST /v1/reports/generate/{id}
type GenerateRequest struct {
	ReportType string `json:"reportType"`
	StartDate  string `json:"startDate"` // YYYY-MM-DD (RFC 3339 accepted)
}

// GenerateResult is returned by Service.Generate
type GenerateResult struct {
	URL      string
	ReportID uuid.UUID
	// Created is false when an existing complete report was returned.
	Created bool
}

// GenerateResponse is the response body of the generate endpoint
type GenerateResponse struct {
	URL string `json:"url"`
}

// ReportDTO is the response representation of a report
type ReportDTO struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ReportType string    `json:"report_type"`
	StartDate  string    `json:"start_date"`
	URL        string    `json:"url,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportsResponse is the list response
type ReportsResponse struct {
	Reports []ReportDTO `json:"reports"`
}

func toReport(r *storage.ReportRecord) *Report {
	out := &Report{
		ID:         r.ID,
		UserID:     r.UserID,
		ReportType: ReportType(r.ReportType),
		StartDate:  r.StartDate.UTC(),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.ObjectKey != nil {
		out.ObjectKey = *r.ObjectKey
	}
	if r.ArtifactURL != nil {
		out.ArtifactURL = *r.ArtifactURL
	}
	return out
}

func toDTO(r *Report) ReportDTO {
	return ReportDTO{
		ID:         r.ID,
		UserID:     r.UserID,
		ReportType: string(r.ReportType),
		StartDate:  r.StartDate.Format(dateLayout),
		URL:        r.ArtifactURL,
		Status:     r.Status(),
		CreatedAt:  r.CreatedAt,
	}
}
