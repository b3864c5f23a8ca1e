package reports

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ComputeWindow derives the report period and the record-matching day
// boundaries. Anything other than weekly is treated as a 30-day period.
func ComputeWindow(reportType ReportType, startDate time.Time) ReportWindow {
	dayStart := utcDay(startDate)
	dayEnd := dayStart.Add(24*time.Hour - time.Millisecond)

	days := 30
	if reportType == ReportTypeWeekly {
		days = 7
	}

	return ReportWindow{
		ReportType: reportType,
		StartDate:  dayStart,
		EndDate:    dayStart.AddDate(0, 0, days),
		DayStart:   dayStart,
		DayEnd:     dayEnd,
	}
}

// Key returns the identity key user:type:YYYY-MM-DD.
func (w ReportWindow) Key(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", userID, w.ReportType, w.DayStart.Format(dateLayout))
}

// Contains reports whether t's UTC calendar date is in [StartDate, EndDate].
func (w ReportWindow) Contains(t time.Time) bool {
	day := utcDay(t)
	return !day.Before(w.StartDate) && !day.After(w.EndDate)
}

// ParseStartDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseStartDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidStartDate
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidStartDate
}

// ParseReportType validates a request report type.
func ParseReportType(raw string) (ReportType, error) {
	t := ReportType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", ErrInvalidReportType
	}
	return t, nil
}

// utcDay truncates t to midnight of its UTC calendar day.
func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
