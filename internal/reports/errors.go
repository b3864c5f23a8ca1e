package reports

import (
	"context"
	"errors"
)

// Validation
var (
	ErrInvalidReportType = errors.New("invalid report type")
	ErrInvalidStartDate  = errors.New("invalid start date")
	ErrUserNotFound      = errors.New("user not found")
	ErrReportNotFound    = errors.New("report not found")
)

// ErrForbidden is returned when the caller is not the requested user.
var ErrForbidden = errors.New("forbidden")

// ErrMissingRiskAssessment means the report has no risk section to render.
var ErrMissingRiskAssessment = errors.New("complete your risk assessment first")

// Generation failures
var (
	ErrRenderFailed      = errors.New("report render failed")
	ErrUploadFailed      = errors.New("report upload failed")
	ErrGenerationTimeout = errors.New("report generation timed out")
)

// IsRetryable reports whether the same request may succeed if repeated
// without user action.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGenerationTimeout) || errors.Is(err, context.DeadlineExceeded)
}
