package reports

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/fdg312/sugarcheck/internal/document"
	"github.com/fdg312/sugarcheck/internal/storage"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ReportTitle = "SugarCheck Report"

	SectionPersonal   = "Personal Information"
	SectionReportType = "Report Type"
	SectionGlucose    = "Glucose Data"
	SectionA1c        = "HbA1c Data"
	SectionRisk       = "Risk Factors"
	SectionAssessment = "Latest Risk Assessment"
	SectionNextSteps  = "Next Steps"

	displayDate     = "02/01/2006"
	displayDateTime = "02/01/2006, 15:04:05"
)

// symptomOrder is the questionnaire order; unknown keys follow alphabetically.
var symptomOrder = []string{
	"polyuria", "polydipsia", "suddenWeightLoss", "weakness", "polyphagia",
	"genitalThrush", "visualBlurring", "itching", "irritability", "delayedHealing",
	"partialParesis", "muscleStiffness", "alopecia", "obesity",
}

// demographicKeys are risk inputs that are not symptoms.
var demographicKeys = map[string]struct{}{"age": {}, "gender": {}}

var nextStepsAdvice = []string{
	"Exercise regularly",
	"Follow a balanced diet",
	"Get enough sleep",
	"Manage stress",
	"Quit smoking",
}

var errMalformedInput = errors.New("malformed report input")

// Renderer turns a snapshot into a document. It performs no I/O.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render builds the report document for user over window w from snap.
func (r *Renderer) Render(user *storage.User, reportType ReportType, w ReportWindow, snap Snapshot) (document.Document, error) {
	if user == nil {
		return document.Document{}, fmt.Errorf("%w: nil user", errMalformedInput)
	}
	if !reportType.Valid() {
		return document.Document{}, fmt.Errorf("%w: %w", errMalformedInput, ErrInvalidReportType)
	}

	// cases.Caser is stateful, one per render
	title := cases.Title(language.English)

	doc := document.Document{
		Title:    ReportTitle,
		Subtitle: fmt.Sprintf("%s report, %s to %s", title.String(string(reportType)), w.StartDate.Format(displayDate), w.EndDate.Format(displayDate)),
		Sections: []document.Section{
			personalSection(user, title),
			document.NewSection(SectionReportType, document.Fields(
				document.Field{Label: "Type", Value: title.String(string(reportType))},
				document.Field{Label: "From", Value: w.StartDate.Format(displayDate)},
				document.Field{Label: "To", Value: w.EndDate.Format(displayDate)},
			)),
			glucoseSection(snap.GlucoseReadings),
			a1cSection(snap.A1cReadings),
			riskFactorsSection(snap.RiskFactors, title),
			assessmentSection(snap.RiskAssessment, title),
			nextStepsSection(),
		},
	}

	if err := doc.Validate(); err != nil {
		return document.Document{}, err
	}
	return doc, nil
}

func personalSection(u *storage.User, title cases.Caser) document.Section {
	dob := "-"
	if u.DateOfBirth != nil {
		dob = u.DateOfBirth.UTC().Format(displayDate)
	}
	return document.NewSection(SectionPersonal, document.Fields(
		document.Field{Label: "Name", Value: orDash(u.Name)},
		document.Field{Label: "Date of Birth", Value: dob},
		document.Field{Label: "Gender", Value: orDash(title.String(u.Gender))},
		document.Field{Label: "Email", Value: orDash(u.Email)},
	))
}

func glucoseSection(readings []storage.GlucoseReading) document.Section {
	sorted := append([]storage.GlucoseReading(nil), readings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	rows := make([][]string, 0, len(sorted))
	for _, g := range sorted {
		rows = append(rows, []string{g.Timestamp.UTC().Format(displayDateTime), formatNumber(g.Value)})
	}
	return document.NewSection(SectionGlucose, document.TableBlock(document.Table{
		Columns: []string{"Time Recorded", "Value (mg/dL)"},
		Rows:    rows,
		Empty:   "No glucose readings in this period",
	}))
}

func a1cSection(readings []storage.A1cReading) document.Section {
	sorted := append([]storage.A1cReading(nil), readings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	rows := make([][]string, 0, len(sorted))
	for _, a := range sorted {
		rows = append(rows, []string{a.Timestamp.UTC().Format(displayDateTime), formatNumber(a.EstimatedValue)})
	}
	return document.NewSection(SectionA1c, document.TableBlock(document.Table{
		Columns: []string{"Time Estimated", "Estimated Value"},
		Rows:    rows,
		Empty:   "No HbA1c estimates in this period",
	}))
}

func riskFactorsSection(factors map[string]string, title cases.Caser) document.Section {
	items := make([]string, 0, len(factors))
	for _, k := range orderedRiskKeys(factors) {
		items = append(items, fmt.Sprintf("%s: %s", humanizeKey(k, title), title.String(factors[k])))
	}
	if len(items) == 0 {
		return document.NewSection(SectionRisk, document.Paragraph("No risk factors recorded."))
	}
	return document.NewSection(SectionRisk, document.Bullets(items...))
}

func assessmentSection(a storage.RiskAssessment, title cases.Caser) document.Section {
	return document.NewSection(SectionAssessment, document.Fields(
		document.Field{Label: "Risk Score", Value: formatNumber(a.RiskScore)},
		document.Field{Label: "Prediction Result", Value: orDash(title.String(a.PredictionResult))},
		document.Field{Label: "Date", Value: a.Date.UTC().Format(displayDate)},
	))
}

func nextStepsSection() document.Section {
	return document.NewSection(SectionNextSteps,
		document.Paragraph("Based on the latest risk assessment, here are some steps you can take to improve your health:"),
		document.Bullets(nextStepsAdvice...),
		document.Paragraph("Remember to consult your healthcare provider before making any changes to your lifestyle."),
		document.Note("Disclaimer: This report is for informational purposes only and should not be considered as substitute for medical advice. "+
			"Please consult a healthcare professional for a diagnosis and treatment plan."),
	)
}

// orderedRiskKeys drops demographic keys and orders the rest.
func orderedRiskKeys(factors map[string]string) []string {
	seen := make(map[string]bool, len(factors))
	keys := make([]string, 0, len(factors))
	for _, k := range symptomOrder {
		if _, ok := factors[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	var rest []string
	for k := range factors {
		if _, demo := demographicKeys[k]; demo || seen[k] {
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// humanizeKey splits camelCase and title-cases each word:
// suddenWeightLoss -> Sudden Weight Loss.
func humanizeKey(key string, title cases.Caser) string {
	var words []string
	var cur strings.Builder
	for i, r := range key {
		if r == '_' || r == '-' {
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
			continue
		}
		if unicode.IsUpper(r) && i > 0 && cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return title.String(strings.Join(words, " "))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
