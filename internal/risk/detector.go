// Package risk detects project risks by diffing two consecutive structured
// states. Detection is pure and deterministic: same pair in, same alerts out.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/p-blackswan/pulsetrack/internal/state"
)

// AlertType identifies the rule that fired.
type AlertType string

const (
	AlertBlockerSurge     AlertType = "blocker_surge"
	AlertStatusRegression AlertType = "status_regression"
	AlertStalledProgress  AlertType = "stalled_progress"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// MaxAlertsPerProject caps the alert history; oldest entries are evicted first.
const MaxAlertsPerProject = 10

// Alert is a single typed risk warning.
type Alert struct {
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Thresholds for the blocker surge rule.
const (
	surgeFloor        = 3
	surgeHighWatermark = 5
)

// defaultRegressionKeywords trigger the status regression rule when they
// appear anywhere in the status summary. Matching is substring-based and
// case-insensitive; word boundaries are deliberately not required.
var defaultRegressionKeywords = []string{
	"struggling", "stuck", "frustrated", "behind",
	"delayed", "problem", "issue", "concern",
}

// Detector evaluates risk rules against consecutive states.
type Detector struct {
	keywords []string
}

// NewDetector creates a detector with the default regression keyword set.
func NewDetector() *Detector {
	return &Detector{keywords: defaultRegressionKeywords}
}

// NewDetectorWithKeywords creates a detector with an overridden regression
// keyword set. Empty input falls back to the defaults.
func NewDetectorWithKeywords(keywords []string) *Detector {
	if len(keywords) == 0 {
		return NewDetector()
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &Detector{keywords: lowered}
}

// Detect compares the previous and current state and returns zero or more
// alerts in fixed rule order: blocker surge, status regression, stalled
// progress. A nil previous state never produces alerts — the first update has
// no baseline to diff against.
func (d *Detector) Detect(previous, current *state.StructuredState, now time.Time) []Alert {
	if previous == nil || current == nil {
		return nil
	}
	prev := previous.Normalized()
	curr := current.Normalized()

	var alerts []Alert

	if a := d.blockerSurge(prev, curr, now); a != nil {
		alerts = append(alerts, *a)
	}
	if a := d.statusRegression(curr, now); a != nil {
		alerts = append(alerts, *a)
	}
	if a := d.stalledProgress(prev, curr, now); a != nil {
		alerts = append(alerts, *a)
	}
	return alerts
}

func (d *Detector) blockerSurge(prev, curr *state.StructuredState, now time.Time) *Alert {
	prevCount := len(prev.Blockers)
	currCount := len(curr.Blockers)
	if currCount <= prevCount || currCount < surgeFloor {
		return nil
	}

	severity := SeverityMedium
	if currCount >= surgeHighWatermark {
		severity = SeverityHigh
	}
	return &Alert{
		Type:     AlertBlockerSurge,
		Severity: severity,
		Message: fmt.Sprintf("Blockers jumped from %d to %d — this project needs attention",
			prevCount, currCount),
		Timestamp: now,
	}
}

func (d *Detector) statusRegression(curr *state.StructuredState, now time.Time) *Alert {
	summary := strings.ToLower(curr.StatusSummary)
	for _, kw := range d.keywords {
		if strings.Contains(summary, kw) {
			return &Alert{
				Type:      AlertStatusRegression,
				Severity:  SeverityMedium,
				Message:   fmt.Sprintf("Status summary mentions %q — progress may be regressing", kw),
				Timestamp: now,
			}
		}
	}
	return nil
}

func (d *Detector) stalledProgress(prev, curr *state.StructuredState, now time.Time) *Alert {
	if len(prev.InProgress) == 0 {
		return nil
	}
	if len(curr.InProgress) != len(prev.InProgress) || len(curr.Completed) != len(prev.Completed) {
		return nil
	}
	return &Alert{
		Type:      AlertStalledProgress,
		Severity:  SeverityLow,
		Message:   fmt.Sprintf("%d item(s) in flight with no movement since the last update", len(curr.InProgress)),
		Timestamp: now,
	}
}

// Append adds new alerts to an existing list and truncates to the most
// recent MaxAlertsPerProject entries, oldest evicted first.
func Append(existing, fresh []Alert) []Alert {
	merged := append(append([]Alert{}, existing...), fresh...)
	if len(merged) > MaxAlertsPerProject {
		merged = merged[len(merged)-MaxAlertsPerProject:]
	}
	return merged
}
