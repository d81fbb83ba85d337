// Package anomaly scans recent attempt records for brute-force and
// enumeration patterns. Analysis is pure: the caller decides what to do with
// the report (usually raise an alert), and detection never blocks a request.
package anomaly

import (
	"fmt"
	"time"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Thresholds is the detection policy. Values are configuration, not constants:
// ops can tune them per deployment, but the defaults are the ones the alert
// runbook was written against.
type Thresholds struct {
	Window            time.Duration
	BurstFailures     int
	ElevatedFailures  int
	MaxUserAgents     int
	OffHoursRatio     float64
	OffHoursStartHour int
	OffHoursEndHour   int

	// Location anchors the off-hours band. Stored timestamps are UTC, so the
	// deployment timezone must be applied before reading the hour.
	Location *time.Location
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:            5 * time.Minute,
		BurstFailures:     10,
		ElevatedFailures:  5,
		MaxUserAgents:     5,
		OffHoursRatio:     0.8,
		OffHoursStartHour: 2,
		OffHoursEndHour:   5,
		Location:          time.Local,
	}
}

// Report is the outcome of one scan. Each triggered heuristic contributes a
// reason; the overall severity is the worst one seen.
type Report struct {
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
}

type Detector struct {
	t Thresholds
}

func NewDetector(t Thresholds) *Detector {
	return &Detector{t: t}
}

// Window reports how far back a scan looks, so callers can fetch exactly the
// records the heuristics will consider.
func (d *Detector) Window() time.Duration {
	return d.t.Window
}

// Analyze evaluates every heuristic independently over the supplied attempts
// (expected: recent records for a single client IP). The failure-rate window
// is anchored at the newest attempt so the scan is deterministic.
func (d *Detector) Analyze(attempts []domain.AttemptRecord) Report {
	var report Report
	if len(attempts) == 0 {
		return report
	}

	add := func(sev Severity, reason string) {
		report.Suspicious = true
		report.Reasons = append(report.Reasons, reason)
		if report.Severity != SeverityHigh {
			report.Severity = sev
		}
	}

	newest := attempts[0].Timestamp
	for _, a := range attempts[1:] {
		if a.Timestamp.After(newest) {
			newest = a.Timestamp
		}
	}
	windowStart := newest.Add(-d.t.Window)

	loc := d.t.Location
	if loc == nil {
		loc = time.Local
	}

	failures := 0
	userAgents := map[string]struct{}{}
	offHours := 0
	for _, a := range attempts {
		if !a.Success && !a.Timestamp.Before(windowStart) {
			failures++
		}
		if a.UserAgent != "" {
			userAgents[a.UserAgent] = struct{}{}
		}
		hour := a.Timestamp.In(loc).Hour()
		if hour >= d.t.OffHoursStartHour && hour < d.t.OffHoursEndHour {
			offHours++
		}
	}

	switch {
	case failures >= d.t.BurstFailures:
		add(SeverityHigh, fmt.Sprintf("burst failures: %d failed attempts within %s", failures, d.t.Window))
	case failures >= d.t.ElevatedFailures:
		add(SeverityMedium, fmt.Sprintf("elevated failures: %d failed attempts within %s", failures, d.t.Window))
	}

	if len(userAgents) > d.t.MaxUserAgents {
		add(SeverityMedium, fmt.Sprintf("credential-stuffing-like fan-out: %d distinct user agents from one IP", len(userAgents)))
	}

	if ratio := float64(offHours) / float64(len(attempts)); ratio > d.t.OffHoursRatio {
		add(SeverityMedium, fmt.Sprintf("off-hours pattern: %.0f%% of attempts between %02d:00 and %02d:00",
			ratio*100, d.t.OffHoursStartHour, d.t.OffHoursEndHour))
	}

	return report
}
