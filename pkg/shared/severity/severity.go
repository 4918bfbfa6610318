// Package severity provides the severity and confidence scales attached to
// controls and alerts emitted by scanners.
package severity

import "strings"

// Level represents a severity level for a security finding.
type Level string

const (
	// Critical - Immediate action required. Actively exploited or trivially exploitable.
	Critical Level = "critical"

	// High - Serious weakness that should be addressed urgently.
	High Level = "high"

	// Medium - Moderate risk, should be addressed in the normal cycle.
	Medium Level = "medium"

	// Low - Minor issue, address when convenient.
	Low Level = "low"

	// Info - Informational finding, no direct security impact.
	Info Level = "info"

	// Unknown - Severity could not be determined.
	Unknown Level = "unknown"
)

// AllLevels returns all severity levels in order of priority (highest first).
func AllLevels() []Level {
	return []Level{Critical, High, Medium, Low, Info, Unknown}
}

// String returns the string representation of the severity level.
func (l Level) String() string {
	return string(l)
}

// Priority returns the numeric priority of the severity level.
// Higher numbers = higher priority.
func (l Level) Priority() int {
	switch l {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// IsHigherThan returns true if this severity is higher than the other.
func (l Level) IsHigherThan(other Level) bool {
	return l.Priority() > other.Priority()
}

// FromString normalizes severity strings from external tools to a Level.
func FromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL", "CRIT":
		return Critical
	case "HIGH", "ERROR":
		return High
	case "MEDIUM", "MODERATE", "WARNING", "WARN":
		return Medium
	case "LOW", "NOTE":
		return Low
	case "INFO", "INFORMATIONAL":
		return Info
	default:
		return Unknown
	}
}

// Confidence expresses how certain a scanner is about a finding.
type Confidence string

const (
	// Certain - the condition was directly observed in the data.
	Certain Confidence = "certain"

	// Probable - strong heuristic match.
	Probable Confidence = "probable"

	// Possible - weak heuristic match, needs manual review.
	Possible Confidence = "possible"
)

// String returns the string representation of the confidence.
func (c Confidence) String() string {
	return string(c)
}
