package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is an alarm severity as reported by fault management
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// rank orders severities; "none" ranks above critical so that a threshold of
// none never blocks.
func (s Severity) rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityMinor:
		return 2
	case SeverityMajor:
		return 3
	case SeverityCritical:
		return 4
	case SeverityNone:
		return 5
	default:
		return 0
	}
}

// AlarmThreshold is the lowest severity at which an alarm affects an operation.
// Older fault management releases report a boolean instead; true decodes to
// SeverityWarning (every alarm affects) and false to SeverityNone. A missing,
// null or empty threshold is treated as SeverityWarning.
type AlarmThreshold Severity

// UnmarshalJSON accepts a severity string, a boolean, or a boolean-like string
func (t *AlarmThreshold) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*t = AlarmThreshold(SeverityWarning)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*t = thresholdFromBool(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("alarm threshold must be a string or boolean: %w", err)
	}
	*t = ParseAlarmThreshold(s)
	return nil
}

// ParseAlarmThreshold normalises the string forms of a threshold
func ParseAlarmThreshold(s string) AlarmThreshold {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return thresholdFromBool(true)
	case "false":
		return thresholdFromBool(false)
	case "":
		return AlarmThreshold(SeverityWarning)
	default:
		return AlarmThreshold(strings.ToLower(strings.TrimSpace(s)))
	}
}

func thresholdFromBool(affecting bool) AlarmThreshold {
	if affecting {
		return AlarmThreshold(SeverityWarning)
	}
	return AlarmThreshold(SeverityNone)
}

// Alarm is an active fault as listed by fault management
type Alarm struct {
	UUID             string         `json:"uuid"`
	AlarmID          string         `json:"alarm_id"`
	Severity         Severity       `json:"severity"`
	EntityInstanceID string         `json:"entity_instance_id"`
	ReasonText       string         `json:"reason_text"`
	Suppression      string         `json:"suppression_status,omitempty"`
	MgmtAffecting    AlarmThreshold `json:"mgmt_affecting"`
	DegradeAffecting AlarmThreshold `json:"degrade_affecting"`
}

// AlarmAllowed reports whether an alarm of the given severity stays below the
// management-affecting threshold and therefore does not block operations.
func AlarmAllowed(severity Severity, threshold AlarmThreshold) bool {
	if threshold == "" {
		threshold = AlarmThreshold(SeverityWarning)
	}
	return Severity(threshold).rank() > severity.rank()
}

// Allowed applies AlarmAllowed to the alarm's own threshold
func (a *Alarm) Allowed() bool {
	return AlarmAllowed(a.Severity, a.MgmtAffecting)
}
