package health

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Check names, in report order
const (
	CheckProvisioned     = "provisioned"
	CheckUnlockedEnabled = "unlocked_enabled"
	CheckConfigCurrent   = "config_current"
	CheckPatchCurrent    = "patch_current"
	CheckCeph            = "ceph"
	CheckAlarms          = "alarms"
	CheckRequiredPatches = "required_patches"
	CheckBackupSpace     = "backup_space"
	CheckMonitorQuorum   = "monitor_quorum"
	CheckInstances       = "running_instances"
	CheckOSDStatus       = "osd_status"
)

const (
	reportHeader = "System Health:"
	statusOK     = "[OK]"
	statusFail   = "[Fail]"
)

// CheckResult is the outcome of one health check
type CheckResult struct {
	Name    string   `json:"name" yaml:"name"`
	Title   string   `json:"title" yaml:"title"`
	OK      bool     `json:"ok" yaml:"ok"`
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Line renders the check as "<title>: [OK]" or "<title>: [Fail]"
func (c CheckResult) Line() string {
	if c.OK {
		return c.Title + ": " + statusOK
	}
	return c.Title + ": " + statusFail
}

// Verdict is the result of one evaluation
type Verdict struct {
	Healthy     bool          `json:"healthy" yaml:"healthy"`
	Force       bool          `json:"force" yaml:"force"`
	Upgrade     bool          `json:"upgrade" yaml:"upgrade"`
	Checks      []CheckResult `json:"checks" yaml:"checks"`
	Report      string        `json:"report" yaml:"report"`
	EvaluatedAt time.Time     `json:"evaluated_at" yaml:"evaluated_at"`
}

// Check returns the named check result, if present
func (v *Verdict) Check(name string) (CheckResult, bool) {
	for _, c := range v.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

func newVerdict(checks []CheckResult, force, upgrade bool) *Verdict {
	healthy := true
	for _, c := range checks {
		healthy = healthy && c.OK
	}
	return &Verdict{
		Healthy:     healthy,
		Force:       force,
		Upgrade:     upgrade,
		Checks:      checks,
		Report:      FormatReport(checks),
		EvaluatedAt: time.Now().UTC(),
	}
}

// FormatReport renders the checks as the text report, one status line per
// check followed by its detail lines.
func FormatReport(checks []CheckResult) string {
	var b strings.Builder
	b.WriteString(reportHeader)
	b.WriteString("\n")
	for _, c := range checks {
		b.WriteString(c.Line())
		b.WriteString("\n")
		for _, d := range c.Details {
			b.WriteString(d)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func joinNames(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func unavailable(service string) string {
	return fmt.Sprintf("%s service unavailable", service)
}
