package health

import (
	"fmt"
	"sort"

	"github.com/starlingx/metal-sub001/internal/model"
)

// checkProvisioned splits hosts into provisioned and not. Only the
// provisioned hosts take part in the remaining checks.
func checkProvisioned(hosts []model.Host) (CheckResult, []model.Host) {
	provisioned := make([]model.Host, 0, len(hosts))
	unprovisioned := 0
	for _, h := range hosts {
		if h.IsProvisioned() {
			provisioned = append(provisioned, h)
		} else {
			unprovisioned++
		}
	}

	result := CheckResult{
		Name:  CheckProvisioned,
		Title: "All hosts are provisioned",
		OK:    unprovisioned == 0,
	}
	if !result.OK {
		result.Details = []string{fmt.Sprintf("%d Unprovisioned hosts", unprovisioned)}
	}
	return result, provisioned
}

func checkUnlockedEnabled(hosts []model.Host) CheckResult {
	var failed []string
	for i := range hosts {
		if !hosts[i].IsUnlockedEnabled() {
			failed = append(failed, hosts[i].Name())
		}
	}

	result := CheckResult{
		Name:  CheckUnlockedEnabled,
		Title: "All hosts are unlocked/enabled",
		OK:    len(failed) == 0,
	}
	if !result.OK {
		result.Details = []string{"Locked or disabled hosts: " + joinNames(failed)}
	}
	return result
}

func checkConfigCurrent(hosts []model.Host) CheckResult {
	var stale []string
	for i := range hosts {
		if !hosts[i].IsConfigCurrent() {
			stale = append(stale, hosts[i].Name())
		}
	}

	result := CheckResult{
		Name:  CheckConfigCurrent,
		Title: "All hosts have current configurations",
		OK:    len(stale) == 0,
	}
	if !result.OK {
		result.Details = []string{"Hosts with out of date configurations: " + joinNames(stale)}
	}
	return result
}

// PatchStatus cross-references inventory hosts with patching service records
type PatchStatus struct {
	// NotCurrent are inventory hosts the patching service reports as behind
	NotCurrent []string
	// Missing are inventory hosts the patching service has no record of
	Missing []string
	// Unknown are hosts the patching service knows that are not provisioned in
	// inventory
	Unknown []string
}

// OK reports whether every inventory host is patch current
func (p PatchStatus) OK() bool {
	return len(p.NotCurrent) == 0 && len(p.Missing) == 0
}

func comparePatchHosts(hosts []model.Host, records []model.PatchHostRecord) PatchStatus {
	inventory := make(map[string]struct{}, len(hosts))
	for i := range hosts {
		inventory[hosts[i].Name()] = struct{}{}
	}

	var status PatchStatus
	reported := make(map[string]struct{}, len(records))
	for _, r := range records {
		reported[r.Hostname] = struct{}{}
		if _, ok := inventory[r.Hostname]; !ok {
			status.Unknown = append(status.Unknown, r.Hostname)
			continue
		}
		if !r.PatchCurrent {
			status.NotCurrent = append(status.NotCurrent, r.Hostname)
		}
	}
	for name := range inventory {
		if _, ok := reported[name]; !ok {
			status.Missing = append(status.Missing, name)
		}
	}

	sort.Strings(status.NotCurrent)
	sort.Strings(status.Missing)
	sort.Strings(status.Unknown)
	return status
}

func checkPatchCurrent(hosts []model.Host, records []model.PatchHostRecord, err error) (CheckResult, PatchStatus) {
	result := CheckResult{
		Name:  CheckPatchCurrent,
		Title: "All hosts are patch current",
	}
	if err != nil {
		result.Details = []string{unavailable("Patching")}
		return result, PatchStatus{}
	}

	status := comparePatchHosts(hosts, records)
	result.OK = status.OK()
	if len(status.NotCurrent) > 0 {
		result.Details = append(result.Details, "Hosts not patch current: "+joinNames(status.NotCurrent))
	}
	if len(status.Missing) > 0 {
		result.Details = append(result.Details, "Hosts without patch data: "+joinNames(status.Missing))
	}
	if len(status.Unknown) > 0 {
		result.Details = append(result.Details, "Patch data for hosts not provisioned in inventory: "+joinNames(status.Unknown))
	}
	return result, status
}

// AlarmSummary counts active alarms by whether they block management operations
type AlarmSummary struct {
	Allowed   int
	Affecting int
}

// Total is the number of alarms counted
func (s AlarmSummary) Total() int {
	return s.Allowed + s.Affecting
}

// OK reports whether the alarms permit operations. Without force any alarm
// fails; with force only management affecting alarms do.
func (s AlarmSummary) OK(force bool) bool {
	if s.Affecting > 0 {
		return false
	}
	return force || s.Allowed == 0
}

func summarizeAlarms(alarms []model.Alarm) AlarmSummary {
	var s AlarmSummary
	for i := range alarms {
		if alarms[i].Allowed() {
			s.Allowed++
		} else {
			s.Affecting++
		}
	}
	return s
}

func checkAlarms(alarms []model.Alarm, err error, force bool) CheckResult {
	result := CheckResult{
		Name:  CheckAlarms,
		Title: "No alarms",
	}
	if err != nil {
		result.Details = []string{unavailable("Fault management")}
		return result
	}

	summary := summarizeAlarms(alarms)
	result.OK = summary.OK(force)
	if !result.OK {
		result.Details = []string{fmt.Sprintf("[%d] alarms found, [%d] of which are management affecting",
			summary.Total(), summary.Affecting)}
	}
	return result
}

func checkCeph(ok bool) CheckResult {
	return CheckResult{
		Name:  CheckCeph,
		Title: "Ceph Storage Healthy",
		OK:    ok,
	}
}
