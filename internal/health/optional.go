package health

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/ceph"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/model"
)

const gib = 1024 * 1024 * 1024

// CheckCeph reports whether the storage cluster is HEALTH_OK. Without a
// ceph backend the check fails.
func (e *Evaluator) CheckCeph(ctx context.Context) CheckResult {
	if e.deps.Ceph == nil {
		result := checkCeph(false)
		result.Details = []string{"No ceph backend configured"}
		return result
	}
	return checkCeph(e.deps.Ceph.StatusOK(ctx))
}

// CheckRequiredPatches verifies that every patch in ids is applied or
// committed and returns the ids that are not.
func (e *Evaluator) CheckRequiredPatches(ctx context.Context, region string, ids []string) (CheckResult, []string) {
	result := CheckResult{
		Name:  CheckRequiredPatches,
		Title: "Required patches are applied",
		OK:    true,
	}
	if len(ids) == 0 {
		return result, nil
	}

	pctx, cancel := withOptionalTimeout(ctx, e.config.PatchTimeout)
	defer cancel()

	patches, err := e.deps.Patches.Query(pctx, region)
	if err != nil {
		e.logger.Warn("Failed to query patches", zap.Error(err))
		result.OK = false
		result.Details = []string{unavailable("Patching")}
		return result, append([]string(nil), ids...)
	}

	var missing []string
	for _, id := range ids {
		patch, ok := patches[id]
		if !ok || !patch.PatchState.IsInstalled() {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)

	if len(missing) > 0 {
		result.OK = false
		result.Details = []string{"Patches not applied: " + joinNames(missing)}
	}
	return result, missing
}

// CheckRunningInstances passes when the VIM reports no instances on host
func (e *Evaluator) CheckRunningInstances(ctx context.Context, region string, host *model.Host) CheckResult {
	result := CheckResult{
		Name:  CheckInstances,
		Title: fmt.Sprintf("No instances running on %s", host.Name()),
	}
	if e.deps.VIM == nil {
		result.OK = true
		return result
	}

	count, err := e.deps.VIM.HostInstances(ctx, region, host.UUID, host.Name())
	if err != nil {
		e.logger.Warn("Failed to get instance count",
			zap.String("host", host.Name()),
			zap.Error(err))
		result.Details = []string{unavailable("VIM")}
		return result
	}

	result.OK = count == 0
	if !result.OK {
		result.Details = []string{fmt.Sprintf("Number of instances on %s: %d", host.Name(), count)}
	}
	return result
}

// CheckBackupSpace passes when the filesystem holding path has at least
// required bytes available.
func (e *Evaluator) CheckBackupSpace(path string, required uint64) CheckResult {
	result := CheckResult{
		Name:  CheckBackupSpace,
		Title: "Sufficient free space for upgrade",
	}

	free, err := e.freeDisk(path)
	if err != nil {
		e.logger.Warn("Failed to stat backup filesystem",
			zap.String("path", path),
			zap.Error(err))
		result.Details = []string{fmt.Sprintf("Unable to determine free space in %s", path)}
		return result
	}

	result.OK = free >= required
	if !result.OK {
		result.Details = []string{fmt.Sprintf("Insufficient free space in %s: %.1f GiB available, %.1f GiB required",
			path, float64(free)/gib, float64(required)/gib)}
	}
	return result
}

// CheckMonitorQuorum passes when enough ceph monitors are in quorum
func (e *Evaluator) CheckMonitorQuorum(ctx context.Context) (CheckResult, model.MonitorStatus, error) {
	result := CheckResult{
		Name:  CheckMonitorQuorum,
		Title: "Ceph monitors are in quorum",
	}
	if e.deps.Ceph == nil {
		result.Details = []string{"No ceph backend configured"}
		return result, model.MonitorStatus{Required: model.MinStorMonitors, ActiveNames: []string{}}, nil
	}

	hosts, err := e.deps.Hosts.ListHosts(ctx)
	if err != nil {
		return result, model.MonitorStatus{}, fmt.Errorf("failed to list hosts: %w", err)
	}

	status := e.deps.Ceph.MonitorsStatus(ctx, hosts)
	result.OK = status.HasQuorum()
	if !result.OK {
		result.Details = []string{fmt.Sprintf("%d of %d required monitors active", status.Active, status.Required)}
	}
	return result, status, nil
}

// CephQuorum returns the overall cluster health and the monitors ceph
// counts in quorum. It returns nil without a ceph backend.
func (e *Evaluator) CephQuorum(ctx context.Context) (*model.CephQuorumStatus, error) {
	if e.deps.Ceph == nil {
		return nil, nil
	}
	status, err := e.deps.Ceph.QuorumStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// CheckHostOSDs reports whether the OSDs on hostname can go down without
// leaving a stuck placement group unserved.
func (e *Evaluator) CheckHostOSDs(ctx context.Context, hostname string) (CheckResult, ceph.OSDStatus) {
	result := CheckResult{
		Name:  CheckOSDStatus,
		Title: fmt.Sprintf("Storage allows locking %s", hostname),
	}
	if e.deps.Ceph == nil {
		result.OK = true
		return result, ceph.OSDStatusOK
	}

	status := e.deps.Ceph.HostOSDStatus(ctx, hostname)
	result.OK = status.AllowsLock(ceph.LockPolicy(e.config.OSDLockPolicy))
	switch status {
	case ceph.OSDStatusBlocked:
		result.Details = []string{fmt.Sprintf("Stuck placement groups are served by OSDs on %s", hostname)}
	case ceph.OSDStatusUnknown:
		result.Details = []string{"Unable to list stuck placement groups"}
	}
	return result, status
}

// HostOSDs runs CheckHostOSDs for a host known to inventory
func (e *Evaluator) HostOSDs(ctx context.Context, hostname string) (CheckResult, ceph.OSDStatus, error) {
	if _, err := e.findHost(ctx, hostname); err != nil {
		return CheckResult{}, ceph.OSDStatusUnknown, err
	}
	result, status := e.CheckHostOSDs(ctx, hostname)
	return result, status, nil
}

// EvaluateLock checks whether hostname can be locked: no instances may run
// on it and, on storage hosts, no stuck placement group may depend on it.
func (e *Evaluator) EvaluateLock(ctx context.Context, hostname string) (*Verdict, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	host, err := e.findHost(ctx, hostname)
	if err != nil {
		return nil, err
	}

	region := e.region(ctx)
	checks := []CheckResult{e.CheckRunningInstances(ctx, region, host)}

	if e.cephEnabled() && hasOSDs(host) {
		osd, _ := e.CheckHostOSDs(ctx, hostname)
		checks = append(checks, osd)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lock evaluation aborted: %w", err)
	}
	return newVerdict(checks, false, false), nil
}

func (e *Evaluator) findHost(ctx context.Context, hostname string) (*model.Host, error) {
	hosts, err := e.deps.Hosts.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	for i := range hosts {
		if hosts[i].Name() == hostname {
			return &hosts[i], nil
		}
	}
	return nil, apierrors.NotFoundError("host %s", hostname)
}

func (e *Evaluator) region(ctx context.Context) string {
	system, err := e.deps.Hosts.GetSystem(ctx)
	if err != nil {
		e.logger.Warn("Failed to get system record, using default region", zap.Error(err))
		return ""
	}
	if system == nil {
		return ""
	}
	return system.RegionName
}

func hasOSDs(host *model.Host) bool {
	if host.Personality == model.PersonalityStorage {
		return true
	}
	fn, ok := host.StorFunction()
	return ok && fn == model.StorFunctionOSD
}
