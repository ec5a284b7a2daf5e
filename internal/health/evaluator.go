// Package health evaluates whether the system is healthy enough for risky
// operations such as a host lock or a software upgrade. Each evaluation pulls
// fresh data from the host directory and the peer platform services and
// combines it into a verdict with a human readable report.
package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/starlingx/metal-sub001/internal/ceph"
	"github.com/starlingx/metal-sub001/internal/config"
	"github.com/starlingx/metal-sub001/internal/model"
)

// HostDirectory lists inventory hosts and the system record
type HostDirectory interface {
	ListHosts(ctx context.Context) ([]model.Host, error)
	GetSystem(ctx context.Context) (*model.SystemRecord, error)
}

// AlarmDirectory lists active alarms
type AlarmDirectory interface {
	ListAlarms(ctx context.Context, region string, includeSuppressed bool) ([]model.Alarm, error)
}

// PatchService reports patch state per host and per patch
type PatchService interface {
	QueryHosts(ctx context.Context, region string) ([]model.PatchHostRecord, error)
	Query(ctx context.Context, region string) (map[string]model.PatchRecord, error)
}

// CephProbe answers storage cluster health questions
type CephProbe interface {
	StatusOK(ctx context.Context) bool
	MonitorsStatus(ctx context.Context, hosts []model.Host) model.MonitorStatus
	HostOSDStatus(ctx context.Context, hostname string) ceph.OSDStatus
	QuorumStatus(ctx context.Context) (model.CephQuorumStatus, error)
}

// VIMProbe counts instances running on a host
type VIMProbe interface {
	HostInstances(ctx context.Context, region, uuid, hostname string) (int, error)
}

// Recorder receives evaluation observations
type Recorder interface {
	ObserveEvaluation(kind string, healthy bool, duration time.Duration)
	ObserveCheck(check string, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEvaluation(string, bool, time.Duration) {}
func (nopRecorder) ObserveCheck(string, bool) {}

// Dependencies are the collaborators consulted by the evaluator. Ceph and
// VIM may be nil when the system has no storage backend or no VIM.
type Dependencies struct {
	Hosts   HostDirectory
	Alarms  AlarmDirectory
	Patches PatchService
	Ceph    CephProbe
	VIM     VIMProbe
}

// Evaluator runs the system health checks
type Evaluator struct {
	deps     Dependencies
	config   config.HealthConfig
	logger   *zap.Logger
	recorder Recorder
	freeDisk func(path string) (uint64, error)
}

// NewEvaluator creates a health evaluator. recorder may be nil.
func NewEvaluator(deps Dependencies, cfg config.HealthConfig, logger *zap.Logger, recorder Recorder) *Evaluator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Evaluator{
		deps:     deps,
		config:   cfg,
		logger:   logger,
		recorder: recorder,
		freeDisk: availableBytes,
	}
}

// snapshot holds the collaborator data one evaluation works on
type snapshot struct {
	hosts  []model.Host
	system *model.SystemRecord

	patchHosts []model.PatchHostRecord
	patchErr   error

	alarms   []model.Alarm
	alarmErr error

	cephOK bool
}

func (s *snapshot) region() string {
	if s.system == nil {
		return ""
	}
	return s.system.RegionName
}

// GetSystemHealth evaluates the system and returns the verdict and the text
// report. force ignores alarms that are not management affecting.
func (e *Evaluator) GetSystemHealth(ctx context.Context, force bool) (bool, string, error) {
	verdict, err := e.Evaluate(ctx, force)
	if err != nil {
		return false, "", err
	}
	return verdict.Healthy, verdict.Report, nil
}

// Evaluate runs the default check pipeline. Collaborator failures fail the
// affected check only; an error is returned when the host list cannot be
// read or ctx ends.
func (e *Evaluator) Evaluate(ctx context.Context, force bool) (*Verdict, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	snap, err := e.collect(ctx)
	if err != nil {
		return nil, err
	}

	checks := e.baseChecks(snap, force)
	verdict := newVerdict(checks, force, false)
	e.observe("system", verdict, time.Since(start))
	return verdict, nil
}

// GetSystemHealthUpgrade evaluates the system for a software upgrade. On top
// of the default pipeline the configured required patches must be
// installed and a simplex system needs room for its backup.
func (e *Evaluator) GetSystemHealthUpgrade(ctx context.Context, force bool) (bool, string, error) {
	verdict, err := e.EvaluateUpgrade(ctx, force)
	if err != nil {
		return false, "", err
	}
	return verdict.Healthy, verdict.Report, nil
}

// EvaluateUpgrade is the structured form of GetSystemHealthUpgrade
func (e *Evaluator) EvaluateUpgrade(ctx context.Context, force bool) (*Verdict, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	snap, err := e.collect(ctx)
	if err != nil {
		return nil, err
	}

	checks := e.baseChecks(snap, force)

	required, _ := e.CheckRequiredPatches(ctx, snap.region(), e.config.RequiredPatches)
	checks = append(checks, required)

	if snap.system != nil && snap.system.IsSimplex() {
		checks = append(checks, e.CheckBackupSpace(e.config.BackupPath, e.config.BackupRequiredBytes))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upgrade health evaluation aborted: %w", err)
	}

	verdict := newVerdict(checks, force, true)
	e.observe("upgrade", verdict, time.Since(start))
	return verdict, nil
}

// baseChecks builds the default pipeline results in report order
func (e *Evaluator) baseChecks(snap *snapshot, force bool) []CheckResult {
	provisionedCheck, provisioned := checkProvisioned(snap.hosts)
	patchCheck, patchStatus := checkPatchCurrent(provisioned, snap.patchHosts, snap.patchErr)

	if len(patchStatus.Unknown) > 0 {
		e.logger.Info("Patching service reports hosts unknown to inventory",
			zap.Strings("hosts", patchStatus.Unknown))
	}

	checks := []CheckResult{
		provisionedCheck,
		checkUnlockedEnabled(provisioned),
		checkConfigCurrent(provisioned),
		patchCheck,
	}
	if e.cephEnabled() {
		checks = append(checks, checkCeph(snap.cephOK))
	}
	checks = append(checks, checkAlarms(snap.alarms, snap.alarmErr, force))
	return checks
}

// collect fetches the evaluation inputs. The host list and system record are
// read first since the region of the system selects the peer endpoints;
// the peer services are then queried concurrently.
func (e *Evaluator) collect(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hosts, err := e.deps.Hosts.ListHosts(gctx)
		if err != nil {
			return fmt.Errorf("failed to list hosts: %w", err)
		}
		snap.hosts = hosts
		return nil
	})
	g.Go(func() error {
		system, err := e.deps.Hosts.GetSystem(gctx)
		if err != nil {
			e.logger.Warn("Failed to get system record, using default region", zap.Error(err))
			return nil
		}
		snap.system = system
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	region := snap.region()
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		pctx, cancel := withOptionalTimeout(gctx, e.config.PatchTimeout)
		defer cancel()
		snap.patchHosts, snap.patchErr = e.deps.Patches.QueryHosts(pctx, region)
		if snap.patchErr != nil {
			e.logger.Warn("Failed to query patching service", zap.Error(snap.patchErr))
		}
		return nil
	})
	g.Go(func() error {
		actx, cancel := withOptionalTimeout(gctx, e.config.AlarmTimeout)
		defer cancel()
		snap.alarms, snap.alarmErr = e.deps.Alarms.ListAlarms(actx, region, true)
		if snap.alarmErr != nil {
			e.logger.Warn("Failed to list alarms", zap.Error(snap.alarmErr))
		}
		return nil
	})
	if e.cephEnabled() {
		g.Go(func() error {
			snap.cephOK = e.deps.Ceph.StatusOK(gctx)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("health evaluation aborted: %w", err)
	}
	return snap, nil
}

func (e *Evaluator) cephEnabled() bool {
	return e.config.CephBackend && e.deps.Ceph != nil
}

func (e *Evaluator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withOptionalTimeout(ctx, e.config.Timeout)
}

func (e *Evaluator) observe(kind string, verdict *Verdict, duration time.Duration) {
	e.recorder.ObserveEvaluation(kind, verdict.Healthy, duration)
	for _, c := range verdict.Checks {
		e.recorder.ObserveCheck(c.Name, c.OK)
	}

	e.logger.Info("System health evaluated",
		zap.String("kind", kind),
		zap.Bool("healthy", verdict.Healthy),
		zap.Bool("force", verdict.Force),
		zap.Duration("duration", duration))
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
