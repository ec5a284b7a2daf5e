package health

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/ceph"
	"github.com/starlingx/metal-sub001/internal/config"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/model"
)

// MockHostDirectory is a mock implementation of HostDirectory
type MockHostDirectory struct {
	mock.Mock
}

func (m *MockHostDirectory) ListHosts(ctx context.Context) ([]model.Host, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Host), args.Error(1)
}

func (m *MockHostDirectory) GetSystem(ctx context.Context) (*model.SystemRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SystemRecord), args.Error(1)
}

// MockAlarmDirectory is a mock implementation of AlarmDirectory
type MockAlarmDirectory struct {
	mock.Mock
}

func (m *MockAlarmDirectory) ListAlarms(ctx context.Context, region string, includeSuppressed bool) ([]model.Alarm, error) {
	args := m.Called(ctx, region, includeSuppressed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Alarm), args.Error(1)
}

// MockPatchService is a mock implementation of PatchService
type MockPatchService struct {
	mock.Mock
}

func (m *MockPatchService) QueryHosts(ctx context.Context, region string) ([]model.PatchHostRecord, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PatchHostRecord), args.Error(1)
}

func (m *MockPatchService) Query(ctx context.Context, region string) (map[string]model.PatchRecord, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]model.PatchRecord), args.Error(1)
}

// MockCephProbe is a mock implementation of CephProbe
type MockCephProbe struct {
	mock.Mock
}

func (m *MockCephProbe) StatusOK(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockCephProbe) MonitorsStatus(ctx context.Context, hosts []model.Host) model.MonitorStatus {
	return m.Called(ctx, hosts).Get(0).(model.MonitorStatus)
}

func (m *MockCephProbe) HostOSDStatus(ctx context.Context, hostname string) ceph.OSDStatus {
	return m.Called(ctx, hostname).Get(0).(ceph.OSDStatus)
}

func (m *MockCephProbe) QuorumStatus(ctx context.Context) (model.CephQuorumStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.CephQuorumStatus), args.Error(1)
}

// MockVIMProbe is a mock implementation of VIMProbe
type MockVIMProbe struct {
	mock.Mock
}

func (m *MockVIMProbe) HostInstances(ctx context.Context, region, uuid, hostname string) (int, error) {
	args := m.Called(ctx, region, uuid, hostname)
	return args.Int(0), args.Error(1)
}

type fakeRecorder struct {
	mu          sync.Mutex
	evaluations map[string]bool
	checks      map[string]bool
}

func (f *fakeRecorder) ObserveEvaluation(kind string, healthy bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evaluations == nil {
		f.evaluations = make(map[string]bool)
	}
	f.evaluations[kind] = healthy
}

func (f *fakeRecorder) ObserveCheck(check string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checks == nil {
		f.checks = make(map[string]bool)
	}
	f.checks[check] = ok
}

const testRegion = "RegionOne"

var errPeerDown = apierrors.NewCommunicationError("test", "http://localhost", errors.New("connection refused"))

type fixture struct {
	hosts   *MockHostDirectory
	alarms  *MockAlarmDirectory
	patches *MockPatchService
	ceph    *MockCephProbe
	vim     *MockVIMProbe
	cfg     config.HealthConfig
}

func newFixture() *fixture {
	return &fixture{
		hosts:   new(MockHostDirectory),
		alarms:  new(MockAlarmDirectory),
		patches: new(MockPatchService),
		ceph:    new(MockCephProbe),
		vim:     new(MockVIMProbe),
		cfg: config.HealthConfig{
			Timeout:       5 * time.Second,
			PatchTimeout:  time.Second,
			AlarmTimeout:  time.Second,
			OSDLockPolicy: "block",
		},
	}
}

func (f *fixture) evaluator(recorder Recorder) *Evaluator {
	return NewEvaluator(Dependencies{
		Hosts:   f.hosts,
		Alarms:  f.alarms,
		Patches: f.patches,
		Ceph:    f.ceph,
		VIM:     f.vim,
	}, f.cfg, zap.NewNop(), recorder)
}

func (f *fixture) withSystem(mode model.SystemMode) *fixture {
	f.hosts.On("GetSystem", mock.Anything).Return(&model.SystemRecord{
		Name:       "system",
		RegionName: testRegion,
		SystemMode: mode,
	}, nil)
	return f
}

func (f *fixture) withHosts(hosts ...model.Host) *fixture {
	f.hosts.On("ListHosts", mock.Anything).Return(hosts, nil)
	return f
}

func (f *fixture) withPatchHosts(records ...model.PatchHostRecord) *fixture {
	f.patches.On("QueryHosts", mock.Anything, testRegion).Return(records, nil)
	return f
}

func (f *fixture) withAlarms(alarms ...model.Alarm) *fixture {
	f.alarms.On("ListAlarms", mock.Anything, testRegion, true).Return(alarms, nil)
	return f
}

func healthyHost(name string) model.Host {
	return model.Host{
		UUID:           name + "-uuid",
		Hostname:       model.StringPtr(name),
		Personality:    model.PersonalityController,
		Administrative: model.AdminUnlocked,
		Operational:    model.OperEnabled,
		Availability:   "available",
		InvProvision:   model.Provisioned,
		ConfigApplied:  "v1",
		ConfigTarget:   "v1",
	}
}

func current(name string) model.PatchHostRecord {
	return model.PatchHostRecord{Hostname: name, PatchCurrent: true}
}

func alarm(severity model.Severity, threshold model.Severity) model.Alarm {
	return model.Alarm{
		AlarmID:       "100.101",
		Severity:      severity,
		MgmtAffecting: model.AlarmThreshold(threshold),
	}
}

func reportLines(report string) []string {
	return strings.Split(strings.TrimSuffix(report, "\n"), "\n")
}

func TestGetSystemHealth_AllHealthy(t *testing.T) {
	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0")).
		withPatchHosts(current("controller-0")).
		withAlarms()

	recorder := &fakeRecorder{}
	healthy, report, err := f.evaluator(recorder).GetSystemHealth(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, healthy)
	assert.Equal(t, []string{
		"System Health:",
		"All hosts are provisioned: [OK]",
		"All hosts are unlocked/enabled: [OK]",
		"All hosts have current configurations: [OK]",
		"All hosts are patch current: [OK]",
		"No alarms: [OK]",
	}, reportLines(report))
	assert.True(t, recorder.evaluations["system"])
	assert.Len(t, recorder.checks, 5)
}

func TestGetSystemHealth_LockedHost(t *testing.T) {
	locked := healthyHost("controller-0")
	locked.Administrative = model.AdminLocked

	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(locked).
		withPatchHosts(current("controller-0")).
		withAlarms()

	healthy, report, err := f.evaluator(nil).GetSystemHealth(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, healthy)
	assert.Equal(t, []string{
		"System Health:",
		"All hosts are provisioned: [OK]",
		"All hosts are unlocked/enabled: [Fail]",
		"Locked or disabled hosts: controller-0",
		"All hosts have current configurations: [OK]",
		"All hosts are patch current: [OK]",
		"No alarms: [OK]",
	}, reportLines(report))
}

func TestEvaluate_UnprovisionedHostsExcluded(t *testing.T) {
	provisioning := healthyHost("worker-0")
	provisioning.InvProvision = model.Provisioning
	provisioning.Administrative = model.AdminLocked

	unnamed := healthyHost("")
	unnamed.Hostname = nil

	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0"), provisioning, unnamed).
		withPatchHosts(current("controller-0")).
		withAlarms()

	verdict, err := f.evaluator(nil).Evaluate(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, verdict.Healthy)

	provisioned, ok := verdict.Check(CheckProvisioned)
	require.True(t, ok)
	assert.False(t, provisioned.OK)
	assert.Equal(t, []string{"2 Unprovisioned hosts"}, provisioned.Details)

	for _, name := range []string{CheckUnlockedEnabled, CheckConfigCurrent, CheckPatchCurrent, CheckAlarms} {
		c, ok := verdict.Check(name)
		require.True(t, ok)
		assert.True(t, c.OK, name)
	}
}

func TestEvaluate_ForceOnlyIgnoresAllowedAlarms(t *testing.T) {
	tests := []struct {
		name         string
		alarms       []model.Alarm
		healthyPlain bool
		healthyForce bool
	}{
		{"no alarms", nil, true, true},
		{"allowed only", []model.Alarm{alarm(model.SeverityMinor, model.SeverityCritical)}, false, true},
		{"affecting", []model.Alarm{alarm(model.SeverityCritical, model.SeverityWarning)}, false, false},
		{"unreported threshold", []model.Alarm{alarm(model.SeverityCritical, "")}, false, false},
		{"mixed", []model.Alarm{
			alarm(model.SeverityMinor, model.SeverityNone),
			alarm(model.SeverityMajor, model.SeverityMajor),
		}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture().
				withSystem(model.SystemModeDuplex).
				withHosts(healthyHost("controller-0")).
				withPatchHosts(current("controller-0")).
				withAlarms(tt.alarms...)
			evaluator := f.evaluator(nil)

			healthy, _, err := evaluator.GetSystemHealth(context.Background(), false)
			require.NoError(t, err)
			assert.Equal(t, tt.healthyPlain, healthy)

			healthy, _, err = evaluator.GetSystemHealth(context.Background(), true)
			require.NoError(t, err)
			assert.Equal(t, tt.healthyForce, healthy)
		})
	}
}

func TestEvaluate_AlarmCounts(t *testing.T) {
	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0")).
		withPatchHosts(current("controller-0")).
		withAlarms(
			alarm(model.SeverityMinor, model.SeverityCritical),
			alarm(model.SeverityWarning, model.SeverityNone),
			alarm(model.SeverityCritical, model.SeverityCritical),
		)

	verdict, err := f.evaluator(nil).Evaluate(context.Background(), false)
	require.NoError(t, err)

	alarms, ok := verdict.Check(CheckAlarms)
	require.True(t, ok)
	assert.False(t, alarms.OK)
	assert.Equal(t, []string{"[3] alarms found, [1] of which are management affecting"}, alarms.Details)
}

func TestEvaluate_PatchDiscrepancies(t *testing.T) {
	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0"), healthyHost("controller-1"), healthyHost("worker-0")).
		withPatchHosts(
			current("controller-0"),
			model.PatchHostRecord{Hostname: "controller-1", PatchCurrent: false},
			current("storage-9"),
		).
		withAlarms()

	verdict, err := f.evaluator(nil).Evaluate(context.Background(), false)
	require.NoError(t, err)

	patch, ok := verdict.Check(CheckPatchCurrent)
	require.True(t, ok)
	assert.False(t, patch.OK)
	assert.Equal(t, []string{
		"Hosts not patch current: controller-1",
		"Hosts without patch data: worker-0",
		"Patch data for hosts not provisioned in inventory: storage-9",
	}, patch.Details)
}

func TestComparePatchHosts_UnknownHostsDoNotFail(t *testing.T) {
	status := comparePatchHosts(
		[]model.Host{healthyHost("controller-0")},
		[]model.PatchHostRecord{current("controller-0"), current("controller-9")},
	)

	assert.True(t, status.OK())
	assert.Empty(t, status.NotCurrent)
	assert.Empty(t, status.Missing)
	assert.Equal(t, []string{"controller-9"}, status.Unknown)
}

func TestEvaluate_PatchDataForProvisioningHost(t *testing.T) {
	provisioning := healthyHost("worker-1")
	provisioning.InvProvision = model.Provisioning

	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0"), provisioning).
		withPatchHosts(current("controller-0"), current("worker-1")).
		withAlarms()

	verdict, err := f.evaluator(nil).Evaluate(context.Background(), false)
	require.NoError(t, err)

	patch, ok := verdict.Check(CheckPatchCurrent)
	require.True(t, ok)
	assert.True(t, patch.OK)
	assert.Equal(t, []string{"Patch data for hosts not provisioned in inventory: worker-1"}, patch.Details)
}

func TestEvaluate_ConfigOutOfDate(t *testing.T) {
	stale := healthyHost("controller-1")
	stale.ConfigApplied = "v1"
	stale.ConfigTarget = "v2"

	noTarget := healthyHost("controller-0")
	noTarget.ConfigTarget = ""

	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(noTarget, stale).
		withPatchHosts(current("controller-0"), current("controller-1")).
		withAlarms()

	verdict, err := f.evaluator(nil).Evaluate(context.Background(), false)
	require.NoError(t, err)

	cfg, ok := verdict.Check(CheckConfigCurrent)
	require.True(t, ok)
	assert.False(t, cfg.OK)
	assert.Equal(t, []string{"Hosts with out of date configurations: controller-1"}, cfg.Details)
}

func TestEvaluate_CollaboratorFailuresDegradeChecks(t *testing.T) {
	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0"))
	f.patches.On("QueryHosts", mock.Anything, testRegion).Return(nil, errPeerDown)
	f.alarms.On("ListAlarms", mock.Anything, testRegion, true).Return(nil, errPeerDown)

	verdict, err := f.evaluator(nil).Evaluate(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, verdict.Healthy)
	assert.Equal(t, []string{
		"System Health:",
		"All hosts are provisioned: [OK]",
		"All hosts are unlocked/enabled: [OK]",
		"All hosts have current configurations: [OK]",
		"All hosts are patch current: [Fail]",
		"Patching service unavailable",
		"No alarms: [Fail]",
		"Fault management service unavailable",
	}, reportLines(verdict.Report))
}

func TestEvaluate_SystemRecordFailureUsesDefaultRegion(t *testing.T) {
	f := newFixture().withHosts(healthyHost("controller-0"))
	f.hosts.On("GetSystem", mock.Anything).Return(nil, errors.New("no system"))
	f.patches.On("QueryHosts", mock.Anything, "").Return([]model.PatchHostRecord{current("controller-0")}, nil)
	f.alarms.On("ListAlarms", mock.Anything, "", true).Return([]model.Alarm{}, nil)

	healthy, _, err := f.evaluator(nil).GetSystemHealth(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, healthy)
}

func TestEvaluate_HostDirectoryFailure(t *testing.T) {
	f := newFixture().withSystem(model.SystemModeDuplex)
	f.hosts.On("ListHosts", mock.Anything).Return(nil, errors.New("database unavailable"))

	healthy, report, err := f.evaluator(nil).GetSystemHealth(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list hosts")
	assert.False(t, healthy)
	assert.Empty(t, report)
	f.patches.AssertNotCalled(t, "QueryHosts", mock.Anything, mock.Anything)
}

func TestEvaluate_CancelledContext(t *testing.T) {
	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0")).
		withPatchHosts(current("controller-0")).
		withAlarms()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.evaluator(nil).Evaluate(ctx, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_Idempotent(t *testing.T) {
	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-1"), healthyHost("controller-0")).
		withPatchHosts(current("controller-0")).
		withAlarms(alarm(model.SeverityMajor, model.SeverityCritical))
	evaluator := f.evaluator(nil)

	first, err := evaluator.Evaluate(context.Background(), false)
	require.NoError(t, err)
	second, err := evaluator.Evaluate(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, first.Healthy, second.Healthy)
	assert.Equal(t, first.Report, second.Report)
	assert.Equal(t, first.Checks, second.Checks)
}

func TestEvaluate_CephBackend(t *testing.T) {
	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0")).
		withPatchHosts(current("controller-0")).
		withAlarms()
	f.cfg.CephBackend = true
	f.ceph.On("StatusOK", mock.Anything).Return(false)

	verdict, err := f.evaluator(nil).Evaluate(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, verdict.Healthy)
	lines := reportLines(verdict.Report)
	require.Len(t, lines, 7)
	assert.Equal(t, "Ceph Storage Healthy: [Fail]", lines[5])
	assert.Equal(t, "No alarms: [OK]", lines[6])
}

func TestEvaluate_CephSkippedWithoutBackend(t *testing.T) {
	f := newFixture().
		withSystem(model.SystemModeDuplex).
		withHosts(healthyHost("controller-0")).
		withPatchHosts(current("controller-0")).
		withAlarms()

	verdict, err := f.evaluator(nil).Evaluate(context.Background(), false)
	require.NoError(t, err)

	_, ok := verdict.Check(CheckCeph)
	assert.False(t, ok)
	f.ceph.AssertNotCalled(t, "StatusOK", mock.Anything)
}
