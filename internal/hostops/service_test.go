package hostops

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/client"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/health"
	"github.com/starlingx/metal-sub001/internal/model"
)

type MockLockEvaluator struct{ mock.Mock }

func (m *MockLockEvaluator) EvaluateLock(ctx context.Context, hostname string) (*health.Verdict, error) {
	args := m.Called(ctx, hostname)
	if v := args.Get(0); v != nil {
		return v.(*health.Verdict), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockHostLookup struct{ mock.Mock }

func (m *MockHostLookup) ListHosts(ctx context.Context) ([]model.Host, error) {
	args := m.Called(ctx)
	hosts, _ := args.Get(0).([]model.Host)
	return hosts, args.Error(1)
}

func (m *MockHostLookup) GetSystem(ctx context.Context) (*model.SystemRecord, error) {
	args := m.Called(ctx)
	system, _ := args.Get(0).(*model.SystemRecord)
	return system, args.Error(1)
}

type MockServiceManager struct{ mock.Mock }

func (m *MockServiceManager) ServiceNodeAction(ctx context.Context, region, hostname, action string) (*model.ServiceNode, error) {
	args := m.Called(ctx, region, hostname, action)
	node, _ := args.Get(0).(*model.ServiceNode)
	return node, args.Error(1)
}

func (m *MockServiceManager) ServiceNodeShow(ctx context.Context, region, hostname string) (*model.ServiceNode, error) {
	args := m.Called(ctx, region, hostname)
	node, _ := args.Get(0).(*model.ServiceNode)
	return node, args.Error(1)
}

type MockMaintenance struct{ mock.Mock }

func (m *MockMaintenance) HostModify(ctx context.Context, host *model.HostMaintenance, maxRetries int) (*client.MtceResponse, error) {
	args := m.Called(ctx, host, maxRetries)
	resp, _ := args.Get(0).(*client.MtceResponse)
	return resp, args.Error(1)
}

func (m *MockMaintenance) HostDelete(ctx context.Context, uuid string) (*client.MtceResponse, error) {
	args := m.Called(ctx, uuid)
	resp, _ := args.Get(0).(*client.MtceResponse)
	return resp, args.Error(1)
}

type MockPatchCleaner struct{ mock.Mock }

func (m *MockPatchCleaner) DropHost(ctx context.Context, region, hostname string) error {
	return m.Called(ctx, region, hostname).Error(0)
}

const testRegion = "RegionOne"

type fixture struct {
	evaluator *MockLockEvaluator
	hosts     *MockHostLookup
	sm        *MockServiceManager
	mtce      *MockMaintenance
	patches   *MockPatchCleaner
	service   *Service
}

func newFixture() *fixture {
	f := &fixture{
		evaluator: new(MockLockEvaluator),
		hosts:     new(MockHostLookup),
		sm:        new(MockServiceManager),
		mtce:      new(MockMaintenance),
		patches:   new(MockPatchCleaner),
	}
	f.service = NewService(f.evaluator, f.hosts, f.sm, f.mtce, f.patches, 3, zap.NewNop())
	f.hosts.On("GetSystem", mock.Anything).Return(&model.SystemRecord{RegionName: testRegion}, nil).Maybe()
	f.hosts.On("ListHosts", mock.Anything).Return([]model.Host{{
		UUID:           "uuid-w0",
		Hostname:       model.StringPtr("worker-0"),
		Personality:    model.PersonalityWorker,
		Administrative: model.AdminUnlocked,
		Operational:    model.OperEnabled,
		Availability:   "available",
	}}, nil).Maybe()
	return f
}

func verdict(healthy bool) *health.Verdict {
	return &health.Verdict{Healthy: healthy, Report: "System Health:\n"}
}

func TestLock_Healthy(t *testing.T) {
	f := newFixture()
	f.evaluator.On("EvaluateLock", mock.Anything, "worker-0").Return(verdict(true), nil)
	f.sm.On("ServiceNodeAction", mock.Anything, testRegion, "worker-0", client.SMActionLock).
		Return(&model.ServiceNode{Hostname: "worker-0", Admin: "locked"}, nil)
	f.mtce.On("HostModify", mock.Anything, mock.MatchedBy(func(h *model.HostMaintenance) bool {
		return h.UUID == "uuid-w0" && h.Action == ActionLock && h.Personality == string(model.PersonalityWorker)
	}), 3).Return(&client.MtceResponse{Status: "pass"}, nil)

	result, err := f.service.Lock(context.Background(), "worker-0", false)

	require.NoError(t, err)
	assert.Equal(t, ActionLock, result.Action)
	assert.Equal(t, "pass", result.Mtce.Status)
	assert.Equal(t, "locked", result.Node.Admin)
	f.sm.AssertExpectations(t)
	f.mtce.AssertExpectations(t)
}

func TestLock_RejectedWhenUnhealthy(t *testing.T) {
	f := newFixture()
	f.evaluator.On("EvaluateLock", mock.Anything, "worker-0").Return(verdict(false), nil)

	result, err := f.service.Lock(context.Background(), "worker-0", false)

	require.Error(t, err)
	assert.True(t, apierrors.IsConflict(err))
	require.NotNil(t, result)
	assert.False(t, result.Verdict.Healthy)
	f.sm.AssertNotCalled(t, "ServiceNodeAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.mtce.AssertNotCalled(t, "HostModify", mock.Anything, mock.Anything, mock.Anything)
}

func TestLock_ForceOverridesVerdict(t *testing.T) {
	f := newFixture()
	f.evaluator.On("EvaluateLock", mock.Anything, "worker-0").Return(verdict(false), nil)
	f.sm.On("ServiceNodeAction", mock.Anything, testRegion, "worker-0", client.SMActionLock).
		Return(&model.ServiceNode{}, nil)
	f.mtce.On("HostModify", mock.Anything, mock.MatchedBy(func(h *model.HostMaintenance) bool {
		return h.Action == ActionForceLock
	}), 3).Return(&client.MtceResponse{Status: "pass"}, nil)

	result, err := f.service.Lock(context.Background(), "worker-0", true)

	require.NoError(t, err)
	assert.Equal(t, ActionForceLock, result.Action)
}

func TestLock_EvaluationError(t *testing.T) {
	f := newFixture()
	f.evaluator.On("EvaluateLock", mock.Anything, "ghost").Return(nil, apierrors.NotFoundError("host %s", "ghost"))

	_, err := f.service.Lock(context.Background(), "ghost", false)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestUnlock_StopsWhenSMFails(t *testing.T) {
	f := newFixture()
	f.sm.On("ServiceNodeAction", mock.Anything, testRegion, "worker-0", client.SMActionUnlock).
		Return(nil, errors.New("sm down"))

	_, err := f.service.Unlock(context.Background(), "worker-0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service manager unlock of worker-0 failed")
	f.mtce.AssertNotCalled(t, "HostModify", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnlock_UnknownHost(t *testing.T) {
	f := newFixture()

	_, err := f.service.Unlock(context.Background(), "storage-9")
	assert.True(t, apierrors.IsNotFound(err))
}

func TestServiceNode(t *testing.T) {
	f := newFixture()
	f.sm.On("ServiceNodeShow", mock.Anything, testRegion, "worker-0").
		Return(&model.ServiceNode{Hostname: "worker-0", State: "enabled"}, nil)

	node, err := f.service.ServiceNode(context.Background(), "worker-0")

	require.NoError(t, err)
	assert.Equal(t, "enabled", node.State)
}

func TestForget(t *testing.T) {
	t.Run("both steps run", func(t *testing.T) {
		f := newFixture()
		f.mtce.On("HostDelete", mock.Anything, "uuid-w0").Return(nil, errors.New("mtce down"))
		f.patches.On("DropHost", mock.Anything, testRegion, "worker-0").Return(nil)

		err := f.service.Forget(context.Background(), "uuid-w0", "worker-0")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "maintenance delete")
		f.patches.AssertExpectations(t)
	})

	t.Run("unnamed host skips patch data", func(t *testing.T) {
		f := newFixture()
		f.mtce.On("HostDelete", mock.Anything, "uuid-x").Return(&client.MtceResponse{Status: "pass"}, nil)

		require.NoError(t, f.service.Forget(context.Background(), "uuid-x", ""))
		f.patches.AssertNotCalled(t, "DropHost", mock.Anything, mock.Anything, mock.Anything)
	})
}
