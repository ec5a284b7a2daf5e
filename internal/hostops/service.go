// Package hostops drives host actions that depend on the health verdict:
// locking and unlocking hosts through the service manager and maintenance,
// and cleaning peer services up after a host is removed.
package hostops

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/client"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/health"
	"github.com/starlingx/metal-sub001/internal/model"
)

// Maintenance action names sent to mtce
const (
	ActionLock      = "lock"
	ActionForceLock = "force-lock"
	ActionUnlock    = "unlock"
)

// LockEvaluator decides whether a host may be locked
type LockEvaluator interface {
	EvaluateLock(ctx context.Context, hostname string) (*health.Verdict, error)
}

// HostLookup resolves hosts and the system region
type HostLookup interface {
	ListHosts(ctx context.Context) ([]model.Host, error)
	GetSystem(ctx context.Context) (*model.SystemRecord, error)
}

// ServiceManager is the SM service-node API
type ServiceManager interface {
	ServiceNodeAction(ctx context.Context, region, hostname, action string) (*model.ServiceNode, error)
	ServiceNodeShow(ctx context.Context, region, hostname string) (*model.ServiceNode, error)
}

// Maintenance is the mtce host API
type Maintenance interface {
	HostModify(ctx context.Context, host *model.HostMaintenance, maxRetries int) (*client.MtceResponse, error)
	HostDelete(ctx context.Context, uuid string) (*client.MtceResponse, error)
}

// PatchCleaner drops per-host patch data
type PatchCleaner interface {
	DropHost(ctx context.Context, region, hostname string) error
}

// Result describes one host action
type Result struct {
	Hostname string               `json:"hostname"`
	Action   string               `json:"action"`
	Verdict  *health.Verdict      `json:"verdict,omitempty"`
	Node     *model.ServiceNode   `json:"service_node,omitempty"`
	Mtce     *client.MtceResponse `json:"maintenance,omitempty"`
}

// Service runs host actions. Actions on hosts are serialized.
type Service struct {
	evaluator  LockEvaluator
	hosts      HostLookup
	sm         ServiceManager
	mtce       Maintenance
	patches    PatchCleaner
	maxRetries int
	logger     *zap.Logger

	actionMu sync.Mutex
}

// NewService creates a host action service
func NewService(
	evaluator LockEvaluator,
	hosts HostLookup,
	sm ServiceManager,
	mtce Maintenance,
	patches PatchCleaner,
	maxRetries int,
	logger *zap.Logger,
) *Service {
	return &Service{
		evaluator:  evaluator,
		hosts:      hosts,
		sm:         sm,
		mtce:       mtce,
		patches:    patches,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Lock locks hostname. Unless force is set the lock verdict must be healthy;
// a failing verdict is returned with a conflict error.
func (s *Service) Lock(ctx context.Context, hostname string, force bool) (*Result, error) {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	verdict, err := s.evaluator.EvaluateLock(ctx, hostname)
	if err != nil {
		return nil, err
	}

	action := ActionLock
	if force {
		action = ActionForceLock
	}
	result := &Result{Hostname: hostname, Action: action, Verdict: verdict}

	if !verdict.Healthy && !force {
		s.logger.Warn("Lock rejected",
			zap.String("hostname", hostname),
			zap.String("report", verdict.Report))
		return result, apierrors.ConflictError("host %s cannot be locked", hostname)
	}

	if err := s.apply(ctx, hostname, client.SMActionLock, action, result); err != nil {
		return result, err
	}
	return result, nil
}

// Unlock unlocks hostname
func (s *Service) Unlock(ctx context.Context, hostname string) (*Result, error) {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	result := &Result{Hostname: hostname, Action: ActionUnlock}
	if err := s.apply(ctx, hostname, client.SMActionUnlock, ActionUnlock, result); err != nil {
		return result, err
	}
	return result, nil
}

// apply notifies SM first, then maintenance
func (s *Service) apply(ctx context.Context, hostname, smAction, mtceAction string, result *Result) error {
	host, region, err := s.resolve(ctx, hostname)
	if err != nil {
		return err
	}

	node, err := s.sm.ServiceNodeAction(ctx, region, hostname, smAction)
	if err != nil {
		return fmt.Errorf("service manager %s of %s failed: %w", smAction, hostname, err)
	}
	result.Node = node

	resp, err := s.mtce.HostModify(ctx, &model.HostMaintenance{
		UUID:           host.UUID,
		Hostname:       hostname,
		Personality:    string(host.Personality),
		Administrative: string(host.Administrative),
		Operational:    string(host.Operational),
		Availability:   host.Availability,
		Action:         mtceAction,
	}, s.maxRetries)
	if err != nil {
		return fmt.Errorf("maintenance %s of %s failed: %w", mtceAction, hostname, err)
	}
	result.Mtce = resp

	s.logger.Info("Host action applied",
		zap.String("hostname", hostname),
		zap.String("action", mtceAction))
	return nil
}

// ServiceNode returns the service manager view of hostname
func (s *Service) ServiceNode(ctx context.Context, hostname string) (*model.ServiceNode, error) {
	_, region, err := s.resolve(ctx, hostname)
	if err != nil {
		return nil, err
	}
	return s.sm.ServiceNodeShow(ctx, region, hostname)
}

// Forget removes a deleted host from maintenance and drops its patch data.
// Both steps run; the first error is returned.
func (s *Service) Forget(ctx context.Context, uuid, hostname string) error {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	var firstErr error
	if _, err := s.mtce.HostDelete(ctx, uuid); err != nil {
		s.logger.Warn("Maintenance host delete failed",
			zap.String("uuid", uuid),
			zap.Error(err))
		firstErr = fmt.Errorf("maintenance delete of %s failed: %w", uuid, err)
	}

	if hostname != "" {
		if err := s.patches.DropHost(ctx, s.region(ctx), hostname); err != nil {
			s.logger.Warn("Patch data drop failed",
				zap.String("hostname", hostname),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("patch data drop of %s failed: %w", hostname, err)
			}
		}
	}
	return firstErr
}

func (s *Service) resolve(ctx context.Context, hostname string) (*model.Host, string, error) {
	hosts, err := s.hosts.ListHosts(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list hosts: %w", err)
	}
	for i := range hosts {
		if hosts[i].Name() == hostname {
			return &hosts[i], s.region(ctx), nil
		}
	}
	return nil, "", apierrors.NotFoundError("host %s", hostname)
}

func (s *Service) region(ctx context.Context) string {
	system, err := s.hosts.GetSystem(ctx)
	if err != nil || system == nil {
		if err != nil {
			s.logger.Warn("System record unavailable, using default region", zap.Error(err))
		}
		return ""
	}
	return system.RegionName
}
