// Package ceph derives storage-cluster health facts from the ceph REST API
// and the inventory host list.
package ceph

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/client"
	"github.com/starlingx/metal-sub001/internal/model"
)

// API is the subset of the ceph REST API the operator needs
type API interface {
	Status(ctx context.Context) (*client.CephStatus, error)
	QuorumStatus(ctx context.Context) (*client.CephQuorum, error)
	OSDCrushTree(ctx context.Context) ([]client.CrushNode, error)
	PGDumpStuck(ctx context.Context) ([]client.StuckPG, error)
}

// OSDStatus says whether taking a host's OSDs down would hurt placement groups
type OSDStatus string

const (
	OSDStatusOK      OSDStatus = "ok"
	OSDStatusBlocked OSDStatus = "blocked"
	// OSDStatusUnknown means the stuck placement groups could not be listed
	OSDStatusUnknown OSDStatus = "unknown"
)

// LockPolicy decides how an unknown OSD status is treated when locking
type LockPolicy string

const (
	LockPolicyBlock LockPolicy = "block"
	LockPolicyAllow LockPolicy = "allow"
)

// AllowsLock applies policy to the status
func (s OSDStatus) AllowsLock(policy LockPolicy) bool {
	switch s {
	case OSDStatusOK:
		return true
	case OSDStatusBlocked:
		return false
	default:
		return policy == LockPolicyAllow
	}
}

// Operator answers storage health questions
type Operator struct {
	api    API
	logger *zap.Logger
}

// NewOperator creates a ceph operator
func NewOperator(api API, logger *zap.Logger) *Operator {
	return &Operator{
		api:    api,
		logger: logger,
	}
}

// StatusOK reports whether the cluster health is HEALTH_OK. Any failure to
// obtain the status counts as unhealthy.
func (o *Operator) StatusOK(ctx context.Context) bool {
	status, err := o.api.Status(ctx)
	if err != nil {
		o.logger.Warn("Failed to get ceph status", zap.Error(err))
		return false
	}
	if status == nil || status.Health == nil {
		o.logger.Warn("Ceph status response has no health section")
		return false
	}

	overall := status.Health.Overall()
	if overall != model.CephHealthOK {
		o.logger.Info("Ceph cluster is not healthy", zap.String("health", string(overall)))
		return false
	}
	return true
}

// QuorumStatus returns the cluster health together with the monitors in quorum
func (o *Operator) QuorumStatus(ctx context.Context) (model.CephQuorumStatus, error) {
	var result model.CephQuorumStatus

	status, err := o.api.Status(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get ceph status: %w", err)
	}
	if status != nil && status.Health != nil {
		result.OverallHealth = status.Health.Overall()
	}

	quorum, err := o.api.QuorumStatus(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get ceph monitor quorum: %w", err)
	}
	result.QuorumNames = append([]string(nil), quorum.QuorumNames...)
	sort.Strings(result.QuorumNames)
	return result, nil
}

// MonitorsStatus intersects the in-service monitor hosts known to inventory
// with the ceph monitor quorum. The quorum is only consulted when inventory
// has enough monitors to form one; if it cannot be read no monitor counts
// as active.
func (o *Operator) MonitorsStatus(ctx context.Context, hosts []model.Host) model.MonitorStatus {
	result := model.MonitorStatus{
		Required:    model.MinStorMonitors,
		ActiveNames: []string{},
	}

	var inventory []string
	for i := range hosts {
		host := &hosts[i]
		if host.Personality.IsWorker() {
			continue
		}
		fn, ok := host.StorFunction()
		if !ok || fn != model.StorFunctionMonitor {
			continue
		}
		if host.IsUnlockedEnabled() && !host.IsLocking() && host.Hostname != nil {
			inventory = append(inventory, host.Name())
		}
	}

	o.logger.Debug("Active ceph monitors in inventory", zap.Strings("monitors", inventory))

	if len(inventory) < result.Required {
		return result
	}

	quorum, err := o.api.QuorumStatus(ctx)
	if err != nil {
		o.logger.Warn("Failed to get ceph monitor quorum", zap.Error(err))
		return result
	}

	members := make(map[string]struct{}, len(quorum.QuorumNames))
	for _, name := range quorum.QuorumNames {
		members[name] = struct{}{}
	}
	for _, name := range inventory {
		if _, ok := members[name]; ok {
			result.ActiveNames = append(result.ActiveNames, name)
		}
	}
	sort.Strings(result.ActiveNames)
	result.Active = len(result.ActiveNames)

	o.logger.Debug("Active ceph monitors in quorum", zap.Strings("monitors", result.ActiveNames))
	return result
}

// OSDHostLookup returns the storage host holding osdID. found is false when
// the OSD does not appear anywhere in the crush tree.
func (o *Operator) OSDHostLookup(ctx context.Context, osdID int) (string, bool, error) {
	roots, err := o.api.OSDCrushTree(ctx)
	if err != nil {
		return "", false, err
	}
	name, found := lookupOSD(roots, osdID)
	return name, found, nil
}

// lookupOSD walks root -> chassis -> storage -> osd
func lookupOSD(roots []client.CrushNode, osdID int) (string, bool) {
	for _, root := range roots {
		for _, chassis := range root.Items {
			for _, storage := range chassis.Items {
				for _, osd := range storage.Items {
					if osd.ID == osdID {
						return storage.Name, true
					}
				}
			}
		}
	}
	return "", false
}

// HostOSDStatus reports whether any stuck placement group is served by an
// OSD on hostname. OSDs that cannot be attributed to a host never block.
func (o *Operator) HostOSDStatus(ctx context.Context, hostname string) OSDStatus {
	pgs, err := o.api.PGDumpStuck(ctx)
	if err != nil {
		o.logger.Warn("Failed to list stuck placement groups",
			zap.String("host", hostname),
			zap.Error(err))
		return OSDStatusUnknown
	}
	if len(pgs) == 0 {
		return OSDStatusOK
	}

	roots, err := o.api.OSDCrushTree(ctx)
	if err != nil {
		o.logger.Warn("Failed to get ceph crush tree",
			zap.String("host", hostname),
			zap.Error(err))
		return OSDStatusUnknown
	}

	for _, pg := range pgs {
		for _, osd := range pg.Acting {
			owner, found := lookupOSD(roots, osd)
			if found && owner == hostname {
				o.logger.Info("Stuck placement group maps to host",
					zap.String("host", hostname),
					zap.String("pgid", pg.PGID),
					zap.Int("osd", osd))
				return OSDStatusBlocked
			}
		}
	}
	return OSDStatusOK
}
