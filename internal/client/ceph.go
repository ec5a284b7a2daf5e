package client

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/starlingx/metal-sub001/internal/config"
	"github.com/starlingx/metal-sub001/internal/model"
)

// CephClient queries the local ceph REST API
type CephClient struct {
	rest    *RESTClient
	baseURL string
	timeout time.Duration
}

// NewCephClient creates a ceph REST API client
func NewCephClient(rest *RESTClient, cfg config.CephConfig) *CephClient {
	return &CephClient{
		rest:    rest,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		timeout: cfg.Timeout,
	}
}

// cephResponse is the envelope every ceph REST endpoint answers with
type cephResponse[T any] struct {
	Status string `json:"status"`
	Output T      `json:"output"`
}

// CephHealthStatus is the health section of the ceph status
type CephHealthStatus struct {
	OverallStatus model.CephHealth `json:"overall_status"`
	Status        model.CephHealth `json:"status"`
}

// Overall returns the cluster health, preferring overall_status and
// falling back to the newer status field.
func (h CephHealthStatus) Overall() model.CephHealth {
	if h.OverallStatus != "" {
		return h.OverallStatus
	}
	return h.Status
}

// CephStatus is the output of the status endpoint
type CephStatus struct {
	Health *CephHealthStatus `json:"health"`
}

// CephQuorum is the output of the quorum_status endpoint
type CephQuorum struct {
	QuorumNames []string `json:"quorum_names"`
}

// CrushNode is a bucket or device in the crush tree.
// Roots hold chassis, chassis hold storage hosts, and hosts hold OSDs.
type CrushNode struct {
	ID    int         `json:"id"`
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Items []CrushNode `json:"items"`
}

// OSDTreeNode is a node of the flat osd tree
type OSDTreeNode struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Status   string `json:"status,omitempty"`
	Children []int  `json:"children,omitempty"`
}

// OSDTree is the output of the osd_tree endpoint
type OSDTree struct {
	Nodes []OSDTreeNode `json:"nodes"`
	Stray []OSDTreeNode `json:"stray"`
}

// StuckPG is a placement group reported by pg_dump_stuck
type StuckPG struct {
	PGID   string `json:"pgid"`
	State  string `json:"state"`
	Up     []int  `json:"up"`
	Acting []int  `json:"acting"`
}

// Status returns the cluster status
func (c *CephClient) Status(ctx context.Context) (*CephStatus, error) {
	var resp cephResponse[CephStatus]
	if err := c.get(ctx, "/status", &resp); err != nil {
		return nil, err
	}
	return &resp.Output, nil
}

// QuorumStatus returns the monitors currently in quorum
func (c *CephClient) QuorumStatus(ctx context.Context) (*CephQuorum, error) {
	var resp cephResponse[CephQuorum]
	if err := c.get(ctx, "/quorum_status", &resp); err != nil {
		return nil, err
	}
	return &resp.Output, nil
}

// OSDCrushTree returns the crush hierarchy roots
func (c *CephClient) OSDCrushTree(ctx context.Context) ([]CrushNode, error) {
	var resp cephResponse[[]CrushNode]
	if err := c.get(ctx, "/osd_crush_tree", &resp); err != nil {
		return nil, err
	}
	return resp.Output, nil
}

// OSDTree returns the flat osd tree
func (c *CephClient) OSDTree(ctx context.Context) (*OSDTree, error) {
	var resp cephResponse[OSDTree]
	if err := c.get(ctx, "/osd_tree", &resp); err != nil {
		return nil, err
	}
	return &resp.Output, nil
}

// PGDumpStuck returns the placement groups that are stuck
func (c *CephClient) PGDumpStuck(ctx context.Context) ([]StuckPG, error) {
	var resp cephResponse[[]StuckPG]
	if err := c.get(ctx, "/pg_dump_stuck", &resp); err != nil {
		return nil, err
	}
	return resp.Output, nil
}

func (c *CephClient) get(ctx context.Context, path string, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.rest.Do(ctx, ServiceCeph, http.MethodGet, c.baseURL+path, nil, out)
}
