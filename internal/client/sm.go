package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/starlingx/metal-sub001/internal/model"
)

// Service manager actions
const (
	SMActionLock     = "lock"
	SMActionUnlock   = "unlock"
	SMActionSwact    = "swact"
	SMActionSwactPre = "swact-pre-check"
)

const smOrigin = "inventory"

// SMClient talks to the service manager REST API
type SMClient struct {
	rest    *RESTClient
	catalog *Catalog
}

// NewSMClient creates a service manager client
func NewSMClient(rest *RESTClient, catalog *Catalog) *SMClient {
	return &SMClient{rest: rest, catalog: catalog}
}

// ServiceNodeAction requests action on a service node. The service manager
// fills in the real states, so they are sent as unknown.
func (c *SMClient) ServiceNodeAction(ctx context.Context, region, hostname, action string) (*model.ServiceNode, error) {
	target, err := c.nodeURL(region, hostname)
	if err != nil {
		return nil, err
	}

	req := model.ServiceNodeRequest{
		Origin: smOrigin,
		Action: action,
		Admin:  "unknown",
		Oper:   "unknown",
		Avail:  "",
	}

	var node model.ServiceNode
	if err := c.rest.Do(ctx, ServiceSM, http.MethodPatch, target, req, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// ServiceNodeShow returns the service manager view of a host
func (c *SMClient) ServiceNodeShow(ctx context.Context, region, hostname string) (*model.ServiceNode, error) {
	target, err := c.nodeURL(region, hostname)
	if err != nil {
		return nil, err
	}

	var node model.ServiceNode
	if err := c.rest.Do(ctx, ServiceSM, http.MethodGet, target, nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func (c *SMClient) nodeURL(region, hostname string) (string, error) {
	base, err := c.catalog.Endpoint(ServiceSM, region)
	if err != nil {
		return "", err
	}
	return base + "/v1/servicenode/" + url.PathEscape(hostname), nil
}
