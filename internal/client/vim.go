package client

import (
	"context"
	"net/http"

	"github.com/starlingx/metal-sub001/internal/model"
)

// VIMClient queries the virtual infrastructure manager
type VIMClient struct {
	rest    *RESTClient
	catalog *Catalog
}

// NewVIMClient creates a VIM client
func NewVIMClient(rest *RESTClient, catalog *Catalog) *VIMClient {
	return &VIMClient{rest: rest, catalog: catalog}
}

type vimHostRequest struct {
	UUID     string `json:"uuid"`
	Hostname string `json:"hostname"`
}

// HostInstances returns the number of instances the VIM runs on a host.
// The VIM expects the host identity as a JSON body on a GET.
func (c *VIMClient) HostInstances(ctx context.Context, region, uuid, hostname string) (int, error) {
	base, err := c.catalog.Endpoint(ServiceVIM, region)
	if err != nil {
		return 0, err
	}

	var resp model.VIMHostInstances
	req := vimHostRequest{UUID: uuid, Hostname: hostname}
	if err := c.rest.Do(ctx, ServiceVIM, http.MethodGet, base+"/nfvi-plugins/v1/hosts", req, &resp); err != nil {
		return 0, err
	}
	return resp.Instances, nil
}
