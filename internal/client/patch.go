package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/starlingx/metal-sub001/internal/model"
)

// PatchClient talks to the patching service
type PatchClient struct {
	rest    *RESTClient
	catalog *Catalog
}

// NewPatchClient creates a patching service client
func NewPatchClient(rest *RESTClient, catalog *Catalog) *PatchClient {
	return &PatchClient{rest: rest, catalog: catalog}
}

type queryHostsResponse struct {
	Data []model.PatchHostRecord `json:"data"`
}

type queryResponse struct {
	PD map[string]model.PatchRecord `json:"pd"`
}

// QueryHosts returns the per-host patch state known to the patching service
func (c *PatchClient) QueryHosts(ctx context.Context, region string) ([]model.PatchHostRecord, error) {
	base, err := c.catalog.Endpoint(ServicePatching, region)
	if err != nil {
		return nil, err
	}

	var resp queryHostsResponse
	if err := c.rest.Do(ctx, ServicePatching, http.MethodGet, base+"/v1/query_hosts/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Query returns every patch known to the patching service keyed by patch id
func (c *PatchClient) Query(ctx context.Context, region string) (map[string]model.PatchRecord, error) {
	base, err := c.catalog.Endpoint(ServicePatching, region)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := c.rest.Do(ctx, ServicePatching, http.MethodGet, base+"/v1/query/", nil, &resp); err != nil {
		return nil, err
	}

	patches := make(map[string]model.PatchRecord, len(resp.PD))
	for id, record := range resp.PD {
		record.ID = id
		patches[id] = record
	}
	return patches, nil
}

// DropHost removes a deleted host from the patching service's records
func (c *PatchClient) DropHost(ctx context.Context, region, hostname string) error {
	base, err := c.catalog.Endpoint(ServicePatching, region)
	if err != nil {
		return err
	}
	target := base + "/v1/drop_host/" + url.PathEscape(hostname)
	return c.rest.Do(ctx, ServicePatching, http.MethodPost, target, nil, nil)
}
