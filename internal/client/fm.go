package client

import (
	"context"
	"net/http"

	"github.com/starlingx/metal-sub001/internal/model"
)

// FMClient lists alarms from fault management
type FMClient struct {
	rest    *RESTClient
	catalog *Catalog
}

// NewFMClient creates a fault management client
func NewFMClient(rest *RESTClient, catalog *Catalog) *FMClient {
	return &FMClient{rest: rest, catalog: catalog}
}

type alarmListResponse struct {
	Alarms []model.Alarm `json:"alarms"`
}

// ListAlarms returns the active alarms, suppressed ones included on request
func (c *FMClient) ListAlarms(ctx context.Context, region string, includeSuppressed bool) ([]model.Alarm, error) {
	base, err := c.catalog.Endpoint(ServiceFM, region)
	if err != nil {
		return nil, err
	}

	target := base + "/v1/alarms"
	if includeSuppressed {
		target += "?include_suppress=True"
	}

	var resp alarmListResponse
	if err := c.rest.Do(ctx, ServiceFM, http.MethodGet, target, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Alarms, nil
}
