package client

import (
	"fmt"
	"strings"

	apierrors "github.com/starlingx/metal-sub001/internal/errors"
)

// Service names as registered in the service catalog
const (
	ServicePatching = "patching"
	ServiceVIM      = "vim"
	ServiceSM       = "sm"
	ServiceFM       = "fm"
	ServiceCeph     = "ceph"
	ServiceMtce     = "mtce"
)

// Catalog resolves service endpoints per region.
// Region and service names are matched case-insensitively.
type Catalog struct {
	defaultRegion string
	endpoints     map[string]map[string]string
}

// NewCatalog creates a catalog from region -> service -> URL entries
func NewCatalog(defaultRegion string, endpoints map[string]map[string]string) *Catalog {
	c := &Catalog{
		defaultRegion: strings.ToLower(defaultRegion),
		endpoints:     make(map[string]map[string]string, len(endpoints)),
	}
	for region, services := range endpoints {
		key := strings.ToLower(region)
		if c.endpoints[key] == nil {
			c.endpoints[key] = make(map[string]string, len(services))
		}
		for service, url := range services {
			c.endpoints[key][strings.ToLower(service)] = strings.TrimRight(url, "/")
		}
	}
	return c
}

// Endpoint returns the base URL of service in region. An empty region
// falls back to the default region.
func (c *Catalog) Endpoint(service, region string) (string, error) {
	if region == "" {
		region = c.defaultRegion
	}
	services, ok := c.endpoints[strings.ToLower(region)]
	if !ok {
		return "", fmt.Errorf("region %q: %w", region, apierrors.ErrNoEndpoint)
	}
	url, ok := services[strings.ToLower(service)]
	if !ok || url == "" {
		return "", fmt.Errorf("service %q in region %q: %w", service, region, apierrors.ErrNoEndpoint)
	}
	return url, nil
}
