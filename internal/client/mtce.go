package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/config"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/model"
)

// errNoResponse marks an attempt that reached maintenance but got nothing back
var errNoResponse = errors.New("no response from maintenance")

// MtceResponse is the acknowledgement returned by the maintenance service
type MtceResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Action string `json:"action,omitempty"`
}

// MtceClient pushes host changes to the maintenance service
type MtceClient struct {
	rest       *RESTClient
	baseURL    string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewMtceClient creates a maintenance client
func NewMtceClient(rest *RESTClient, cfg config.MaintenanceConfig, logger *zap.Logger) *MtceClient {
	return &MtceClient{
		rest:       rest,
		baseURL:    fmt.Sprintf("http://%s:%d", cfg.Address, cfg.Port),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// HostAdd registers a new host with maintenance
func (c *MtceClient) HostAdd(ctx context.Context, host *model.HostMaintenance) (*MtceResponse, error) {
	var resp MtceResponse
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/v1/hosts/", host, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HostModify pushes a host update, making up to maxRetries attempts.
// A value below one uses the configured retry count. Attempts that fail to
// reach maintenance or come back empty are retried after a fixed delay; a
// timeout is returned at once.
func (c *MtceClient) HostModify(ctx context.Context, host *model.HostMaintenance, maxRetries int) (*MtceResponse, error) {
	if maxRetries < 1 {
		maxRetries = c.maxRetries
	}
	target := c.baseURL + "/v1/hosts/" + url.PathEscape(host.UUID)

	var resp MtceResponse
	operation := func() error {
		resp = MtceResponse{}
		err := c.call(ctx, http.MethodPatch, target, host, &resp)
		switch {
		case err == nil && resp.Status == "":
			return errNoResponse
		case err == nil:
			return nil
		case apierrors.IsSignalTimeout(err), ctx.Err() != nil:
			return backoff.Permanent(err)
		case apierrors.IsCommunicationError(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(maxRetries-1)),
		ctx,
	)

	err := backoff.RetryNotify(operation, policy, func(err error, delay time.Duration) {
		c.logger.Warn("Maintenance host modify failed, retrying",
			zap.String("host", host.Hostname),
			zap.Duration("delay", delay),
			zap.Error(err))
	})
	if err != nil {
		c.logger.Error("Maintenance host modify failed",
			zap.String("host", host.Hostname),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		return nil, err
	}
	return &resp, nil
}

// HostDelete removes a host from maintenance
func (c *MtceClient) HostDelete(ctx context.Context, uuid string) (*MtceResponse, error) {
	var resp MtceResponse
	target := c.baseURL + "/v1/hosts/" + url.PathEscape(uuid)
	if err := c.call(ctx, http.MethodDelete, target, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *MtceClient) call(ctx context.Context, method, target string, body, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.rest.Do(ctx, ServiceMtce, method, target, body, out)
}
