// Package client implements the REST clients used to reach the platform
// services consulted by the health checks: patching, VIM, service manager,
// fault management, ceph and maintenance.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/starlingx/metal-sub001/internal/config"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
)

const (
	maxResponseBytes = 8 << 20
	maxFaultLength   = 256
)

// Recorder receives per-call observations from the REST client
type Recorder interface {
	RecordCall(service, outcome string, duration time.Duration)
	SetBreakerState(service, state string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCall(string, string, time.Duration) {}
func (nopRecorder) SetBreakerState(string, string) {}

// RESTClient issues JSON requests to peer services. Every service gets its
// own circuit breaker so one dead peer does not slow down calls to the others.
type RESTClient struct {
	httpClient *http.Client
	config     config.ClientConfig
	logger     *zap.Logger
	recorder   Recorder

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRESTClient creates a REST client. recorder may be nil.
func NewRESTClient(cfg config.ClientConfig, logger *zap.Logger, recorder Recorder) (*RESTClient, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to configure HTTP/2 transport: %w", err)
		}
	}

	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &RESTClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config:   cfg,
		logger:   logger,
		recorder: recorder,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

// Do sends a request to url on behalf of service. body, when not nil, is
// encoded as JSON; out, when not nil, receives the decoded response.
func (c *RESTClient) Do(ctx context.Context, service, method, url string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", service, err)
		}
	}

	start := time.Now()
	_, err := c.breaker(service).Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, service, method, url, payload, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = apierrors.NewCommunicationError(service, url, err)
	}
	c.recorder.RecordCall(service, outcome(err), time.Since(start))

	if err != nil {
		c.logger.Debug("Peer request failed",
			zap.String("service", service),
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *RESTClient) roundTrip(ctx context.Context, service, method, url string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", service, err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if token := AuthToken(ctx); token != "" {
		req.Header.Set(AuthTokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierrors.NewCommunicationError(service, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apierrors.NewCommunicationError(service, url, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return apierrors.NewHTTPError(service, method, url, resp.StatusCode, parseFault(data))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", service, err)
	}
	return nil
}

func (c *RESTClient) breaker(service string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[service]; ok {
		return cb
	}

	failures := c.config.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Timeout:     c.config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("Circuit breaker state changed",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			c.recorder.SetBreakerState(name, to.String())
		},
		IsSuccessful: countsAsSuccess,
	})
	c.breakers[service] = cb
	return cb
}

// countsAsSuccess keeps client errors and decode failures from tripping
// the breaker; only unreachable peers and 5xx answers count.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if apierrors.IsCommunicationError(err) {
		return false
	}
	if httpErr, ok := apierrors.IsHTTPError(err); ok {
		return httpErr.Status < http.StatusInternalServerError
	}
	return true
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case apierrors.IsSignalTimeout(err):
		return "timeout"
	case apierrors.IsCommunicationError(err):
		return "unreachable"
	}
	if _, ok := apierrors.IsHTTPError(err); ok {
		return "http_error"
	}
	return "error"
}

// parseFault extracts the fault message from an error body. Platform
// services answer either with {"faultstring": ...}, with an
// "error_message" holding another JSON document, or with plain text.
func parseFault(data []byte) string {
	var body struct {
		FaultString  string `json:"faultstring"`
		ErrorMessage string `json:"error_message"`
		Error        string `json:"error"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.FaultString != "":
			return truncate(body.FaultString)
		case body.ErrorMessage != "":
			if nested := parseFault([]byte(body.ErrorMessage)); nested != "" {
				return nested
			}
			return truncate(body.ErrorMessage)
		case body.Error != "":
			return truncate(body.Error)
		case body.Message != "":
			return truncate(body.Message)
		}
	}
	return truncate(strings.TrimSpace(string(data)))
}

// truncate caps s at maxFaultLength bytes without splitting a rune
func truncate(s string) string {
	if len(s) <= maxFaultLength {
		return s
	}
	cut := maxFaultLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
