package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/config"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/model"
)

func newTestMtce(t *testing.T, server *httptest.Server, timeout time.Duration) *MtceClient {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := testClientConfig()
	cfg.BreakerFailures = 0
	rest, err := NewRESTClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	return NewMtceClient(rest, config.MaintenanceConfig{
		Address:    u.Hostname(),
		Port:       port,
		Timeout:    timeout,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}, zap.NewNop())
}

func testHost() *model.HostMaintenance {
	return &model.HostMaintenance{UUID: "uuid-1", Hostname: "worker-0", Personality: "worker"}
}

func TestMtceClient_HostModifySucceeds(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/hosts/uuid-1", r.URL.Path)
		w.Write([]byte(`{"status": "pass"}`))
	}))
	defer server.Close()

	mtce := newTestMtce(t, server, time.Second)
	resp, err := mtce.HostModify(context.Background(), testHost(), 3)
	require.NoError(t, err)
	assert.Equal(t, "pass", resp.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestMtceClient_HostModifyRetriesEmptyResponse(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			return
		}
		w.Write([]byte(`{"status": "pass"}`))
	}))
	defer server.Close()

	mtce := newTestMtce(t, server, time.Second)
	resp, err := mtce.HostModify(context.Background(), testHost(), 3)
	require.NoError(t, err)
	assert.Equal(t, "pass", resp.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestMtceClient_HostModifyGivesUpAfterMaxRetries(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	mtce := newTestMtce(t, server, time.Second)
	_, err := mtce.HostModify(context.Background(), testHost(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoResponse)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestMtceClient_HostModifyStopsOnTimeout(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-r.Context().Done()
	}))
	defer server.Close()

	mtce := newTestMtce(t, server, 50*time.Millisecond)
	_, err := mtce.HostModify(context.Background(), testHost(), 3)
	require.Error(t, err)
	assert.True(t, apierrors.IsSignalTimeout(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestMtceClient_HostModifyStopsOnRejection(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	mtce := newTestMtce(t, server, time.Second)
	_, err := mtce.HostModify(context.Background(), testHost(), 3)
	require.Error(t, err)
	_, ok := apierrors.IsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestMtceClient_HostAddAndDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/v1/hosts/", r.URL.Path)
		case http.MethodDelete:
			assert.Equal(t, "/v1/hosts/uuid-1", r.URL.Path)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Write([]byte(`{"status": "pass"}`))
	}))
	defer server.Close()

	mtce := newTestMtce(t, server, time.Second)

	resp, err := mtce.HostAdd(context.Background(), testHost())
	require.NoError(t, err)
	assert.Equal(t, "pass", resp.Status)

	resp, err = mtce.HostDelete(context.Background(), "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, "pass", resp.Status)
}
