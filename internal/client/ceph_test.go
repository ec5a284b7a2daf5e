package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlingx/metal-sub001/internal/config"
	"github.com/starlingx/metal-sub001/internal/model"
)

func newCephServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
}

func TestCephClient_Endpoints(t *testing.T) {
	server := newCephServer(t, map[string]string{
		"/api/v0.1/status":        `{"status": "OK", "output": {"health": {"overall_status": "HEALTH_WARN"}}}`,
		"/api/v0.1/quorum_status": `{"status": "OK", "output": {"quorum_names": ["controller-0", "controller-1"]}}`,
		"/api/v0.1/osd_crush_tree": `{"status": "OK", "output": [
			{"id": -1, "name": "storage-tier", "type": "root", "items": [
				{"id": -2, "name": "group-0", "type": "chassis", "items": [
					{"id": -3, "name": "storage-0", "type": "host", "items": [{"id": 0, "name": "osd.0", "type": "osd"}]}
				]}
			]}
		]}`,
		"/api/v0.1/osd_tree":      `{"status": "OK", "output": {"nodes": [{"id": 0, "name": "osd.0", "type": "osd", "status": "up"}], "stray": []}}`,
		"/api/v0.1/pg_dump_stuck": `{"status": "OK", "output": [{"pgid": "1.0", "state": "stale+active", "acting": [0, 1]}]}`,
	})
	defer server.Close()

	ceph := NewCephClient(newTestREST(t), config.CephConfig{URL: server.URL + "/api/v0.1/", Timeout: time.Second})
	ctx := context.Background()

	status, err := ceph.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.Health)
	assert.Equal(t, model.CephHealthWarn, status.Health.Overall())

	quorum, err := ceph.QuorumStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"controller-0", "controller-1"}, quorum.QuorumNames)

	tree, err := ceph.OSDCrushTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "storage-0", tree[0].Items[0].Items[0].Name)

	osdTree, err := ceph.OSDTree(ctx)
	require.NoError(t, err)
	assert.Equal(t, "up", osdTree.Nodes[0].Status)

	pgs, err := ceph.PGDumpStuck(ctx)
	require.NoError(t, err)
	require.Len(t, pgs, 1)
	assert.Equal(t, []int{0, 1}, pgs[0].Acting)
}

func TestCephHealthStatus_Overall(t *testing.T) {
	assert.Equal(t, model.CephHealthOK, CephHealthStatus{OverallStatus: model.CephHealthOK}.Overall())
	assert.Equal(t, model.CephHealthErr, CephHealthStatus{Status: model.CephHealthErr}.Overall())
}
