// Package handler provides HTTP request handlers for the inventory health API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/ceph"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/health"
	"github.com/starlingx/metal-sub001/internal/hostops"
	"github.com/starlingx/metal-sub001/internal/middleware"
	"github.com/starlingx/metal-sub001/internal/model"
	"github.com/starlingx/metal-sub001/internal/store"
)

// Verdict kinds kept in the report store
const (
	KindSystem  = "system"
	KindUpgrade = "upgrade"
)

// HealthService evaluates system and host health
type HealthService interface {
	Evaluate(ctx context.Context, force bool) (*health.Verdict, error)
	EvaluateUpgrade(ctx context.Context, force bool) (*health.Verdict, error)
	EvaluateLock(ctx context.Context, hostname string) (*health.Verdict, error)
	CheckMonitorQuorum(ctx context.Context) (health.CheckResult, model.MonitorStatus, error)
	CephQuorum(ctx context.Context) (*model.CephQuorumStatus, error)
	HostOSDs(ctx context.Context, hostname string) (health.CheckResult, ceph.OSDStatus, error)
}

// HostActions runs host actions gated by the health verdict
type HostActions interface {
	Lock(ctx context.Context, hostname string, force bool) (*hostops.Result, error)
	Unlock(ctx context.Context, hostname string) (*hostops.Result, error)
	ServiceNode(ctx context.Context, hostname string) (*model.ServiceNode, error)
	Forget(ctx context.Context, uuid, hostname string) error
}

// MonitorsResponse is the body of GET /v1/ceph/monitors
type MonitorsResponse struct {
	Check   health.CheckResult      `json:"check"`
	Status  model.MonitorStatus     `json:"status"`
	Cluster *model.CephQuorumStatus `json:"cluster,omitempty"`
}

// OSDStatusResponse is the body of GET /v1/ceph/hosts/{hostname}/osd-status
type OSDStatusResponse struct {
	Check  health.CheckResult `json:"check"`
	Status ceph.OSDStatus     `json:"status"`
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	health       HealthService
	hosts        HostActions
	reports      store.ReportStore
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	reportTTL    time.Duration
}

// NewHandlers creates a new Handlers instance. reports may be nil, in which
// case verdicts are not kept.
func NewHandlers(
	healthService HealthService,
	hosts HostActions,
	reports store.ReportStore,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	reportTTL time.Duration,
) *Handlers {
	return &Handlers{
		health:       healthService,
		hosts:        hosts,
		reports:      reports,
		errorHandler: errorHandler,
		logger:       logger,
		reportTTL:    reportTTL,
	}
}

// SystemHealth handles GET /v1/health/system.
func (h *Handlers) SystemHealth(w http.ResponseWriter, r *http.Request) {
	h.evaluate(w, r, KindSystem, h.health.Evaluate)
}

// UpgradeHealth handles GET /v1/health/upgrade.
func (h *Handlers) UpgradeHealth(w http.ResponseWriter, r *http.Request) {
	h.evaluate(w, r, KindUpgrade, h.health.EvaluateUpgrade)
}

func (h *Handlers) evaluate(
	w http.ResponseWriter,
	r *http.Request,
	kind string,
	run func(ctx context.Context, force bool) (*health.Verdict, error),
) {
	requestID := middleware.GetRequestID(r.Context())

	force, err := boolParam(r, "force")
	if err != nil {
		h.errorHandler.WriteValidationError(w, "force must be a boolean", requestID)
		return
	}

	verdict, err := run(r.Context(), force)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if h.reports != nil {
		if err := h.reports.Save(r.Context(), kind, verdict, h.reportTTL); err != nil {
			h.logger.Warn("Failed to store verdict",
				zap.String("kind", kind),
				zap.String("request_id", requestID),
				zap.Error(err))
		}
	}

	h.writeVerdict(w, verdict)
}

// LastVerdict handles GET /v1/health/last.
func (h *Handlers) LastVerdict(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = KindSystem
	}
	if kind != KindSystem && kind != KindUpgrade {
		h.errorHandler.WriteValidationError(w, "kind must be one of: system, upgrade", requestID)
		return
	}
	if h.reports == nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("no %s verdict", kind))
		return
	}

	verdict, err := h.reports.Last(r.Context(), kind)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, verdict)
}

// LockHealth handles GET /v1/health/hosts/{hostname}/lock.
func (h *Handlers) LockHealth(w http.ResponseWriter, r *http.Request) {
	verdict, err := h.health.EvaluateLock(r.Context(), mux.Vars(r)["hostname"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeVerdict(w, verdict)
}

// CephMonitors handles GET /v1/ceph/monitors.
func (h *Handlers) CephMonitors(w http.ResponseWriter, r *http.Request) {
	check, status, err := h.health.CheckMonitorQuorum(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := MonitorsResponse{Check: check, Status: status}
	cluster, err := h.health.CephQuorum(r.Context())
	if err != nil {
		h.logger.Warn("Failed to get ceph quorum status", zap.Error(err))
	} else {
		resp.Cluster = cluster
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// HostOSDStatus handles GET /v1/ceph/hosts/{hostname}/osd-status.
func (h *Handlers) HostOSDStatus(w http.ResponseWriter, r *http.Request) {
	check, status, err := h.health.HostOSDs(r.Context(), mux.Vars(r)["hostname"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, OSDStatusResponse{Check: check, Status: status})
}

// LockHost handles POST /v1/hosts/{hostname}/lock.
func (h *Handlers) LockHost(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	force, err := boolParam(r, "force")
	if err != nil {
		h.errorHandler.WriteValidationError(w, "force must be a boolean", requestID)
		return
	}

	result, err := h.hosts.Lock(r.Context(), mux.Vars(r)["hostname"], force)
	if err != nil {
		if apierrors.IsConflict(err) && result != nil {
			h.writeJSONResponse(w, http.StatusConflict, result)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// UnlockHost handles POST /v1/hosts/{hostname}/unlock.
func (h *Handlers) UnlockHost(w http.ResponseWriter, r *http.Request) {
	result, err := h.hosts.Unlock(r.Context(), mux.Vars(r)["hostname"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// ServiceNode handles GET /v1/hosts/{hostname}/servicenode.
func (h *Handlers) ServiceNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.hosts.ServiceNode(r.Context(), mux.Vars(r)["hostname"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, node)
}

// ForgetHost handles POST /v1/hosts/{uuid}/forget?hostname=.
func (h *Handlers) ForgetHost(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	if err := h.hosts.Forget(r.Context(), uuid, r.URL.Query().Get("hostname")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeVerdict answers 200 for a healthy verdict and 409 otherwise.
func (h *Handlers) writeVerdict(w http.ResponseWriter, verdict *health.Verdict) {
	status := http.StatusOK
	if !verdict.Healthy {
		status = http.StatusConflict
	}
	h.writeJSONResponse(w, status, verdict)
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
