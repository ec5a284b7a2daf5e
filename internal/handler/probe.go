package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeStatus represents the liveness/readiness response
type ProbeStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Probes serves the liveness and readiness endpoints
type Probes struct {
	deps    map[string]Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewProbes creates the probe handlers. Nil dependencies are skipped.
func NewProbes(deps map[string]Pinger, logger *zap.Logger) *Probes {
	return &Probes{
		deps:    deps,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// LivenessHandler handles GET /health.
func (p *Probes) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, ProbeStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	})
}

// ReadinessHandler handles GET /ready.
func (p *Probes) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	checks := make(map[string]string, len(p.deps))
	allHealthy := true

	for name, dep := range p.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			p.logger.Error("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	status := ProbeStatus{
		Status:    "ready",
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}
	code := http.StatusOK
	if !allHealthy {
		status.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	writeProbe(w, code, status)
}

func writeProbe(w http.ResponseWriter, code int, status ProbeStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
