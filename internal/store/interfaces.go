// Package store provides the inventory host directory and the store that
// keeps the most recent health verdicts.
package store

import (
	"context"
	"time"

	"github.com/starlingx/metal-sub001/internal/health"
	"github.com/starlingx/metal-sub001/internal/model"
)

// HostStore reads host and system records from the inventory database
type HostStore interface {
	ListHosts(ctx context.Context) ([]model.Host, error)
	GetSystem(ctx context.Context) (*model.SystemRecord, error)

	// Health check
	Ping(ctx context.Context) error
	Close()
}

// ReportStore keeps the last verdict per evaluation kind
type ReportStore interface {
	Save(ctx context.Context, kind string, verdict *health.Verdict, ttl time.Duration) error
	Last(ctx context.Context, kind string) (*health.Verdict, error)
	Ping(ctx context.Context) error
	Close() error
}
