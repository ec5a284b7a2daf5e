package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/health"
)

// MemoryReportStore implements ReportStore in process memory
type MemoryReportStore struct {
	data   map[string]*reportItem
	mu     sync.RWMutex
	logger *zap.Logger
	stopCh chan struct{}
	once   sync.Once
}

type reportItem struct {
	verdict   *health.Verdict
	expiresAt time.Time
}

// NewMemoryReportStore creates an in-memory report store
func NewMemoryReportStore(logger *zap.Logger) *MemoryReportStore {
	s := &MemoryReportStore{
		data:   make(map[string]*reportItem),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	go s.cleanup(time.Minute)

	return s
}

// Save stores verdict as the latest of its kind. A non-positive ttl keeps it
// until replaced.
func (s *MemoryReportStore) Save(ctx context.Context, kind string, verdict *health.Verdict, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &reportItem{verdict: verdict}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	s.data[kind] = item
	return nil
}

// Last returns the latest verdict of kind
func (s *MemoryReportStore) Last(ctx context.Context, kind string) (*health.Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.data[kind]
	if !exists || item.expired(time.Now()) {
		return nil, apierrors.NotFoundError("no %s health verdict", kind)
	}
	return item.verdict, nil
}

// Ping always succeeds
func (s *MemoryReportStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine
func (s *MemoryReportStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}

func (i *reportItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// cleanup periodically removes expired entries
func (s *MemoryReportStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for kind, item := range s.data {
				if item.expired(now) {
					delete(s.data, kind)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}
