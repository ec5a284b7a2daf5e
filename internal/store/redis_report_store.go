package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/config"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/health"
)

const reportKeyPrefix = "inventory:health:last:"

// RedisReportStore implements ReportStore for Redis so that every replica
// serves the same last verdict.
type RedisReportStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisReportStore creates a new Redis report store
func NewRedisReportStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisReportStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisReportStore{
		client: client,
		logger: logger,
	}, nil
}

// Save stores verdict with TTL. A non-positive ttl keeps it until replaced.
func (s *RedisReportStore) Save(ctx context.Context, kind string, verdict *health.Verdict, ttl time.Duration) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, reportKeyPrefix+kind, data, ttl).Err()
}

// Last returns the latest verdict of kind
func (s *RedisReportStore) Last(ctx context.Context, kind string) (*health.Verdict, error) {
	data, err := s.client.Get(ctx, reportKeyPrefix+kind).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apierrors.NotFoundError("no %s health verdict", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verdict: %w", err)
	}

	var verdict health.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verdict: %w", err)
	}
	return &verdict, nil
}

// Ping checks the Redis connection
func (s *RedisReportStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisReportStore) Close() error {
	return s.client.Close()
}
