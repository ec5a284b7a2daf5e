package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/config"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/model"
)

// PostgresHostStore implements HostStore on the inventory PostgreSQL database.
// It only reads.
type PostgresHostStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresHostStore creates a new PostgreSQL host store
func NewPostgresHostStore(cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresHostStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.MaxConnections, cfg.MinConnections,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresHostStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// ListHosts returns every host record
func (s *PostgresHostStore) ListHosts(ctx context.Context) ([]model.Host, error) {
	query := `
		SELECT uuid, hostname, personality, administrative, operational,
		       availability, invprovision, config_applied, config_target,
		       capabilities, ihost_action
		FROM i_host
		WHERE deleted_at IS NULL
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		var (
			host                                     model.Host
			personality, admin, oper, avail, invprov *string
			applied, target, capabilities, action    *string
		)

		if err := rows.Scan(
			&host.UUID,
			&host.Hostname,
			&personality,
			&admin,
			&oper,
			&avail,
			&invprov,
			&applied,
			&target,
			&capabilities,
			&action,
		); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}

		host.Personality = model.Personality(deref(personality))
		host.Administrative = model.AdminState(deref(admin))
		host.Operational = model.OperState(deref(oper))
		host.Availability = deref(avail)
		host.InvProvision = model.ProvisionState(deref(invprov))
		host.ConfigApplied = deref(applied)
		host.ConfigTarget = deref(target)
		host.HostAction = deref(action)
		host.Capabilities = decodeCapabilities(capabilities, s.logger)

		hosts = append(hosts, host)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hosts: %w", err)
	}

	return hosts, nil
}

// GetSystem returns the system record
func (s *PostgresHostStore) GetSystem(ctx context.Context) (*model.SystemRecord, error) {
	query := `
		SELECT name, region_name, system_type, system_mode
		FROM i_system
		ORDER BY id
		LIMIT 1
	`

	var name, region, systemType, mode *string
	err := s.pool.QueryRow(ctx, query).Scan(&name, &region, &systemType, &mode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.NotFoundError("system record")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get system: %w", err)
	}

	return &model.SystemRecord{
		Name:       deref(name),
		RegionName: deref(region),
		SystemType: deref(systemType),
		SystemMode: model.SystemMode(deref(mode)),
	}, nil
}

// Ping checks the database connection
func (s *PostgresHostStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresHostStore) Close() {
	s.pool.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// decodeCapabilities parses the JSON capabilities column. Values that are
// not strings are dropped; the health checks only use string capabilities.
func decodeCapabilities(raw *string, logger *zap.Logger) map[string]string {
	caps := make(map[string]string)
	if raw == nil || *raw == "" {
		return caps
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(*raw), &decoded); err != nil {
		logger.Warn("Failed to decode host capabilities", zap.Error(err))
		return caps
	}
	for k, v := range decoded {
		if s, ok := v.(string); ok {
			caps[k] = s
		}
	}
	return caps
}
