package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewatch-systems/gatewatch/internal/models"
)

// PostgresStore is the durable event archive, used when retention must
// survive restarts. Schema is managed by golang-migrate (see migrations/).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed event store.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Insert stores an event row.
func (s *PostgresStore) Insert(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (
			id, timestamp, event_type, src_ip, src_port, dest_ip, dest_port,
			protocol, signature, severity, category, action,
			country, city, latitude, longitude, raw_payload, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := s.pool.Exec(ctx, query,
		event.ID, event.Timestamp, event.EventType,
		event.SrcIP, event.SrcPort, event.DestIP, event.DestPort,
		event.Protocol, event.Signature, event.Severity, event.Category, event.Action,
		event.Country, event.City, event.Latitude, event.Longitude,
		event.RawPayload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Search returns one page of matching events, newest first.
func (s *PostgresStore) Search(ctx context.Context, filter *models.EventFilter) ([]*models.Event, int, error) {
	page, limit := normalizePage(filter)

	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if filter.Type != "" {
		whereClause += fmt.Sprintf(" AND event_type = $%d", argPos)
		args = append(args, string(filter.Type))
		argPos++
	}
	if filter.Search != "" {
		whereClause += fmt.Sprintf(
			" AND (src_ip LIKE $%d OR dest_ip LIKE $%d OR signature LIKE $%d)",
			argPos, argPos, argPos,
		)
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", whereClause)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT
			id, timestamp, event_type, src_ip, src_port, dest_ip, dest_port,
			protocol, signature, severity, category, action,
			country, city, latitude, longitude, raw_payload, created_at
		FROM events
		%s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		ev := &models.Event{}
		if err := rows.Scan(
			&ev.ID, &ev.Timestamp, &ev.EventType,
			&ev.SrcIP, &ev.SrcPort, &ev.DestIP, &ev.DestPort,
			&ev.Protocol, &ev.Signature, &ev.Severity, &ev.Category, &ev.Action,
			&ev.Country, &ev.City, &ev.Latitude, &ev.Longitude,
			&ev.RawPayload, &ev.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read events: %w", err)
	}

	return events, total, nil
}

// LastID returns the highest stored event ID, or 0 for an empty archive.
func (s *PostgresStore) LastID(ctx context.Context) (uint64, error) {
	var id uint64
	err := s.pool.QueryRow(ctx, "SELECT COALESCE(MAX(id), 0) FROM events").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read last event id: %w", err)
	}
	return id, nil
}

// Prune deletes events older than the cutoff.
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM events WHERE timestamp < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
