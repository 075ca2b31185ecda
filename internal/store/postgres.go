package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/control-assist/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS generation_events (
	id              TEXT PRIMARY KEY,
	provider        TEXT NOT NULL,
	model           TEXT NOT NULL DEFAULT '',
	operation       TEXT NOT NULL,
	control_id      TEXT NOT NULL DEFAULT '',
	attempt         INTEGER NOT NULL DEFAULT 1,
	prompt          TEXT NOT NULL DEFAULT '',
	response        TEXT NOT NULL DEFAULT '',
	prompt_tokens   INTEGER NOT NULL DEFAULT 0,
	response_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd        DOUBLE PRECISION NOT NULL DEFAULT 0,
	latency_ms      BIGINT NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_generation_events_created_at ON generation_events(created_at);
CREATE INDEX IF NOT EXISTS idx_generation_events_control_id ON generation_events(control_id);
CREATE INDEX IF NOT EXISTS idx_generation_events_provider ON generation_events(provider, model);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordGeneration(ctx context.Context, ev model.GenerationEvent) error {
	ev = withDefaults(ev)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO generation_events (id, provider, model, operation, control_id, attempt, prompt, response,
			prompt_tokens, response_tokens, cost_usd, latency_ms, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Provider), ev.Model, ev.Operation, ev.ControlID, ev.Attempt, ev.Prompt, ev.Response,
		ev.PromptTokens, ev.ResponseTokens, ev.CostUSD, ev.LatencyMs, string(ev.Status), ev.Error, ev.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert generation event %s", ev.ID)
}

func (s *PostgresStore) ListGenerations(ctx context.Context, filter EventFilter) ([]model.GenerationEvent, error) {
	query := `SELECT id, provider, model, operation, control_id, attempt, prompt, response,
		prompt_tokens, response_tokens, cost_usd, latency_ms, status, error, created_at
		FROM generation_events WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Provider != "" {
		query += ` AND provider = ` + arg(string(filter.Provider))
	}
	if filter.ControlID != "" {
		query += ` AND control_id = ` + arg(filter.ControlID)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ` + arg(filter.Since)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ` + arg(filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list generation events")
	}
	defer rows.Close()

	var events []model.GenerationEvent
	for rows.Next() {
		var (
			ev       model.GenerationEvent
			provider string
			status   string
		)
		if err := rows.Scan(&ev.ID, &provider, &ev.Model, &ev.Operation, &ev.ControlID, &ev.Attempt, &ev.Prompt, &ev.Response,
			&ev.PromptTokens, &ev.ResponseTokens, &ev.CostUSD, &ev.LatencyMs, &status, &ev.Error, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan generation event")
		}
		ev.Provider = model.ProviderKind(provider)
		ev.Status = model.EventStatus(status)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list generation events iterate")
}

func (s *PostgresStore) GenerationStats(ctx context.Context, since time.Time) ([]ProviderStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, model, COUNT(*),
			COUNT(*) FILTER (WHERE status = 'error'),
			COALESCE(AVG(latency_ms), 0)::float8, COALESCE(SUM(cost_usd), 0)::float8
		FROM generation_events WHERE created_at >= $1
		GROUP BY provider, model ORDER BY provider, model`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: generation stats")
	}
	defer rows.Close()

	var out []ProviderStats
	for rows.Next() {
		var (
			st       ProviderStats
			provider string
		)
		if err := rows.Scan(&provider, &st.Model, &st.Calls, &st.Errors, &st.AvgLatencyMs, &st.CostUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan generation stats")
		}
		st.Provider = model.ProviderKind(provider)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: generation stats iterate")
}
