package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/control-assist/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// created_at holds Unix milliseconds so range filters compare numerically.
const sqliteMigration = `
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
	cost_usd        REAL NOT NULL DEFAULT 0,
	latency_ms      INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_generation_events_created_at ON generation_events(created_at);
CREATE INDEX IF NOT EXISTS idx_generation_events_control_id ON generation_events(control_id);
CREATE INDEX IF NOT EXISTS idx_generation_events_provider ON generation_events(provider, model);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordGeneration(ctx context.Context, ev model.GenerationEvent) error {
	ev = withDefaults(ev)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_events (id, provider, model, operation, control_id, attempt, prompt, response,
			prompt_tokens, response_tokens, cost_usd, latency_ms, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Provider), ev.Model, ev.Operation, ev.ControlID, ev.Attempt, ev.Prompt, ev.Response,
		ev.PromptTokens, ev.ResponseTokens, ev.CostUSD, ev.LatencyMs, string(ev.Status), ev.Error, ev.CreatedAt.UnixMilli(),
	)
	return eris.Wrapf(err, "sqlite: insert generation event %s", ev.ID)
}

func (s *SQLiteStore) ListGenerations(ctx context.Context, filter EventFilter) ([]model.GenerationEvent, error) {
	query := `SELECT id, provider, model, operation, control_id, attempt, prompt, response,
		prompt_tokens, response_tokens, cost_usd, latency_ms, status, error, created_at
		FROM generation_events WHERE 1=1`
	var args []any

	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, string(filter.Provider))
	}
	if filter.ControlID != "" {
		query += ` AND control_id = ?`
		args = append(args, filter.ControlID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UnixMilli())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list generation events")
	}
	defer rows.Close() //nolint:errcheck

	var events []model.GenerationEvent
	for rows.Next() {
		var (
			ev        model.GenerationEvent
			provider  string
			status    string
			createdMs int64
		)
		if err := rows.Scan(&ev.ID, &provider, &ev.Model, &ev.Operation, &ev.ControlID, &ev.Attempt, &ev.Prompt, &ev.Response,
			&ev.PromptTokens, &ev.ResponseTokens, &ev.CostUSD, &ev.LatencyMs, &status, &ev.Error, &createdMs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan generation event")
		}
		ev.Provider = model.ProviderKind(provider)
		ev.Status = model.EventStatus(status)
		ev.CreatedAt = time.UnixMilli(createdMs).UTC()
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list generation events iterate")
}

func (s *SQLiteStore) GenerationStats(ctx context.Context, since time.Time) ([]ProviderStats, error) {
	var sinceMs int64
	if !since.IsZero() {
		sinceMs = since.UnixMilli()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, model, COUNT(*),
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
			AVG(latency_ms), SUM(cost_usd)
		FROM generation_events WHERE created_at >= ?
		GROUP BY provider, model ORDER BY provider, model`,
		sinceMs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: generation stats")
	}
	defer rows.Close() //nolint:errcheck

	var out []ProviderStats
	for rows.Next() {
		var (
			st       ProviderStats
			provider string
		)
		if err := rows.Scan(&provider, &st.Model, &st.Calls, &st.Errors, &st.AvgLatencyMs, &st.CostUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan generation stats")
		}
		st.Provider = model.ProviderKind(provider)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: generation stats iterate")
}

// withDefaults fills the ID and timestamp when the caller left them blank.
func withDefaults(ev model.GenerationEvent) model.GenerationEvent {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Attempt <= 0 {
		ev.Attempt = 1
	}
	return ev
}
