package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/control-assist/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var eventColumns = []string{
	"id", "provider", "model", "operation", "control_id", "attempt", "prompt", "response",
	"prompt_tokens", "response_tokens", "cost_usd", "latency_ms", "status", "error", "created_at",
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS generation_events`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordGeneration(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ev := event("e1", model.ProviderCloudConverse, "AC-2", model.EventSuccess, at)

	mock.ExpectExec(`INSERT INTO generation_events .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs("e1", "cloud-converse", "m-cloud-converse", "generate_implementation", "AC-2", 1,
			"prompt for AC-2", "response", 100, 25, 0.002, int64(800), "success", "", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordGeneration(context.Background(), ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordGeneration_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO generation_events`).
		WillReturnError(errors.New("connection reset"))

	err := s.RecordGeneration(context.Background(), event("e9", model.ProviderLocal, "AC-2", model.EventError, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert generation event e9")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListGenerations_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	since := at.Add(-time.Hour)

	rows := pgxmock.NewRows(eventColumns).
		AddRow("e3", "local", "llama3.1", "generate_implementation", "AC-3", 2, "p", "r", 10, 5, 0.0, int64(300), "error", "timeout", at)

	mock.ExpectQuery(`FROM generation_events WHERE 1=1 AND provider = \$1 AND status = \$2 AND created_at >= \$3 ORDER BY created_at DESC, id LIMIT \$4 OFFSET \$5`).
		WithArgs("local", "error", since, 10, 20).
		WillReturnRows(rows)

	got, err := s.ListGenerations(context.Background(), EventFilter{
		Provider: model.ProviderLocal,
		Status:   model.EventError,
		Since:    since,
		Limit:    10,
		Offset:   20,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ProviderLocal, got[0].Provider)
	assert.Equal(t, model.EventError, got[0].Status)
	assert.Equal(t, "timeout", got[0].Error)
	assert.Equal(t, 2, got[0].Attempt)
	assert.Equal(t, at, got[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListGenerations_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM generation_events WHERE 1=1 ORDER BY created_at DESC, id LIMIT \$1$`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows(eventColumns))

	got, err := s.ListGenerations(context.Background(), EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GenerationStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT provider, model, COUNT\(\*\)`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"provider", "model", "count", "errors", "avg", "sum"}).
			AddRow("cloud-chat", "gpt-4o-mini", int64(4), int64(1), 950.5, 0.012).
			AddRow("local", "llama3.1", int64(10), int64(0), 2100.0, 0.0))

	stats, err := s.GenerationStats(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, ProviderStats{
		Provider: model.ProviderCloudChat, Model: "gpt-4o-mini",
		Calls: 4, Errors: 1, AvgLatencyMs: 950.5, CostUSD: 0.012,
	}, stats[0])
	assert.Equal(t, int64(10), stats[1].Calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GenerationStats_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT provider, model`).WillReturnError(errors.New("relation does not exist"))

	_, err := s.GenerationStats(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: generation stats")
}
