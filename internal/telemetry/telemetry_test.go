package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/control-assist/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}

func testEvent(id string, status model.EventStatus) model.GenerationEvent {
	return model.GenerationEvent{
		ID:             id,
		Provider:       model.ProviderCloudChat,
		Model:          "gpt-4o-mini",
		Operation:      "generate_implementation",
		ControlID:      "AC-2",
		Attempt:        1,
		Prompt:         "prompt",
		Response:       "response",
		PromptTokens:   100,
		ResponseTokens: 20,
		CostUSD:        0.001,
		LatencyMs:      1500,
		Status:         status,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// recordingSink collects events and is safe for concurrent use.
type recordingSink struct {
	mu     sync.Mutex
	events []model.GenerationEvent
	err    error
}

func (r *recordingSink) Record(_ context.Context, ev model.GenerationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.ID
	}
	return out
}

func TestAsync_DeliversInOrderAndDrainsOnClose(t *testing.T) {
	rec := &recordingSink{}
	a := NewAsync(rec, 10)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, a.Record(context.Background(), testEvent(id, model.EventSuccess)))
	}
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, rec.ids())
	assert.Zero(t, a.Dropped())
}

func TestAsync_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	blocking := SinkFunc(func(context.Context, model.GenerationEvent) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	a := NewAsync(blocking, 1)

	require.NoError(t, a.Record(context.Background(), testEvent("1", model.EventSuccess)))
	<-started // first event is being delivered, queue is empty
	require.NoError(t, a.Record(context.Background(), testEvent("2", model.EventSuccess)))
	require.NoError(t, a.Record(context.Background(), testEvent("3", model.EventSuccess)))

	assert.Equal(t, int64(1), a.Dropped())
	close(release)
	require.NoError(t, a.Close(context.Background()))
}

func TestAsync_RecordAfterCloseIsDropped(t *testing.T) {
	a := NewAsync(Nop{}, 0)
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))

	assert.NoError(t, a.Record(context.Background(), testEvent("late", model.EventSuccess)))
	assert.Equal(t, int64(1), a.Dropped())
}

func TestAsync_SinkErrorsAreSwallowed(t *testing.T) {
	rec := &recordingSink{err: errors.New("disk full")}
	a := NewAsync(rec, 4)
	assert.NoError(t, a.Record(context.Background(), testEvent("x", model.EventError)))
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, []string{"x"}, rec.ids())
}

func TestAsync_CloseHonoursContext(t *testing.T) {
	release := make(chan struct{})
	a := NewAsync(SinkFunc(func(context.Context, model.GenerationEvent) error {
		<-release
		return nil
	}), 1)
	require.NoError(t, a.Record(context.Background(), testEvent("slow", model.EventSuccess)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Close(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, a.Close(context.Background()))
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("boom")}
	m := Multi{ok, nil, bad}

	err := m.Record(context.Background(), testEvent("e", model.EventSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"e"}, ok.ids())
	assert.Equal(t, []string{"e"}, bad.ids())
}

func TestMetricsSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewMetricsSink(reg)

	require.NoError(t, s.Record(context.Background(), testEvent("1", model.EventSuccess)))
	require.NoError(t, s.Record(context.Background(), testEvent("2", model.EventError)))
	require.NoError(t, s.Record(context.Background(), testEvent("3", model.EventError)))

	assert.InDelta(t, 1, testutil.ToFloat64(s.requests.WithLabelValues("cloud-chat", "gpt-4o-mini", "success")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(s.requests.WithLabelValues("cloud-chat", "gpt-4o-mini", "error")), 1e-9)
	assert.InDelta(t, 300, testutil.ToFloat64(s.tokens.WithLabelValues("cloud-chat", "gpt-4o-mini", "input")), 1e-9)
	assert.InDelta(t, 0.003, testutil.ToFloat64(s.costUSD.WithLabelValues("cloud-chat", "gpt-4o-mini")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(s.duration))
}

func TestFileLogSink_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	s := NewFileLogSink(FileConfig{Path: path, MaxSizeMB: 1})

	require.NoError(t, s.Record(context.Background(), testEvent("ok-1", model.EventSuccess)))
	failed := testEvent("err-1", model.EventError)
	failed.Error = "connection refused"
	require.NoError(t, s.Record(context.Background(), failed))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "ok-1", lines[0]["event_id"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "connection refused", lines[1]["error"])
	assert.EqualValues(t, 1500, lines[1]["latency_ms"])
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordGeneration(ctx context.Context, ev model.GenerationEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func TestStoreSink(t *testing.T) {
	rec := &mockRecorder{}
	ev := testEvent("s-1", model.EventSuccess)
	rec.On("RecordGeneration", mock.Anything, ev).Return(nil).Once()
	rec.On("RecordGeneration", mock.Anything, mock.Anything).Return(errors.New("locked")).Once()

	s := NewStoreSink(rec)
	require.NoError(t, s.Record(context.Background(), ev))

	err := s.Record(context.Background(), testEvent("s-2", model.EventSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry: store event s-2")
	rec.AssertExpectations(t)
}
