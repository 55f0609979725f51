package sync

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	"github.com/iudanet/offsync/internal/models"
)

// Сценарии сведения двух устройств одного пользователя через общий
// backend. Каждое устройство живёт на своём локальном хранилище и
// своём deviceID.

func TestTwoDevices_IncrementsConverge(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	cfg := Config{Tables: []models.TableConfig{{
		Table:              "counters",
		NumericMergeFields: []string{"count"},
	}}}

	a := newTestEngine(t, cfg, backend)
	b := newTestEngine(t, cfg, backend)

	id, err := a.EnqueueCreate(ctx, "counters", "", map[string]any{"count": 10.0})
	require.NoError(t, err)
	_, err = a.RunFullCycle(ctx, false, false)
	require.NoError(t, err)

	_, err = b.RunFullCycle(ctx, false, false)
	require.NoError(t, err)

	recB, err := b.GetRecord(ctx, "counters", id)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, toFloat(recB.Fields["count"]), 1e-9)

	// Конкурентные инкременты: оба устройства правят локально, потом
	// оба пушат и только затем тянут
	require.NoError(t, a.EnqueueIncrement(ctx, "counters", id, "count", 1))
	require.NoError(t, b.EnqueueIncrement(ctx, "counters", id, "count", 2))

	_, errsA := a.pushPending(ctx)
	require.Empty(t, errsA)
	_, errsB := b.pushPending(ctx)
	require.Empty(t, errsB)

	_, err = a.pullTable(ctx, "counters")
	require.NoError(t, err)
	_, err = b.pullTable(ctx, "counters")
	require.NoError(t, err)

	// Дельты сложились, оба устройства сошлись на одном значении
	recA, err := a.GetRecord(ctx, "counters", id)
	require.NoError(t, err)
	recB, err = b.GetRecord(ctx, "counters", id)
	require.NoError(t, err)

	assert.InDelta(t, 13.0, toFloat(recA.Fields["count"]), 1e-9)
	assert.InDelta(t, 13.0, toFloat(recB.Fields["count"]), 1e-9)
	assert.InDelta(t, 13.0, toFloat(backend.row("counters", id).Fields["count"]), 1e-9)
}

func TestTwoDevices_DeleteWinsOverConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	a := newTestEngine(t, Config{}, backend)
	b := newTestEngine(t, Config{}, backend)

	id, err := a.EnqueueCreate(ctx, "tasks", "", map[string]any{"title": "shared"})
	require.NoError(t, err)
	_, err = a.RunFullCycle(ctx, false, false)
	require.NoError(t, err)
	_, err = b.RunFullCycle(ctx, false, false)
	require.NoError(t, err)

	// B удаляет, A параллельно правит заголовок более поздним временем
	require.NoError(t, b.EnqueueDelete(ctx, "tasks", id))
	_, errsB := b.pushPending(ctx)
	require.Empty(t, errsB)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, a.EnqueueSet(ctx, "tasks", id, "title", "edited after delete"))

	_, err = a.RunFullCycle(ctx, false, false)
	require.NoError(t, err)
	_, err = b.RunFullCycle(ctx, false, false)
	require.NoError(t, err)

	// Удаление побеждает на обоих устройствах
	recA, err := a.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.True(t, recA.Deleted)

	recB, err := b.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.True(t, recB.Deleted)

	assert.True(t, backend.row("tasks", id).Deleted)
}

func TestTwoDevices_LastWriteWinsConverges(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	a := newTestEngine(t, Config{}, backend)
	b := newTestEngine(t, Config{}, backend)

	tickA := advanceClock(a, time.Unix(100000, 0))
	tickB := advanceClock(b, time.Unix(100000, 0))

	id, err := a.EnqueueCreate(ctx, "tasks", "", map[string]any{"title": "v0"})
	require.NoError(t, err)
	_, err = a.RunFullCycle(ctx, false, false)
	require.NoError(t, err)
	_, err = b.RunFullCycle(ctx, false, false)
	require.NoError(t, err)

	// B правит раньше, A позже. Порядок доставки обратный порядку
	// правок: сначала пушит A, потом B
	tickB(10 * time.Second)
	require.NoError(t, b.EnqueueSet(ctx, "tasks", id, "title", "older edit"))

	tickA(20 * time.Second)
	require.NoError(t, a.EnqueueSet(ctx, "tasks", id, "title", "newer edit"))

	_, errsA := a.pushPending(ctx)
	require.Empty(t, errsA)
	_, errsB := b.pushPending(ctx)
	require.Empty(t, errsB)

	_, err = a.pullTable(ctx, "tasks")
	require.NoError(t, err)
	_, err = b.pullTable(ctx, "tasks")
	require.NoError(t, err)

	// Поздняя правка побеждает независимо от порядка доставки
	recA, err := a.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.Equal(t, "newer edit", recA.Fields["title"])

	recB, err := b.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.Equal(t, "newer edit", recB.Fields["title"])
}

func TestTwoDevices_DisjointFieldEditsConverge(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	a := newTestEngine(t, Config{}, backend)
	b := newTestEngine(t, Config{}, backend)

	tickA := advanceClock(a, time.Unix(100000, 0))
	tickB := advanceClock(b, time.Unix(100000, 0))

	id, err := a.EnqueueCreate(ctx, "tasks", "", map[string]any{"x": "x0", "y": "y0"})
	require.NoError(t, err)
	_, err = a.RunFullCycle(ctx, false, false)
	require.NoError(t, err)
	_, err = b.RunFullCycle(ctx, false, false)
	require.NoError(t, err)

	// Устройства правят разные поля одной записи. Правка B позже,
	// поэтому строка сервера после обоих push несёт updated_at и
	// device_id устройства B: его pull не должен на этом споткнуться
	tickA(10 * time.Second)
	require.NoError(t, a.EnqueueSet(ctx, "tasks", id, "x", "x1"))

	tickB(20 * time.Second)
	require.NoError(t, b.EnqueueSet(ctx, "tasks", id, "y", "y1"))

	_, errsA := a.pushPending(ctx)
	require.Empty(t, errsA)
	_, errsB := b.pushPending(ctx)
	require.Empty(t, errsB)

	_, err = a.pullTable(ctx, "tasks")
	require.NoError(t, err)
	_, err = b.pullTable(ctx, "tasks")
	require.NoError(t, err)

	// Обе правки видны на обоих устройствах
	recA, err := a.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.Equal(t, "x1", recA.Fields["x"])
	assert.Equal(t, "y1", recA.Fields["y"])

	recB, err := b.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.Equal(t, "x1", recB.Fields["x"], "B must see A's edit of the untouched field")
	assert.Equal(t, "y1", recB.Fields["y"])
}

func TestPendingEditOutlivesRemoteTombstoneUntilPush(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	a := newTestEngine(t, Config{}, backend)
	b := newTestEngine(t, Config{}, backend)

	id, err := a.EnqueueCreate(ctx, "tasks", "", map[string]any{"title": "shared"})
	require.NoError(t, err)
	_, err = a.RunFullCycle(ctx, false, false)
	require.NoError(t, err)
	_, err = b.RunFullCycle(ctx, false, false)
	require.NoError(t, err)

	// B удаляет и пушит; у A к этому моменту в очереди лежит правка
	require.NoError(t, b.EnqueueDelete(ctx, "tasks", id))
	_, errsB := b.pushPending(ctx)
	require.Empty(t, errsB)

	require.NoError(t, a.EnqueueSet(ctx, "tasks", id, "title", "still editing"))

	// Pull с непустой очередью не выбрасывает правку A
	_, err = a.pullTable(ctx, "tasks")
	require.NoError(t, err)

	recA, err := a.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.False(t, recA.Deleted)
	assert.Equal(t, "still editing", recA.Fields["title"])

	conflicts, err := a.RecentConflicts(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, conflicts)
	assert.Equal(t, models.StrategyLocalPending, conflicts[0].Strategy)

	// После push очередь пуста, сервер сохранил tombstone, и
	// следующий pull сводит запись в удаление
	_, err = a.RunFullCycle(ctx, false, false)
	require.NoError(t, err)

	recA, err = a.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.True(t, recA.Deleted)
	assert.True(t, backend.row("tasks", id).Deleted)
}

func TestQueueSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	dbPath := filepath.Join(t.TempDir(), "client.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{Tables: []models.TableConfig{{Table: "tasks"}}}

	store, err := boltdb.New(ctx, dbPath)
	require.NoError(t, err)

	e1, err := NewEngine(ctx, cfg, store, backend, "user1", logger)
	require.NoError(t, err)

	id, err := e1.EnqueueCreate(ctx, "tasks", "", map[string]any{"title": "queued offline"})
	require.NoError(t, err)

	// Процесс умирает до первого push
	require.NoError(t, store.Close())

	store, err = boltdb.New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	e2, err := NewEngine(ctx, cfg, store, backend, "user1", logger)
	require.NoError(t, err)

	// Устройство то же самое: deviceID persist в хранилище
	assert.Equal(t, e1.DeviceID(), e2.DeviceID())

	summary, err := e2.GetPendingSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Operations)

	result, err := e2.RunFullCycle(ctx, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pushed)
	assert.Equal(t, "queued offline", backend.row("tasks", id).Fields["title"])
}
