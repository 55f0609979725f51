package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

// seedRow кладёт строку на fakeBackend напрямую, минуя push
func seedRow(b *fakeBackend, table string, row api.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rows[table] == nil {
		b.rows[table] = make(map[string]*api.Row)
	}
	b.seq++
	row.ServerUpdatedAt = b.seq
	clone := row
	b.rows[table][row.ID] = &clone
}

func TestPullTable_InsertsNewRows(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	e := newTestEngine(t, Config{}, backend)

	seedRow(backend, "tasks", api.Row{
		ID:        "r1",
		UserID:    "user1",
		DeviceID:  "device-b",
		Fields:    map[string]any{"title": "remote"},
		UpdatedAt: 100,
	})
	seedRow(backend, "tasks", api.Row{
		ID:        "r2",
		UserID:    "user1",
		DeviceID:  "device-b",
		Fields:    map[string]any{"title": "remote too"},
		UpdatedAt: 200,
	})

	result, err := e.pullTable(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pulled)
	assert.Equal(t, 2, result.Inserted)
	assert.Zero(t, result.Merged)

	record, err := e.GetRecord(ctx, "tasks", "r1")
	require.NoError(t, err)
	assert.Equal(t, "remote", record.Fields["title"])
	assert.Equal(t, int64(1), record.Version)

	// Курсор продвинут до максимального server_updated_at
	cursor, err := e.store.GetCursor(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor)
}

func TestPullTable_SecondPullIsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	e := newTestEngine(t, Config{}, backend)

	seedRow(backend, "tasks", api.Row{
		ID:        "r1",
		UserID:    "user1",
		DeviceID:  "device-b",
		Fields:    map[string]any{"title": "remote"},
		UpdatedAt: 100,
	})

	_, err := e.pullTable(ctx, "tasks")
	require.NoError(t, err)

	result, err := e.pullTable(ctx, "tasks")
	require.NoError(t, err)
	assert.Zero(t, result.Pulled)
}

func TestPullTable_ErrorLeavesCursor(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	e := newTestEngine(t, Config{}, backend)

	seedRow(backend, "tasks", api.Row{
		ID:        "r1",
		UserID:    "user1",
		DeviceID:  "device-b",
		Fields:    map[string]any{"title": "remote"},
		UpdatedAt: 100,
	})

	backend.pullErr = fmt.Errorf("network down")

	_, err := e.pullTable(ctx, "tasks")
	require.Error(t, err)

	cursor, err := e.store.GetCursor(ctx, "tasks")
	require.NoError(t, err)
	assert.Zero(t, cursor)

	// После восстановления строка приходит тем же pull'ом
	backend.pullErr = nil
	result, err := e.pullTable(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
}

func TestPullTable_MergesWithLocal(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	e := newTestEngine(t, Config{}, backend)

	id, err := e.EnqueueCreate(ctx, "tasks", "", map[string]any{"title": "local", "done": false})
	require.NoError(t, err)

	// Удалённая версия новее по updated_at, но поле title защищено
	// ожидающими локальными операциями
	seedRow(backend, "tasks", api.Row{
		ID:        id,
		UserID:    "user1",
		DeviceID:  "device-b",
		Fields:    map[string]any{"title": "remote", "done": true},
		UpdatedAt: time.Now().Add(time.Hour).UnixMilli(),
	})

	result, err := e.pullTable(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)

	record, err := e.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.Equal(t, "local", record.Fields["title"], "pending create shields the field")
	assert.Equal(t, int64(2), record.Version, "merge bumps the local version by one")
}

func TestPullTable_RemoteTombstoneAppliesLocally(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	e := newTestEngine(t, Config{}, backend)

	id, err := e.EnqueueCreate(ctx, "tasks", "", map[string]any{"title": "doomed"})
	require.NoError(t, err)
	_, errs := e.pushPending(ctx)
	require.Empty(t, errs)

	seedRow(backend, "tasks", api.Row{
		ID:        id,
		UserID:    "user1",
		DeviceID:  "device-b",
		Deleted:   true,
		UpdatedAt: time.Now().Add(time.Hour).UnixMilli(),
	})

	_, err = e.pullTable(ctx, "tasks")
	require.NoError(t, err)

	record, err := e.GetRecord(ctx, "tasks", id)
	require.NoError(t, err)
	assert.True(t, record.Deleted)

	// Из листинга tombstone скрыт
	records, err := e.ListRecords(ctx, "tasks")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestApplyRemoteChange_IdempotentAndCursorUntouched(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	e := newTestEngine(t, Config{}, backend)

	row := api.Row{
		ID:              "r1",
		UserID:          "user1",
		DeviceID:        "device-b",
		Fields:          map[string]any{"title": "remote"},
		UpdatedAt:       100,
		ServerUpdatedAt: 42,
	}

	require.NoError(t, e.ApplyRemoteChange(ctx, "tasks", row))
	require.NoError(t, e.ApplyRemoteChange(ctx, "tasks", row))

	record, err := e.GetRecord(ctx, "tasks", "r1")
	require.NoError(t, err)
	assert.Equal(t, "remote", record.Fields["title"])

	// Realtime-канал курсор не трогает, строка придёт и pull'ом
	cursor, err := e.store.GetCursor(ctx, "tasks")
	require.NoError(t, err)
	assert.Zero(t, cursor)
}

func TestWasRecentlyModifiedLocally(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	e := newTestEngine(t, Config{RecentTTL: time.Minute}, backend)

	id, err := e.EnqueueCreate(ctx, "tasks", "", map[string]any{"title": "x"})
	require.NoError(t, err)

	assert.True(t, e.WasRecentlyModifiedLocally("tasks", id))
	assert.False(t, e.WasRecentlyModifiedLocally("tasks", "other-id"))
	assert.False(t, e.WasRecentlyModifiedLocally("notes", id))
}

func TestPullTable_UnknownTableUsesEmptyPolicy(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	e := newTestEngine(t, Config{Tables: []models.TableConfig{{Table: "tasks"}}}, backend)

	seedRow(backend, "notes", api.Row{
		ID:        "n1",
		UserID:    "user1",
		DeviceID:  "device-b",
		Fields:    map[string]any{"body": "text"},
		UpdatedAt: 100,
	})

	result, err := e.pullTable(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
}
