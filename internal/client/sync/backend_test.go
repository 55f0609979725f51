package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

// fakeBackend in-memory сервер с теми же правилами сведения, что у
// настоящего: детерминированный LWW по (updated_at, device_id),
// аддитивные инкременты, delete побеждает всегда.
type fakeBackend struct {
	mu     sync.Mutex
	rows   map[string]map[string]*api.Row // table -> id -> row
	seq    int64
	pushes int

	// pushErr возвращается из Push, пока не сброшен
	pushErr error
	// failEntity ломает push только одной записи
	failEntity string

	pulls int
	// pullErr возвращается из Pull, пока не сброшен
	pullErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rows: make(map[string]map[string]*api.Row)}
}

type permanentPushError struct{ msg string }

func (e *permanentPushError) Error() string   { return e.msg }
func (e *permanentPushError) Permanent() bool { return true }

func (b *fakeBackend) Push(_ context.Context, table string, changes []api.Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pushes++
	if b.pushErr != nil {
		return b.pushErr
	}

	for _, change := range changes {
		if b.failEntity != "" && change.EntityID == b.failEntity {
			return fmt.Errorf("backend rejected entity %s", change.EntityID)
		}

		if b.rows[table] == nil {
			b.rows[table] = make(map[string]*api.Row)
		}

		row := b.rows[table][change.EntityID]
		if row == nil {
			row = &api.Row{
				ID:        change.EntityID,
				UserID:    "user1",
				DeviceID:  change.DeviceID,
				Fields:    make(map[string]any),
				UpdatedAt: change.UpdatedAt,
			}
			b.rows[table][change.EntityID] = row
		}

		wins := change.UpdatedAt > row.UpdatedAt ||
			(change.UpdatedAt == row.UpdatedAt && change.DeviceID >= row.DeviceID)

		if change.Delete {
			row.Deleted = true
			row.Fields = make(map[string]any)
			row.UpdatedAt = change.UpdatedAt
			row.DeviceID = change.DeviceID
		}

		if change.Create != nil {
			if wins || change.Delete {
				row.Deleted = false
				row.Fields = make(map[string]any, len(change.Create))
				for k, v := range change.Create {
					row.Fields[k] = v
				}
				row.UpdatedAt = change.UpdatedAt
				row.DeviceID = change.DeviceID
			}
		} else if change.Set != nil {
			if wins || change.Delete {
				for k, v := range change.Set {
					row.Fields[k] = v
				}
				row.UpdatedAt = change.UpdatedAt
				row.DeviceID = change.DeviceID
			}
		}

		for field, delta := range change.Increment {
			row.Fields[field] = toFloat(row.Fields[field]) + delta
		}

		b.seq++
		row.ServerUpdatedAt = b.seq
	}

	return nil
}

func (b *fakeBackend) Pull(_ context.Context, table string, since int64) ([]api.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pulls++
	if b.pullErr != nil {
		return nil, b.pullErr
	}

	var out []api.Row
	for _, row := range b.rows[table] {
		if row.ServerUpdatedAt > since {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerUpdatedAt < out[j].ServerUpdatedAt })
	return out, nil
}

func (b *fakeBackend) Health(context.Context) error { return nil }

// row возвращает копию серверной строки для проверок
func (b *fakeBackend) row(table, id string) *api.Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	row, ok := b.rows[table][id]
	if !ok {
		return nil
	}
	clone := *row
	return &clone
}

// newTestEngine собирает движок над временным bolt-хранилищем
func newTestEngine(t *testing.T, cfg Config, backend Backend) *Engine {
	t.Helper()
	ctx := context.Background()

	store, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if len(cfg.Tables) == 0 {
		cfg.Tables = []models.TableConfig{{Table: "tasks"}}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := NewEngine(ctx, cfg, store, backend, "user1", logger)
	require.NoError(t, err)
	return engine
}

// advanceClock фиксирует время движка и позволяет его сдвигать
func advanceClock(e *Engine, start time.Time) func(d time.Duration) {
	current := start
	e.nowFunc = func() time.Time { return current }
	return func(d time.Duration) { current = current.Add(d) }
}
