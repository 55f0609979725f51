package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

// pullResult счётчики одного pull'а таблицы
type pullResult struct {
	Pulled   int // строк получено с сервера
	Inserted int // вставлено новых записей
	Merged   int // слито с существующими
}

// pullTable забирает изменения таблицы после курсора и применяет их
// локально. Курсор продвигается только после применения всей пачки
// без ошибок: падение посреди пачки означает повторную доставку тех
// же строк, что безопасно (повторное применение идентичных значений -
// no-op диффа).
func (e *Engine) pullTable(ctx context.Context, table string) (pullResult, error) {
	result := pullResult{}

	cursor, err := e.store.GetCursor(ctx, table)
	if err != nil {
		return result, fmt.Errorf("failed to get cursor: %w", err)
	}

	rows, err := e.backend.Pull(ctx, table, cursor)
	if err != nil {
		return result, fmt.Errorf("pull request failed: %w", err)
	}

	result.Pulled = len(rows)
	maxSeen := cursor

	for _, row := range rows {
		inserted, err := e.applyRemoteRow(ctx, table, row)
		if err != nil {
			// Курсор не продвигаем: пачка придёт повторно
			return result, fmt.Errorf("failed to apply row %s: %w", row.ID, err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Merged++
		}

		if row.ServerUpdatedAt > maxSeen {
			maxSeen = row.ServerUpdatedAt
		}
	}

	if maxSeen > cursor {
		if err := e.store.SaveCursor(ctx, table, maxSeen); err != nil {
			return result, fmt.Errorf("failed to advance cursor: %w", err)
		}
	}

	return result, nil
}

// applyRemoteRow применяет одну удалённую строку через резолвер.
// Возвращает true, если запись была вставлена как новая.
func (e *Engine) applyRemoteRow(ctx context.Context, table string, row api.Row) (bool, error) {
	remote := rowToRecord(row)

	local, err := e.store.GetRecord(ctx, table, remote.ID)
	if err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			// Локальной записи нет - конфликт невозможен
			remote.Version = 1
			if err := e.store.SaveRecord(ctx, table, remote); err != nil {
				return false, fmt.Errorf("failed to insert record: %w", err)
			}
			return true, nil
		}
		return false, fmt.Errorf("failed to get local record: %w", err)
	}

	pending, err := e.store.GroupOperations(ctx, table, remote.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get pending operations: %w", err)
	}

	merged := e.resolver.resolve(ctx, resolveInput{
		table:   e.tableConfig(table),
		local:   local,
		remote:  remote,
		pending: pending,
	})

	// Каждое применение поднимает _version ровно на один: по нему
	// CRUD-слой видит, что локальная запись пережила pull
	merged.Version = local.Version + 1

	if err := e.store.SaveRecord(ctx, table, merged); err != nil {
		return false, fmt.Errorf("failed to save merged record: %w", err)
	}

	return false, nil
}

// ApplyRemoteChange прогоняет одиночное изменение, пришедшее по
// realtime-каналу, через тот же резолвер, что и pull. Курсор таблицы
// не трогается: строка придёт и обычным pull'ом, повторное применение
// идемпотентно.
func (e *Engine) ApplyRemoteChange(ctx context.Context, table string, row api.Row) error {
	if _, err := e.applyRemoteRow(ctx, table, row); err != nil {
		return fmt.Errorf("failed to apply realtime change: %w", err)
	}
	return nil
}

// WasRecentlyModifiedLocally сообщает realtime-каналу, что запись
// только что менялась на этом устройстве: входящее уведомление о ней,
// скорее всего, эхо собственного push'а.
func (e *Engine) WasRecentlyModifiedLocally(table, entityID string) bool {
	return e.recent.Recent(table, entityID)
}

// rowToRecord конвертирует wire-форму в локальную запись
func rowToRecord(row api.Row) *models.Record {
	fields := row.Fields
	if fields == nil {
		fields = make(map[string]any)
	}

	return &models.Record{
		ID:        row.ID,
		UserID:    row.UserID,
		DeviceID:  row.DeviceID,
		Fields:    fields,
		Deleted:   row.Deleted,
		CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(row.UpdatedAt).UTC(),
	}
}
