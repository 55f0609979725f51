package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
)

// Поверхность движка для CRUD-слоя приложения. Каждая мутация
// write-ahead: намерение durable ложится в очередь до применения к
// локальной записи и до возврата управления, после чего запрашивается
// дебаунсированный push.

// PendingSummary сводка несинхронизированного состояния
type PendingSummary struct {
	Entities   []models.EntityKey // записи с ожидающими операциями
	Operations int                // всего операций в очереди
}

// EnqueueCreate ставит в очередь создание записи и применяет её
// локально. Пустой id генерируется. Возвращает итоговый id записи.
func (e *Engine) EnqueueCreate(ctx context.Context, table, id string, fields map[string]any) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}

	if fields == nil {
		fields = make(map[string]any)
	}

	if err := e.appendOp(ctx, table, id, models.OpCreate, "", fields); err != nil {
		return "", err
	}

	now := e.nowFunc()
	record := &models.Record{
		ID:        id,
		UserID:    e.userID,
		DeviceID:  e.deviceID,
		Fields:    fields,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.SaveRecord(ctx, table, record); err != nil {
		return "", fmt.Errorf("failed to save record: %w", err)
	}

	e.requestSync(TriggerEnqueue)
	return id, nil
}

// EnqueueSet ставит в очередь установку значения поля и применяет
// её локально.
func (e *Engine) EnqueueSet(ctx context.Context, table, id, field string, value any) error {
	if err := e.appendOp(ctx, table, id, models.OpSet, field, value); err != nil {
		return err
	}

	err := e.mutateRecord(ctx, table, id, func(record *models.Record) {
		record.Fields[field] = value
	})
	if err != nil {
		return err
	}

	e.requestSync(TriggerEnqueue)
	return nil
}

// EnqueueIncrement ставит в очередь аддитивное изменение числового
// поля. Намерение "добавить delta" переживает коалесценцию и
// разрешение конфликтов: конкурентные инкременты разных устройств
// складываются, а не перетирают друг друга.
func (e *Engine) EnqueueIncrement(ctx context.Context, table, id, field string, delta float64) error {
	if err := e.appendOp(ctx, table, id, models.OpIncrement, field, delta); err != nil {
		return err
	}

	err := e.mutateRecord(ctx, table, id, func(record *models.Record) {
		record.Fields[field] = toFloat(record.Fields[field]) + delta
	})
	if err != nil {
		return err
	}

	e.requestSync(TriggerEnqueue)
	return nil
}

// EnqueueDelete ставит в очередь удаление записи и помечает её
// локальным tombstone.
func (e *Engine) EnqueueDelete(ctx context.Context, table, id string) error {
	if err := e.appendOp(ctx, table, id, models.OpDelete, "", nil); err != nil {
		return err
	}

	err := e.mutateRecord(ctx, table, id, func(record *models.Record) {
		record.Deleted = true
	})
	if err != nil {
		return err
	}

	e.requestSync(TriggerEnqueue)
	return nil
}

// GetRecord возвращает локальную запись.
func (e *Engine) GetRecord(ctx context.Context, table, id string) (*models.Record, error) {
	return e.store.GetRecord(ctx, table, id)
}

// ListRecords возвращает записи таблицы без tombstone'ов.
func (e *Engine) ListRecords(ctx context.Context, table string) ([]*models.Record, error) {
	records, err := e.store.ListRecords(ctx, table)
	if err != nil {
		return nil, err
	}

	active := records[:0]
	for _, record := range records {
		if !record.Deleted {
			active = append(active, record)
		}
	}
	return active, nil
}

// GetPendingSummary возвращает сводку несинхронизированных изменений.
func (e *Engine) GetPendingSummary(ctx context.Context) (*PendingSummary, error) {
	entities, err := e.store.PendingEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entities: %w", err)
	}

	count, err := e.store.CountOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count operations: %w", err)
	}

	return &PendingSummary{Entities: entities, Operations: count}, nil
}

// RecentConflicts возвращает последние записи аудита конфликтов.
func (e *Engine) RecentConflicts(ctx context.Context, limit int) ([]*models.ConflictRecord, error) {
	return e.store.RecentConflicts(ctx, limit)
}

// appendOp durable добавляет операцию в очередь и отмечает запись
// локально изменённой (подавление эха realtime).
func (e *Engine) appendOp(ctx context.Context, table, id string, opType models.OpType, field string, value any) error {
	op := &models.Operation{
		Table:      table,
		EntityID:   id,
		Type:       opType,
		Field:      field,
		Value:      value,
		EnqueuedAt: e.nowFunc(),
	}

	if _, err := e.store.AppendOperation(ctx, op); err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}

	e.recent.Mark(table, id)
	return nil
}

// mutateRecord применяет локальную мутацию к записи, поднимая Version
// и UpdatedAt. Отсутствующая запись создаётся: очередь уже durable
// хранит намерение, терять его из-за гонки с GC нельзя.
func (e *Engine) mutateRecord(ctx context.Context, table, id string, mutate func(*models.Record)) error {
	now := e.nowFunc()

	record, err := e.store.GetRecord(ctx, table, id)
	if err != nil {
		if !errors.Is(err, storage.ErrEntryNotFound) {
			return fmt.Errorf("failed to get record: %w", err)
		}
		record = &models.Record{
			ID:        id,
			UserID:    e.userID,
			Fields:    make(map[string]any),
			CreatedAt: now,
		}
	}

	mutate(record)

	record.Version++
	record.UpdatedAt = now
	record.DeviceID = e.deviceID

	if err := e.store.SaveRecord(ctx, table, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}
