package sync

import (
	"context"
	"fmt"
)

// SweepTombstones вычищает из локального хранилища записи, удалённые
// дольше MaxTombstoneAge назад. Это чисто локальное освобождение
// места: сервер остаётся постоянным источником истины по удалениям.
// Устройство, не синхронизировавшееся дольше порога, может воскресить
// уже удалённую запись следующим pull'ом, если сервер тоже вычистил
// tombstone - известный пробел, см. документацию Config.
// Возвращает количество вычищенных записей.
func (e *Engine) SweepTombstones(ctx context.Context) (int, error) {
	cutoff := e.nowFunc().Add(-e.cfg.MaxTombstoneAge)
	purged := 0

	for table := range e.tables {
		records, err := e.store.ListRecords(ctx, table)
		if err != nil {
			return purged, fmt.Errorf("failed to list records of %s: %w", table, err)
		}

		for _, record := range records {
			if !record.Deleted || !record.UpdatedAt.Before(cutoff) {
				continue
			}

			if err := e.store.PurgeRecord(ctx, table, record.ID); err != nil {
				return purged, fmt.Errorf("failed to purge tombstone %s/%s: %w", table, record.ID, err)
			}
			purged++
		}
	}

	if purged > 0 {
		e.logger.Info("Tombstone sweep completed", "purged", purged)
	}

	return purged, nil
}
