package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
)

// resolver реализует многоярусное разрешение конфликтов при слиянии
// удалённой версии записи с локальной. Разрешение никогда не ошибка:
// для любой пары версий детерминированно выбирается итоговое значение.
type resolver struct {
	conflicts  storage.ConflictStorage
	historyLen int
	logger     *slog.Logger
}

// resolveInput вход одного слияния.
type resolveInput struct {
	table   *models.TableConfig
	local   *models.Record
	remote  *models.Record
	pending []*models.Operation // неподтверждённые операции этой записи
}

// resolve сливает remote в local и возвращает итоговую запись.
// Ярусы, по порядку для каждого отличающегося поля:
//  1. исключённое поле: просто более свежее значение, без аудита
//  2. поле, не тронутое очередью: строка сервера - его авторитетное
//     сведённое состояние, значение применяется без сравнения времён
//  3. аддитивное поле: дельты обеих сторон суммируются, намерение
//     increment не теряется
//  4. поле с неподтверждённой локальной операцией, первое совпавшее
//     правило: local_pending (set/create) -> delete_wins ->
//     last_write_wins с тай-брейком по идентификатору устройства
//
// Каждый исход ярусов 3-4 попадает в аудит конфликтов.
func (r *resolver) resolve(ctx context.Context, in resolveInput) *models.Record {
	local := in.local
	remote := in.remote

	// Неподтверждённые локальные намерения по полям. Считаются до
	// любых решений: правило local_pending стоит в порядке первым
	pendingSets := make(map[string]bool)
	pendingDeltas := make(map[string]float64)
	for _, op := range in.pending {
		switch op.Type {
		case models.OpSet:
			pendingSets[op.Field] = true
		case models.OpIncrement:
			pendingDeltas[op.Field] += op.Delta()
		case models.OpCreate:
			// Невыгруженный create: вся запись - локальное намерение
			if fields, ok := op.Value.(map[string]any); ok {
				for field := range fields {
					pendingSets[field] = true
				}
			}
		}
	}

	// Уровень записи: tombstone против живой версии
	if remote.Deleted && !local.Deleted {
		// Неотправленные правки не перетираются входящим tombstone:
		// запись доживает до push'а, сервер сводит её с tombstone'ом,
		// и итог приходит следующим pull'ом, когда очередь пуста
		if len(in.pending) > 0 {
			r.audit(ctx, in, "", local.Deleted, remote.Deleted, local.Deleted, models.WinnerLocal, models.StrategyLocalPending)
			return local.Clone()
		}
		result := remote.Clone()
		result.Version = local.Version
		r.audit(ctx, in, "", local.Deleted, remote.Deleted, true, models.WinnerRemote, models.StrategyDeleteWins)
		return result
	}
	if local.Deleted && !remote.Deleted {
		r.audit(ctx, in, "", local.Deleted, remote.Deleted, true, models.WinnerLocal, models.StrategyDeleteWins)
		return local.Clone()
	}

	result := local.Clone()
	remoteApplied := false

	for field, remoteValue := range remote.Fields {
		localValue, hasLocal := result.Fields[field]

		if hasLocal && valuesEqual(localValue, remoteValue) {
			continue
		}

		// Ярус 1: исключённые поля, всегда более свежее, без аудита
		if in.table.IsExcluded(field) {
			if remote.UpdatedAt.After(local.UpdatedAt) {
				result.Fields[field] = remoteValue
				remoteApplied = true
			}
			continue
		}

		// Ярус 3: аддитивное слияние независимых дельт
		if in.table.IsNumericMerge(field) {
			delta := pendingDeltas[field]
			if delta != 0 {
				merged := toFloat(remoteValue) + delta
				result.Fields[field] = merged
				remoteApplied = true
				r.audit(ctx, in, field, localValue, remoteValue, merged, models.WinnerMerged, models.StrategyAdditiveMerge)
				continue
			}
			// Локальной дельты нет - значение сервера уже включает всё
			result.Fields[field] = remoteValue
			remoteApplied = true
			continue
		}

		// Ярус 4a: неподтверждённый set/create не перетирается
		// входящим pull'ом
		if pendingSets[field] {
			r.audit(ctx, in, field, localValue, remoteValue, localValue, models.WinnerLocal, models.StrategyLocalPending)
			continue
		}

		// Ярус 2: поле без операций в очереди конфликтным не бывает.
		// Pull несёт сведённое состояние сервера, и оно применяется
		// безусловно: сравнение времён здесь молча хоронило бы правку
		// другого устройства при равном или отстающем updated_at
		if _, touched := pendingDeltas[field]; !touched {
			result.Fields[field] = remoteValue
			remoteApplied = true
			continue
		}

		// Ярус 4c: инкремент по не-аддитивному полю ещё в очереди,
		// обе стороны меняли поле - last_write_wins, при равенстве
		// побеждает лексикографически больший идентификатор устройства
		if remote.NewerThan(local) {
			result.Fields[field] = remoteValue
			remoteApplied = true
			r.audit(ctx, in, field, localValue, remoteValue, remoteValue, models.WinnerRemote, models.StrategyLastWriteWins)
		} else {
			r.audit(ctx, in, field, localValue, remoteValue, localValue, models.WinnerLocal, models.StrategyLastWriteWins)
		}
	}

	if remoteApplied && remote.UpdatedAt.After(result.UpdatedAt) {
		result.UpdatedAt = remote.UpdatedAt
		result.DeviceID = remote.DeviceID
	}

	return result
}

// audit добавляет запись в историю конфликтов. Ошибки аудита только
// логируются: диагностика не должна ломать синхронизацию.
func (r *resolver) audit(ctx context.Context, in resolveInput, field string, localValue, remoteValue, resolved any, winner, strategy string) {
	record := &models.ConflictRecord{
		EntityID:      in.local.ID,
		EntityType:    in.table.Table,
		Field:         field,
		LocalValue:    localValue,
		RemoteValue:   remoteValue,
		ResolvedValue: resolved,
		Winner:        winner,
		Strategy:      strategy,
		Timestamp:     time.Now(),
	}

	if err := r.conflicts.AppendConflict(ctx, record, r.historyLen); err != nil {
		r.logger.Warn("Failed to append conflict record",
			"entity_id", in.local.ID,
			"field", field,
			"error", err)
	}

	r.logger.Debug("Conflict resolved",
		"entity_id", in.local.ID,
		"field", field,
		"winner", winner,
		"strategy", strategy)
}
