package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

// pushResult счётчики одного push-прохода
type pushResult struct {
	Attempted int // записей с истёкшим backoff, по которым была попытка
	Pushed    int // записей подтверждено сервером
	Annulled  int // групп, свернувшихся в ничто (create+delete)
	Skipped   int // записей, ждущих backoff или превысивших лимит ретраев
}

// pushPending отправляет коалесцированные операции всех записей с
// истёкшим backoff. Ошибки изолируются по записям: отказ одной записи
// не блокирует push остальных и собирается в errs. Проход по каждой
// подходящей записи делается ровно один раз за цикл, поэтому
// постоянно падающая запись не может заморить остальных.
func (e *Engine) pushPending(ctx context.Context) (pushResult, []SyncError) {
	result := pushResult{}
	var errs []SyncError

	keys, err := e.store.PendingEntities(ctx)
	if err != nil {
		errs = append(errs, SyncError{Message: fmt.Sprintf("failed to list pending entities: %v", err)})
		return result, errs
	}

	for _, key := range keys {
		outcome, err := e.pushEntity(ctx, key)
		switch outcome {
		case pushOutcomeAcked:
			result.Attempted++
			result.Pushed++
		case pushOutcomeAnnulled:
			result.Annulled++
		case pushOutcomeSkipped:
			result.Skipped++
		case pushOutcomeFailed:
			result.Attempted++
			errs = append(errs, SyncError{
				Table:     key.Table,
				EntityID:  key.EntityID,
				Message:   err.Error(),
				Permanent: isPermanent(err),
				Time:      e.nowFunc(),
			})
		}
	}

	return result, errs
}

type pushOutcome int

const (
	pushOutcomeAcked pushOutcome = iota
	pushOutcomeAnnulled
	pushOutcomeSkipped
	pushOutcomeFailed
)

// pushEntity коалесцирует и отправляет очередь одной записи.
func (e *Engine) pushEntity(ctx context.Context, key models.EntityKey) (pushOutcome, error) {
	ops, err := e.store.GroupOperations(ctx, key.Table, key.EntityID)
	if err != nil {
		return pushOutcomeFailed, fmt.Errorf("failed to read queue group: %w", err)
	}
	if len(ops) == 0 {
		return pushOutcomeSkipped, nil
	}

	now := e.nowFunc()
	group := Coalesce(ops)

	if group.Empty() {
		// create+delete аннигилировали: сети нечего делать,
		// исходные операции просто снимаются с очереди
		if err := e.store.RemoveOperations(ctx, group.SourceIDs); err != nil {
			return pushOutcomeFailed, fmt.Errorf("failed to remove annulled operations: %w", err)
		}
		e.logger.Debug("Queue group annulled before push",
			"table", key.Table,
			"entity_id", key.EntityID,
			"operations", len(group.SourceIDs))
		return pushOutcomeAnnulled, nil
	}

	if !group.Eligible(now) {
		return pushOutcomeSkipped, nil
	}

	if e.cfg.MaxRetries > 0 && group.Retries >= e.cfg.MaxRetries {
		// Операция не отбрасывается, но и не ретраится дальше без
		// внешнего сигнала: остаётся в очереди как постоянный отказ
		e.logger.Warn("Entity exceeded retry limit, parking",
			"table", key.Table,
			"entity_id", key.EntityID,
			"retries", group.Retries)
		return pushOutcomeSkipped, nil
	}

	change := buildChange(group, e.deviceID)

	if err := e.backend.Push(ctx, key.Table, []api.Change{change}); err != nil {
		retries := group.Retries + 1
		nextRetryAt := now.Add(backoffDelay(e.cfg.BackoffBase, e.cfg.BackoffMax, e.cfg.BackoffFactor, group.Retries))

		if updateErr := e.store.UpdateRetryState(ctx, group.SourceIDs, retries, nextRetryAt); updateErr != nil {
			e.logger.Warn("Failed to persist retry state",
				"table", key.Table,
				"entity_id", key.EntityID,
				"error", updateErr)
		}

		e.logger.Warn("Push failed",
			"table", key.Table,
			"entity_id", key.EntityID,
			"retries", retries,
			"next_retry_at", nextRetryAt,
			"error", err)

		return pushOutcomeFailed, fmt.Errorf("push failed: %w", err)
	}

	// Удаление строго по набору ID, прочитанному коалесцером:
	// операции, поставленные в очередь во время push'а, не задеваются
	if err := e.store.RemoveOperations(ctx, group.SourceIDs); err != nil {
		return pushOutcomeFailed, fmt.Errorf("failed to remove acknowledged operations: %w", err)
	}

	// Отметка для подавления эха realtime-уведомлений
	e.recent.Mark(key.Table, key.EntityID)

	e.logger.Debug("Entity pushed",
		"table", key.Table,
		"entity_id", key.EntityID,
		"operations", len(group.SourceIDs))

	return pushOutcomeAcked, nil
}

// buildChange собирает wire-представление коалесцированной группы.
// updated_at - момент последней локальной правки, а не момент push'а:
// иначе устройство, дольше просидевшее offline, выигрывало бы LWW
// одним фактом поздней отправки.
func buildChange(group CoalescedGroup, deviceID string) api.Change {
	change := api.Change{
		DeviceID:  deviceID,
		UpdatedAt: group.LastEnqueuedAt.UnixMilli(),
	}

	for _, op := range group.Ops {
		change.EntityID = op.EntityID

		switch op.Type {
		case models.OpDelete:
			change.Delete = true

		case models.OpCreate:
			if fields, ok := op.Value.(map[string]any); ok {
				change.Create = fields
			} else {
				change.Create = make(map[string]any)
			}

		case models.OpSet:
			if fields, ok := op.Value.(map[string]any); ok {
				change.Set = fields
			}

		case models.OpIncrement:
			if change.Increment == nil {
				change.Increment = make(map[string]float64)
			}
			change.Increment[op.Field] = op.Delta()
		}
	}

	return change
}

// isPermanent классифицирует ошибку push'а как окончательный отказ
func isPermanent(err error) bool {
	var perm PermanentError
	return errors.As(err, &perm) && perm.Permanent()
}
