package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// State состояние движка синхронизации
type State string

// Состояния движка
const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateError   State = "error"
	StateOffline State = "offline"
)

// Причины запуска цикла, попадают в логи
const (
	TriggerOnline     = "online"
	TriggerVisibility = "visibility"
	TriggerPeriodic   = "periodic"
	TriggerExplicit   = "explicit"
	TriggerEnqueue    = "enqueue"
)

// SyncError одна ошибка синхронизации записи или таблицы
type SyncError struct {
	Time      time.Time `json:"time"`
	Table     string    `json:"table"`
	EntityID  string    `json:"entity_id"`
	Message   string    `json:"message"`
	Permanent bool      `json:"permanent"`
}

// CycleResult итог одного полного цикла push+pull
type CycleResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Errors     []SyncError
	Pushed     int // записей подтверждено сервером
	Pulled     int // строк получено с сервера
	Inserted   int // новых записей вставлено
	Merged     int // записей слито резолвером
	Status     State
}

// Run запускает координатор: единственная горутина, потребляющая
// триггеры, периодический таймер и таймер GC tombstone'ов. Все
// внешние события (сеть появилась, вкладка снова видима, явный
// запрос) стекаются в один дебаунсированный вход. Возвращается после
// отмены контекста.
func (e *Engine) Run(ctx context.Context) {
	syncTicker := time.NewTicker(e.cfg.SyncInterval)
	defer syncTicker.Stop()

	sweepTicker := time.NewTicker(e.cfg.TombstoneSweepInterval)
	defer sweepTicker.Stop()

	e.logger.Info("Sync coordinator started",
		"device_id", e.deviceID,
		"sync_interval", e.cfg.SyncInterval)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Sync coordinator stopped")
			return

		case reason := <-e.triggerCh:
			// Окно дебаунса: шквал триггеров сливается в один цикл
			e.debounce(ctx)

			e.logger.Debug("Sync cycle triggered", "reason", reason)
			if _, err := e.RunFullCycle(ctx, false, false); err != nil {
				e.logger.Warn("Sync cycle failed", "reason", reason, "error", err)
			}

		case <-syncTicker.C:
			e.requestSync(TriggerPeriodic)

		case <-sweepTicker.C:
			if _, err := e.SweepTombstones(ctx); err != nil {
				e.logger.Warn("Tombstone sweep failed", "error", err)
			}
		}
	}
}

// debounce выдерживает окно тишины, поглощая дополнительные триггеры
func (e *Engine) debounce(ctx context.Context) {
	timer := time.NewTimer(e.cfg.DebounceInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.triggerCh:
			// Ещё триггер - окно продлевается
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(e.cfg.DebounceInterval)
		case <-timer.C:
			return
		}
	}
}

// requestSync запрашивает цикл синхронизации. Канал триггеров имеет
// единственный слот: запрос во время активного цикла превращается в
// "прогнать ещё раз по завершении", лишние запросы коалесцируются.
func (e *Engine) requestSync(reason string) {
	e.mu.Lock()
	online := e.online
	e.mu.Unlock()

	if !online {
		return
	}

	select {
	case e.triggerCh <- reason:
	default:
		// Слот занят - повторный прогон уже запланирован
	}
}

// RequestSync явный запрос цикла от приложения (дебаунсированный).
func (e *Engine) RequestSync() {
	e.requestSync(TriggerExplicit)
}

// SetOnline сообщает движку о смене доступности сети. Возврат в
// online запускает цикл.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	changed := e.online != online
	e.online = online
	if !online {
		e.state = StateOffline
	} else if e.state == StateOffline {
		e.state = StateIdle
	}
	e.mu.Unlock()

	if changed && online {
		e.requestSync(TriggerOnline)
	}
}

// NotifyVisibilityRegained сообщает, что приложение снова видимо
// после awayFor отсутствия. Короткие отлучки цикл не запускают.
func (e *Engine) NotifyVisibilityRegained(awayFor time.Duration) {
	if awayFor >= e.cfg.MinAwayDuration {
		e.requestSync(TriggerVisibility)
	}
}

// RunFullCycle выполняет один полный цикл: push всех ожидающих
// записей, затем (если не skipPull) pull всех таблиц. Глобальный
// sync lock гарантирует не более одного цикла одновременно. quiet
// подавляет смену статуса и уведомление подписчиков (служебные
// прогоны). Ошибки отдельных записей и таблиц изолируются и
// агрегируются в статус цикла; наружу они не пробрасываются.
func (e *Engine) RunFullCycle(ctx context.Context, quiet, skipPull bool) (CycleResult, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	result := CycleResult{StartedAt: e.nowFunc()}

	if !quiet {
		e.setState(StateSyncing)
	}

	pushRes, pushErrs := e.pushPending(ctx)
	result.Pushed = pushRes.Pushed
	result.Errors = append(result.Errors, pushErrs...)

	if !skipPull {
		result = e.pullAll(ctx, result)
	}

	result.FinishedAt = e.nowFunc()
	if len(result.Errors) > 0 {
		result.Status = StateError
	} else {
		result.Status = StateIdle
	}

	e.recordCycle(result, quiet)

	e.logger.Info("Sync cycle completed",
		"status", result.Status,
		"pushed", result.Pushed,
		"pulled", result.Pulled,
		"merged", result.Merged,
		"errors", len(result.Errors),
		"duration", result.FinishedAt.Sub(result.StartedAt))

	return result, nil
}

// pullAll забирает изменения всех таблиц. Таблицы независимы и
// тянутся параллельно: они трогают разные ключи локального хранилища
// и разные ресурсы сервера. Ошибка одной таблицы не прерывает
// остальные.
func (e *Engine) pullAll(ctx context.Context, result CycleResult) CycleResult {
	tables := make([]string, 0, len(e.tables))
	for table := range e.tables {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, table := range tables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()

			pullRes, err := e.pullTable(ctx, table)

			mu.Lock()
			defer mu.Unlock()

			result.Pulled += pullRes.Pulled
			result.Inserted += pullRes.Inserted
			result.Merged += pullRes.Merged

			if err != nil {
				result.Errors = append(result.Errors, SyncError{
					Table:   table,
					Message: fmt.Sprintf("pull failed: %v", err),
					Time:    e.nowFunc(),
				})
			}
		}(table)
	}

	wg.Wait()
	return result
}

// setState переводит движок в новое состояние, не затирая offline
func (e *Engine) setState(state State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateOffline {
		return
	}
	e.state = state
}

// recordCycle фиксирует итог цикла и уведомляет подписчиков
func (e *Engine) recordCycle(result CycleResult, quiet bool) {
	e.mu.Lock()

	for _, syncErr := range result.Errors {
		e.recentErrors = append(e.recentErrors, syncErr)
	}
	if len(e.recentErrors) > e.cfg.MaxRecentErrors {
		e.recentErrors = e.recentErrors[len(e.recentErrors)-e.cfg.MaxRecentErrors:]
	}

	if len(result.Errors) > 0 {
		e.lastError = result.Errors[len(result.Errors)-1].Message
	}

	if !quiet && e.state != StateOffline {
		e.state = result.Status
	}

	var listeners []func(CycleResult)
	if !quiet {
		listeners = make([]func(CycleResult), 0, len(e.listeners))
		for _, fn := range e.listeners {
			listeners = append(listeners, fn)
		}
	}
	e.mu.Unlock()

	// Подписчики зовутся вне мьютекса
	for _, fn := range listeners {
		fn(result)
	}
}

// OnCycleComplete подписывает callback на завершение циклов.
// Возвращает функцию отписки.
func (e *Engine) OnCycleComplete(fn func(CycleResult)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Status возвращает текущее состояние и последнюю ошибку
func (e *Engine) Status() (State, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.lastError
}

// RecentErrors возвращает ограниченный список последних ошибок
// синхронизации, новейшие в конце
func (e *Engine) RecentErrors() []SyncError {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]SyncError, len(e.recentErrors))
	copy(out, e.recentErrors)
	return out
}
