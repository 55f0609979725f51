package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

//go:generate moq -out backend_mock.go . Backend

// Backend определяет интерфейс удалённого backend'а.
// Pull возвращает строки таблицы, изменённые после курсора (фильтрация
// на стороне сервера, по владельцу). Push применяет коалесцированные
// изменения одной или нескольких записей. Health - сигнал доступности.
type Backend interface {
	Pull(ctx context.Context, table string, since int64) ([]api.Row, error)
	Push(ctx context.Context, table string, changes []api.Change) error
	Health(ctx context.Context) error
}

// PermanentError помечает ошибку push'а как окончательный отказ
// сервера (несовпадение схемы, чужая запись). Такие операции не
// ретраятся бесконечно, но и не отбрасываются молча.
type PermanentError interface {
	Permanent() bool
}

// Store объединяет всё локальное состояние движка: записи, очередь
// операций, курсоры, история конфликтов и метаданные устройства.
type Store interface {
	storage.EntityStorage
	storage.QueueStorage
	storage.CursorStorage
	storage.ConflictStorage
	storage.MetadataStorage
}

// Config конфигурация движка синхронизации.
// Все поля неизменяемы после NewEngine.
type Config struct {
	// Tables политики синхронизируемых таблиц
	Tables []models.TableConfig

	// BackoffBase начальная задержка повтора после неудачного push
	BackoffBase time.Duration
	// BackoffMax потолок задержки повтора
	BackoffMax time.Duration
	// BackoffFactor множитель экспоненциального роста задержки
	BackoffFactor float64

	// MaxRetries порог, после которого операция считается постоянно
	// отказанной и пропускается (0 = ретраить бесконечно).
	// Операция при этом остаётся в очереди.
	MaxRetries int

	// RecentTTL время, в течение которого запись считается
	// "только что изменённой локально" (подавление эха realtime)
	RecentTTL time.Duration

	// MaxTombstoneAge возраст tombstone, после которого запись
	// вычищается из локального хранилища. Устройство, бывшее offline
	// дольше этого срока, может воскресить удалённую запись -
	// известный пробел консистентности, оставлен как есть.
	MaxTombstoneAge time.Duration

	// ConflictHistoryLen максимальная длина истории конфликтов
	ConflictHistoryLen int

	// MaxRecentErrors размер списка последних ошибок синхронизации
	MaxRecentErrors int

	// DebounceInterval окно дебаунса входящих триггеров
	DebounceInterval time.Duration

	// SyncInterval период полного цикла по таймеру
	SyncInterval time.Duration

	// TombstoneSweepInterval период GC tombstone'ов
	TombstoneSweepInterval time.Duration

	// MinAwayDuration минимальное отсутствие, после которого возврат
	// видимости (visibility) запускает цикл
	MinAwayDuration time.Duration
}

// withDefaults возвращает копию конфигурации с заполненными
// значениями по умолчанию.
func (c Config) withDefaults() Config {
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 2
	}
	if c.RecentTTL <= 0 {
		c.RecentTTL = 10 * time.Second
	}
	if c.MaxTombstoneAge <= 0 {
		c.MaxTombstoneAge = 7 * 24 * time.Hour
	}
	if c.ConflictHistoryLen <= 0 {
		c.ConflictHistoryLen = 200
	}
	if c.MaxRecentErrors <= 0 {
		c.MaxRecentErrors = 20
	}
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = 500 * time.Millisecond
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = 5 * time.Minute
	}
	if c.TombstoneSweepInterval <= 0 {
		c.TombstoneSweepInterval = time.Hour
	}
	if c.MinAwayDuration <= 0 {
		c.MinAwayDuration = 30 * time.Second
	}
	return c
}

// Engine движок offline-first синхронизации: durable-очередь
// намерений, коалесценция, push/pull и разрешение конфликтов.
// Локальные записи применяются немедленно; Engine в фоне сводит их
// с сервером, не теряя конкурентные правки других устройств.
type Engine struct {
	cfg      Config
	tables   map[string]*models.TableConfig
	store    Store
	backend  Backend
	resolver *resolver
	recent   *recentTracker
	logger   *slog.Logger

	userID   string
	deviceID string

	// nowFunc подменяется в тестах
	nowFunc func() time.Time

	// cycleMu глобальный sync lock: не более одного push+pull цикла
	cycleMu sync.Mutex

	// triggerCh единственный слот отложенного цикла: триггер во время
	// активного цикла коалесцируется в "прогнать ещё раз"
	triggerCh chan string

	mu           sync.Mutex
	state        State
	online       bool
	lastError    string
	recentErrors []SyncError
	listeners    map[int]func(CycleResult)
	nextListener int
}

// NewEngine создает движок. Состояние курсоров и очереди берётся из
// store; deviceID читается (или создаётся) там же.
func NewEngine(ctx context.Context, cfg Config, store Store, backend Backend, userID string, logger *slog.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()

	deviceID, err := store.GetDeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	tables := make(map[string]*models.TableConfig, len(cfg.Tables))
	for i := range cfg.Tables {
		tables[cfg.Tables[i].Table] = &cfg.Tables[i]
	}

	return &Engine{
		cfg:     cfg,
		tables:  tables,
		store:   store,
		backend: backend,
		resolver: &resolver{
			conflicts:  store,
			historyLen: cfg.ConflictHistoryLen,
			logger:     logger,
		},
		recent:    newRecentTracker(cfg.RecentTTL),
		logger:    logger,
		userID:    userID,
		deviceID:  deviceID,
		nowFunc:   time.Now,
		triggerCh: make(chan string, 1),
		state:     StateIdle,
		online:    true,
		listeners: make(map[int]func(CycleResult)),
	}, nil
}

// DeviceID возвращает постоянный идентификатор этого устройства.
func (e *Engine) DeviceID() string {
	return e.deviceID
}

// tableConfig возвращает политику таблицы или пустую политику для
// незнакомой таблицы.
func (e *Engine) tableConfig(table string) *models.TableConfig {
	if cfg, ok := e.tables[table]; ok {
		return cfg
	}
	return &models.TableConfig{Table: table}
}
