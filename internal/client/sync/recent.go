package sync

import (
	"sync"
	"time"

	"github.com/iudanet/offsync/internal/models"
)

// recentTracker помнит записи, изменённые локально в последние TTL
// секунд. Realtime-канал спрашивает его, чтобы не применять эхо
// собственных изменений, вернувшееся с сервера.
type recentTracker struct {
	mu       sync.Mutex
	ttl      time.Duration
	deadline map[models.EntityKey]time.Time
	nowFunc  func() time.Time
}

func newRecentTracker(ttl time.Duration) *recentTracker {
	return &recentTracker{
		ttl:      ttl,
		deadline: make(map[models.EntityKey]time.Time),
		nowFunc:  time.Now,
	}
}

// Mark отмечает запись как только что изменённую локально
func (t *recentTracker) Mark(table, entityID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	t.deadline[models.EntityKey{Table: table, EntityID: entityID}] = now.Add(t.ttl)

	// Попутная чистка истекших отметок, карта не растёт бесконечно
	for key, dl := range t.deadline {
		if dl.Before(now) {
			delete(t.deadline, key)
		}
	}
}

// Recent проверяет, изменялась ли запись локально в пределах TTL
func (t *recentTracker) Recent(table, entityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	dl, ok := t.deadline[models.EntityKey{Table: table, EntityID: entityID}]
	return ok && !dl.Before(t.nowFunc())
}
