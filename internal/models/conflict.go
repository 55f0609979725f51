package models

import "time"

// Winner варианты исхода разрешения конфликта
const (
	WinnerLocal  = "local"
	WinnerRemote = "remote"
	WinnerMerged = "merged"
)

// Имена стратегий разрешения, попадают в аудит как есть
const (
	StrategyLocalPending  = "local_pending"
	StrategyDeleteWins    = "delete_wins"
	StrategyLastWriteWins = "last_write_wins"
	StrategyAdditiveMerge = "additive_merge"
)

// ConflictRecord одна запись аудита разрешения конфликта.
// История append-only с ограниченной длиной, только для диагностики:
// на поведение движка не влияет.
type ConflictRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	LocalValue    any       `json:"local_value"`
	RemoteValue   any       `json:"remote_value"`
	ResolvedValue any       `json:"resolved_value"`
	EntityID      string    `json:"entity_id"`
	EntityType    string    `json:"entity_type"` // имя таблицы
	Field         string    `json:"field"`
	Winner        string    `json:"winner"`   // local | remote | merged
	Strategy      string    `json:"strategy"` // имя сработавшего правила
}
