package models

import "time"

// Record представляет одну строку приложения в локальном хранилище.
// Системные поля ведутся движком синхронизации; прикладные поля лежат
// в Fields и для движка непрозрачны (кроме полей из TableConfig).
type Record struct {
	CreatedAt time.Time      `json:"created_at"` // CreatedAt время создания записи
	UpdatedAt time.Time      `json:"updated_at"` // UpdatedAt время последнего изменения (wall clock)
	Fields    map[string]any `json:"fields"`     // Fields прикладные поля строки
	ID        string         `json:"id"`         // ID уникальный идентификатор записи (UUID)
	UserID    string         `json:"user_id"`    // UserID идентификатор владельца строки
	DeviceID  string         `json:"device_id"`  // DeviceID устройство, записавшее эту версию
	Version   int64          `json:"version"`    // Version локальный счетчик применённых изменений, не уходит на сервер
	Deleted   bool           `json:"deleted"`    // Deleted флаг tombstone (soft delete)
}

// NewerThan определяет, какая из двух версий записи новее.
// 1. Сначала сравнивается UpdatedAt (больший выигрывает)
// 2. При равных UpdatedAt сравнивается DeviceID (лексикографически)
// Порядок тотальный и детерминированный на всех устройствах.
func (r *Record) NewerThan(other *Record) bool {
	if r.UpdatedAt.After(other.UpdatedAt) {
		return true
	}
	if r.UpdatedAt.Before(other.UpdatedAt) {
		return false
	}
	return r.DeviceID > other.DeviceID
}

// Clone создает глубокую копию записи.
func (r *Record) Clone() *Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}

	return &Record{
		ID:        r.ID,
		UserID:    r.UserID,
		DeviceID:  r.DeviceID,
		Fields:    fields,
		Version:   r.Version,
		Deleted:   r.Deleted,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
