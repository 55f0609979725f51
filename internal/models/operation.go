package models

import "time"

// OpType тип операции в очереди синхронизации
type OpType string

// Типы операций
const (
	OpCreate    OpType = "create"    // создание записи, Value содержит полный набор полей
	OpSet       OpType = "set"       // установка значения поля (или нескольких после коалесценции)
	OpIncrement OpType = "increment" // аддитивное изменение числового поля, Value содержит дельту
	OpDelete    OpType = "delete"    // soft delete записи
)

// Operation представляет одно запланированное намерение (intent) в
// durable-очереди. Записывается до возврата из мутирующего вызова
// (write-ahead), удаляется после подтверждения сервером.
type Operation struct {
	EnqueuedAt  time.Time `json:"enqueued_at" msgpack:"enqueued_at"`     // EnqueuedAt время постановки в очередь
	NextRetryAt time.Time `json:"next_retry_at" msgpack:"next_retry_at"` // NextRetryAt момент следующей попытки, zero = можно сразу
	Value       any       `json:"value" msgpack:"value"`                 // Value полезная нагрузка: map[string]any для create/сводного set, дельта для increment
	Table       string    `json:"table" msgpack:"table"`                 // Table имя таблицы
	EntityID    string    `json:"entity_id" msgpack:"entity_id"`         // EntityID идентификатор записи (UUID)
	Field       string    `json:"field" msgpack:"field"`                 // Field имя поля для set/increment, пусто для create/delete
	ID          uint64    `json:"id" msgpack:"id"`                       // ID монотонный локальный номер (bbolt NextSequence)
	Retries     int       `json:"retries" msgpack:"retries"`             // Retries количество неудачных попыток отправки
	Type        OpType    `json:"type" msgpack:"type"`                   // Type тип операции
}

// Eligible сообщает, истёк ли backoff операции к моменту now.
func (o *Operation) Eligible(now time.Time) bool {
	return o.NextRetryAt.IsZero() || !o.NextRetryAt.After(now)
}

// Delta возвращает дельту increment-операции. Числовые значения
// приходят из JSON как float64, из msgpack как int64/float64.
func (o *Operation) Delta() float64 {
	switch v := o.Value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 0
}

// EntityKey идентифицирует группу операций одной записи.
type EntityKey struct {
	Table    string
	EntityID string
}
