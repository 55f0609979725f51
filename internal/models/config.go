package models

// TableConfig политика синхронизации одной таблицы.
// Неизменяема после инициализации движка; резолвер получает её по
// ссылке, без динамических lookup'ов на каждый вызов.
type TableConfig struct {
	Table string

	// ExcludeFromConflict поля, которые никогда не считаются
	// конфликтными: всегда берётся более свежее значение, без аудита.
	ExcludeFromConflict []string

	// NumericMergeFields поля, разрешаемые аддитивным слиянием
	// (суммирование независимых дельт) вместо last-write-wins.
	NumericMergeFields []string
}

// IsExcluded проверяет, исключено ли поле из разрешения конфликтов.
func (c *TableConfig) IsExcluded(field string) bool {
	for _, f := range c.ExcludeFromConflict {
		if f == field {
			return true
		}
	}
	return false
}

// IsNumericMerge проверяет, объявлено ли поле аддитивным.
func (c *TableConfig) IsNumericMerge(field string) bool {
	for _, f := range c.NumericMergeFields {
		if f == field {
			return true
		}
	}
	return false
}
