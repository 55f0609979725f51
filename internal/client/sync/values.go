package sync

import "reflect"

// toFloat приводит произвольное числовое значение к float64.
// Значения приходят из трёх кодеков: JSON (float64), msgpack
// (int64/uint64/float64) и из кода приложения (int, float).
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

// isNumeric сообщает, является ли значение числом любого Go-типа
func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// valuesEqual сравнивает значения полей с нормализацией чисел:
// одно и то же значение могло пройти через разные кодеки.
func valuesEqual(a, b any) bool {
	if isNumeric(a) && isNumeric(b) {
		return toFloat(a) == toFloat(b)
	}
	return reflect.DeepEqual(a, b)
}
