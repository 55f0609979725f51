package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseValue разбирает строковое значение аргумента: числа и booleans
// распознаются как JSON, всё прочее остаётся строкой
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// parseFields разбирает аргументы вида key=value в набор полей
func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field argument %q, expected key=value", arg)
		}
		fields[key] = parseValue(value)
	}
	return fields, nil
}
