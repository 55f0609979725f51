package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat(t *testing.T) {
	assert.InDelta(t, 1.5, toFloat(1.5), 1e-9)
	assert.InDelta(t, 3.0, toFloat(int(3)), 1e-9)
	assert.InDelta(t, 4.0, toFloat(int64(4)), 1e-9)
	assert.InDelta(t, 0.0, toFloat("nope"), 1e-9)
	assert.InDelta(t, 0.0, toFloat(nil), 1e-9)
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		a, b     any
		name     string
		expected bool
	}{
		{name: "equal strings", a: "x", b: "x", expected: true},
		{name: "different strings", a: "x", b: "y", expected: false},
		{name: "int vs float same value", a: int64(5), b: 5.0, expected: true},
		{name: "different numbers", a: 5.0, b: 6.0, expected: false},
		{name: "bools", a: true, b: true, expected: true},
		{name: "nil vs nil", a: nil, b: nil, expected: true},
		{name: "nil vs value", a: nil, b: "x", expected: false},
		{name: "maps deep equal", a: map[string]any{"k": "v"}, b: map[string]any{"k": "v"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, valuesEqual(tt.a, tt.b))
		})
	}
}
