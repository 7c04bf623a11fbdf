package util

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat coerces a decoded JSON value to a number. Handles the shapes a
// language-model response can legally produce: numbers, numeric strings
// and json.Number. Anything else reports false.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// CoerceQuantity truncates a quantity to a whole count. Non-positive
// quantities contribute nothing.
func CoerceQuantity(qty float64) (int, bool) {
	if qty <= 0 {
		return 0, false
	}
	return int(qty), true
}
