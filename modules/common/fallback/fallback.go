package fallback

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Helpers for pulling typed values out of loosely-shaped AI output.
// Planner and chat responses are not guaranteed to use consistent field
// names or number shapes, so every extraction goes through these.

// SafeString returns a trimmed string or the provided fallback.
func SafeString(value interface{}, fallbackValue string) string {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return fallbackValue
}

// SafeInt converts common number shapes into int with a fallback.
func SafeInt(value interface{}, fallbackValue int) int {
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case float32:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case json.Number:
		if n, err := strconv.Atoi(v.String()); err == nil && n > 0 {
			return n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallbackValue
}

// SafeFloat converts common number shapes into float64 with a fallback.
func SafeFloat(value interface{}, fallbackValue float64) float64 {
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return v
		}
	case float32:
		if v > 0 {
			return float64(v)
		}
	case int:
		if v > 0 {
			return float64(v)
		}
	case json.Number:
		if f, err := strconv.ParseFloat(v.String(), 64); err == nil && f > 0 {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			return f
		}
	}
	return fallbackValue
}

// SafeBool reads a bool or bool-ish string.
func SafeBool(value interface{}, fallbackValue bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallbackValue
}

// SafeMap returns the value as a map, or nil.
func SafeMap(value interface{}) map[string]interface{} {
	if m, ok := value.(map[string]interface{}); ok {
		return m
	}
	return nil
}

// SafeSlice returns the value as a slice, or nil.
func SafeSlice(value interface{}) []interface{} {
	if s, ok := value.([]interface{}); ok {
		return s
	}
	return nil
}

// SafeStringSlice collects non-empty strings out of a loose slice.
func SafeStringSlice(value interface{}) []string {
	var out []string
	for _, item := range SafeSlice(value) {
		if s := SafeString(item, ""); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FirstString returns the first non-empty string among aliases in m.
// Planner output drifts between naming conventions ("image_url" vs
// "imageUrl"), so lookups accept every known alias.
func FirstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := SafeString(m[key], ""); s != "" {
			return s
		}
	}
	return ""
}

// FirstValue returns the first present value among aliases in m.
func FirstValue(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	return nil, false
}
