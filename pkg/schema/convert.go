package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ConvertValue turns an author-supplied string into the JSON shape it denotes: an integer,
// a float, a boolean, an object or array, or the string itself.
func ConvertValue(raw string) any {
	s := strings.TrimSpace(raw)

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}

	switch s {
	case "true":
		return true
	case "false":
		return false
	}

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		var structured any
		if err := json.Unmarshal([]byte(s), &structured); err == nil {
			return structured
		}
	}

	return raw
}

// ToFloat widens any numeric value, or a numeric string, to float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt64 accepts integral numbers and integer strings.
func ToInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}

		return int64(v), true
	case json.Number:
		i, err := v.Int64()

		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)

		return i, err == nil
	default:
		return 0, false
	}
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", time.DateOnly}

// ToTime accepts a time.Time, an ISO-8601 string or epoch milliseconds.
func ToTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}

		return *v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}

		return time.Time{}, false
	default:
		millis, ok := ToInt64(value)
		if !ok {
			return time.Time{}, false
		}

		return time.UnixMilli(millis).UTC(), true
	}
}
