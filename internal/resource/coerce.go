package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var errCoerce = errors.New("cannot coerce value")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Coerce converts raw, untyped input (query strings, decoded JSON) into the
// canonical Go value for the field's type. Maps are only accepted by Object
// fields, so an operator document can never stand in for a scalar.
func Coerce(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.Type {
	case String:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected %s", errCoerce, f.Type)
		}
		if f.Trim {
			s = strings.TrimSpace(s)
		}
		if f.Lower {
			s = strings.ToLower(s)
		}
		return s, nil
	case Number:
		return toFloat(raw)
	case Integer:
		v, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: expected whole number", errCoerce)
		}
		if v < math.MinInt64 || v >= -math.MinInt64 {
			return nil, fmt.Errorf("%w: whole number out of range", errCoerce)
		}
		return int64(v), nil
	case Bool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: expected boolean", errCoerce)
			}
			return b, nil
		}
		return nil, fmt.Errorf("%w: expected boolean", errCoerce)
	case Time:
		return toTime(raw)
	case StringList:
		items, err := toList(raw)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: expected list of strings", errCoerce)
			}
			if f.Trim {
				s = strings.TrimSpace(s)
			}
			out = append(out, s)
		}
		return out, nil
	case TimeList:
		items, err := toList(raw)
		if err != nil {
			return nil, err
		}
		out := make([]time.Time, 0, len(items))
		for _, item := range items {
			t, err := toTime(item)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	case Object:
		switch raw.(type) {
		case map[string]any, []any:
			return raw, nil
		}
		return nil, fmt.Errorf("%w: expected object", errCoerce)
	}
	return nil, fmt.Errorf("%w: unsupported field type", errCoerce)
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: expected number", errCoerce)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: expected number", errCoerce)
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: expected date", errCoerce)
}

func toList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []time.Time:
		out := make([]any, len(v))
		for i, t := range v {
			out[i] = t
		}
		return out, nil
	case string:
		return []any{v}, nil
	}
	return nil, fmt.Errorf("%w: expected list", errCoerce)
}
