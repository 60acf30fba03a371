package tools

import (
	"encoding/json"
	"strconv"
	"strings"

	"geminilab/pkg/errors"
)

// StringArg returns args[key] as a string, or def when absent or empty
func StringArg(args map[string]any, key, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// RequiredString returns args[key] or a validation error
func RequiredString(args map[string]any, key string) (string, error) {
	s := StringArg(args, key, "")
	if s == "" {
		return "", errors.NewValidationError(key, "required", args[key])
	}
	return s, nil
}

// NumberArg returns args[key] as a float64. Function call arguments arrive as
// JSON numbers, but ints and numeric strings are accepted too.
func NumberArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, errors.NewValidationError(key, "required", nil)
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, errors.NewValidationError(key, "not a number", v)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errors.NewValidationError(key, "not a number", v)
		}
		return f, nil
	default:
		return 0, errors.NewValidationError(key, "not a number", v)
	}
}
