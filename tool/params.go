package tool

import (
	"fmt"

	apperrors "github.com/dwasnwk/oktyv/errors"
)

// StringParam returns a required string parameter.
func StringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", apperrors.MissingField(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", apperrors.InvalidInput(key, fmt.Sprintf("expected string, got %T", v))
	}
	return s, nil
}

// OptStringParam returns an optional string parameter with a default.
func OptStringParam(params map[string]any, key, def string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", apperrors.InvalidInput(key, fmt.Sprintf("expected string, got %T", v))
	}
	return s, nil
}

// OptBoolParam returns an optional boolean parameter with a default.
func OptBoolParam(params map[string]any, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, apperrors.InvalidInput(key, fmt.Sprintf("expected boolean, got %T", v))
	}
	return b, nil
}

// OptIntParam returns an optional integer parameter with a default. JSON
// numbers decode as float64, so both forms are accepted.
func OptIntParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, apperrors.InvalidInput(key, fmt.Sprintf("expected number, got %T", v))
	}
}

// OptMapParam returns an optional mapping parameter.
func OptMapParam(params map[string]any, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.InvalidInput(key, fmt.Sprintf("expected object, got %T", v))
	}
	return m, nil
}

// OptStringSliceParam returns an optional list-of-strings parameter.
func OptStringSliceParam(params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, apperrors.InvalidInput(key, fmt.Sprintf("expected array, got %T", v))
	}
	out := make([]string, 0, len(raw))
	for i, elem := range raw {
		s, ok := elem.(string)
		if !ok {
			return nil, apperrors.InvalidInput(key, fmt.Sprintf("element %d: expected string, got %T", i, elem))
		}
		out = append(out, s)
	}
	return out, nil
}
