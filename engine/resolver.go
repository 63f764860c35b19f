package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// refPattern matches ${taskId.path...} references inside parameter strings.
var refPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveParams recursively resolves variable references in params against
// prior task results. The input is never mutated; a resolved copy is
// returned. Params with no references come back deep-equal to the input.
func ResolveParams(params map[string]any, results map[string]*TaskResult) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}
	resolved, err := resolveValue(params, results)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]any), nil
}

func resolveValue(value any, results map[string]*TaskResult) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, results)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			resolved, err := resolveValue(elem, results)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			resolved, err := resolveValue(elem, results)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		// Primitives pass through unchanged.
		return value, nil
	}
}

// resolveString handles the two substitution forms: a string that is exactly
// one reference is replaced by the referenced value with its type preserved;
// a string embedding references among other text gets each reference coerced
// to its textual form.
func resolveString(s string, results map[string]*TaskResult) (any, error) {
	match := refPattern.FindStringSubmatch(s)
	if match == nil {
		return s, nil
	}
	if match[0] == s {
		return resolvePath(match[1], results)
	}

	var resolveErr error
	replaced := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		if resolveErr != nil {
			return ref
		}
		path := ref[2 : len(ref)-1]
		value, err := resolvePath(path, results)
		if err != nil {
			resolveErr = err
			return ref
		}
		return coerceText(value)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return replaced, nil
}

// resolvePath splits a reference path on dots and walks it against prior
// results. The first segment is a task id; at least one further segment is
// required. The walk starts at an envelope exposing taskId, status, and
// result, so ${a.result.userId} reaches into task a's payload.
func resolvePath(path string, results map[string]*TaskResult) (any, error) {
	segments := strings.Split(path, ".")
	if len(segments) < 2 {
		return nil, &VariableResolutionError{
			Reference: path,
			Reason:    "variable must reference at least a task id and a field",
		}
	}

	taskID := segments[0]
	result, ok := results[taskID]
	if !ok {
		return nil, &VariableResolutionError{
			Reference: path,
			Reason:    fmt.Sprintf("task %q not found", taskID),
		}
	}
	if result.Status != StatusSuccess {
		return nil, &VariableResolutionError{
			Reference: path,
			Reason:    fmt.Sprintf("task %q did not succeed (status: %s)", taskID, result.Status),
		}
	}

	var current any = map[string]any{
		"taskId": result.TaskID,
		"status": result.Status,
		"result": result.Result,
	}

	for _, segment := range segments[1:] {
		obj, ok := current.(map[string]any)
		if !ok || obj == nil {
			return nil, &VariableResolutionError{
				Reference: path,
				Reason:    fmt.Sprintf("segment %q of task %q is not an object", segment, taskID),
			}
		}
		next, ok := obj[segment]
		if !ok {
			return nil, &VariableResolutionError{
				Reference: path,
				Reason:    fmt.Sprintf("field %q is undefined on task %q", segment, taskID),
			}
		}
		current = next
	}

	return current, nil
}

// coerceText renders a resolved value for embedding inside a larger string.
// Objects and sequences serialize to canonical JSON.
func coerceText(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
