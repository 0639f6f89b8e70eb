// Package template renders {{variable}} placeholders in prompt text and node values.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\s*\}\}`)

// NeedsTemplating reports whether text contains at least one placeholder.
func NeedsTemplating(text string) bool {
	return placeholder.MatchString(text)
}

// Render replaces every placeholder with the variable it names. Missing variables render empty.
func Render(text string, vars map[string]any) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]

		value, ok := Lookup(vars, path)
		if !ok || value == nil {
			return ""
		}

		return Stringify(value)
	})
}

// RenderValue renders string values and coerces the result into a JSON value, number, bool or string.
// Other values are returned untouched.
func RenderValue(value any, vars map[string]any) (any, error) {
	text, ok := value.(string)
	if !ok {
		return value, nil
	}

	if !NeedsTemplating(text) {
		return value, nil
	}

	return Coerce(Render(text, vars))
}

// Coerce converts rendered text into the most specific value it represents.
func Coerce(rendered string) (any, error) {
	result := strings.TrimSpace(rendered)

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err != nil {
			return result, fmt.Errorf("failed to parse json '%s': %w", result, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// Lookup resolves a dotted path through nested maps.
func Lookup(vars map[string]any, path string) (any, bool) {
	if vars == nil {
		return nil, false
	}

	if value, ok := vars[path]; ok {
		return value, true
	}

	parts := strings.Split(path, ".")

	var current any = vars

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Stringify formats a variable the way callers hear it.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
