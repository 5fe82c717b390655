package common

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/calendaragent/internal/timeutil"
)

// String returns a trimmed string argument, or "".
func String(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// OptionalString returns a pointer when key is present.
func OptionalString(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	return &v
}

// RequiredString returns an error when the argument is missing or empty.
func RequiredString(args map[string]any, key string) (string, error) {
	v := String(args, key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// Bool accepts JSON booleans and "true"/"false" strings.
func Bool(args map[string]any, key string, def bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int accepts JSON numbers and numeric strings.
func Int(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Float accepts JSON numbers and numeric strings.
func Float(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// StringSlice accepts an array of strings or a comma-separated string.
func StringSlice(args map[string]any, key string) []string {
	var out []string
	switch v := args[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// HasKey reports whether key was supplied.
func HasKey(args map[string]any, key string) bool {
	_, ok := args[key]
	return ok
}

// Time parses an RFC3339, relative ("tomorrow 3pm", "明天下午3点") or
// free-form date argument against ref. ok is false when the key is absent.
func Time(args map[string]any, key string, ref time.Time) (t time.Time, ok bool, err error) {
	raw := String(args, key)
	if raw == "" {
		return time.Time{}, false, nil
	}
	parsed, parsedOK := timeutil.Parse(ref, raw)
	if !parsedOK {
		return time.Time{}, true, fmt.Errorf("invalid %s %q: use RFC3339 (2025-01-15T14:00:00Z) or a phrase like \"tomorrow 14:00\"", key, raw)
	}
	return parsed, true, nil
}

// RequiredTime is Time with a presence check.
func RequiredTime(args map[string]any, key string, ref time.Time) (time.Time, error) {
	t, ok, err := Time(args, key, ref)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	return t, nil
}

// Lines accepts an array of strings, a JSON array string or newline
// separated text. Commas are kept, so sentences survive.
func Lines(args map[string]any, key string) []string {
	if raw, ok := args[key].(string); ok {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "[") {
			var items []string
			if json.Unmarshal([]byte(raw), &items) == nil {
				return StringSlice(map[string]any{key: items}, key)
			}
		}
		var out []string
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
			if line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	return StringSlice(args, key)
}

// Decode unmarshals an argument into out. Strings are parsed as JSON, other
// values are re-encoded first so structured arguments work too. ok is false
// when the key is absent.
func Decode(args map[string]any, key string, out any) (ok bool, err error) {
	v, present := args[key]
	if !present || v == nil {
		return false, nil
	}
	var data []byte
	if s, isString := v.(string); isString {
		if strings.TrimSpace(s) == "" {
			return false, nil
		}
		data = []byte(s)
	} else if data, err = json.Marshal(v); err != nil {
		return true, fmt.Errorf("invalid %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("invalid %s: %w", key, err)
	}
	return true, nil
}
