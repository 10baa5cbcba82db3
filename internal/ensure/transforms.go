package ensure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dario.cat/mergo"
)

// Static replaces the file with content.
func Static(content string) Transform {
	return func(context.Context, string) (string, error) {
		return content, nil
	}
}

// IfAbsent writes content only when the file is empty or missing, leaving
// user edits alone.
func IfAbsent(content string) Transform {
	return func(_ context.Context, prev string) (string, error) {
		if strings.TrimSpace(prev) == "" {
			return content, nil
		}
		return prev, nil
	}
}

// MergeJSON deep-merges patch over the previous JSON object. Values in patch
// win; keys only present on disk are kept.
func MergeJSON(patch map[string]interface{}) Transform {
	return func(_ context.Context, prev string) (string, error) {
		current, err := DecodeJSONObject(prev)
		if err != nil {
			return "", err
		}

		if err := mergo.Merge(&current, clone(patch), mergo.WithOverride); err != nil {
			return "", fmt.Errorf("merge json: %w", err)
		}

		return EncodeJSON(current)
	}
}

// UnionLines appends every line not already present, keeping existing order.
func UnionLines(lines ...string) Transform {
	return func(_ context.Context, prev string) (string, error) {
		existing := strings.Split(strings.TrimRight(prev, "\n"), "\n")
		if prev == "" {
			existing = nil
		}

		seen := make(map[string]bool, len(existing))
		for _, line := range existing {
			seen[strings.TrimSpace(line)] = true
		}

		out := existing
		for _, line := range lines {
			if seen[line] {
				continue
			}
			seen[line] = true
			out = append(out, line)
		}

		if len(out) == 0 {
			return "", nil
		}
		return strings.Join(out, "\n") + "\n", nil
	}
}

// DecodeJSONObject parses a JSON object; blank input yields an empty map.
func DecodeJSONObject(raw string) (map[string]interface{}, error) {
	obj := make(map[string]interface{})
	if strings.TrimSpace(raw) == "" {
		return obj, nil
	}

	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if obj == nil {
		obj = make(map[string]interface{})
	}
	return obj, nil
}

// EncodeJSON renders v with two-space indentation and a trailing newline.
func EncodeJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return buf.String(), nil
}

// clone copies nested maps so merges never alias a caller's patch.
func clone(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if m, ok := v.(map[string]interface{}); ok {
			out[k] = clone(m)
			continue
		}
		out[k] = v
	}
	return out
}
