// Package redact masks secret-bearing values before they reach logs or
// the audit sink.
package redact

import "strings"

const mask = "***"

var secretFragments = []string{
	"token",
	"secret",
	"password",
	"passwd",
	"api_key",
	"apikey",
	"authorization",
	"cookie",
	"credential",
}

// Metadata returns a copy of metadata with every value under a
// secret-bearing key replaced by a mask. Nested maps and slices are
// walked; the input is never mutated. A nil map stays nil.
func Metadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if secretKey(key) && value != nil {
			out[key] = mask
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Metadata(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}

func secretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range secretFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
