// Package secrets keeps credentials out of logs and printed output.
package secrets

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Redacted replaces the value of any field recognised as a secret.
const Redacted = "[REDACTED]"

// DefaultSecretPatterns contains the default patterns used to identify
// field and header names whose values should be treated as secrets.
var DefaultSecretPatterns = []string{
	"TOKEN",
	"PASSWORD",
	"SECRET",
	"AUTHORIZATION",
	"COOKIE",
	"API_KEY",
	"APIKEY",
}

// IsSecretName reports whether name matches one of the default patterns.
// Matching is case-insensitive and ignores dashes.
func IsSecretName(name string) bool {
	return IsSecretNameWithPatterns(name, DefaultSecretPatterns)
}

// IsSecretNameWithPatterns reports whether name matches any of patterns.
func IsSecretNameWithPatterns(name string, patterns []string) bool {
	upper := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for _, pattern := range patterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// RedactJSON returns body with every secret field value replaced by
// Redacted, at any depth. Bodies that are not JSON are returned unchanged.
func RedactJSON(body []byte) []byte {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}
	if !redact(doc) {
		return body
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return body
	}
	return out
}

// redact rewrites v in place and reports whether anything changed.
func redact(v any) bool {
	changed := false
	switch node := v.(type) {
	case map[string]any:
		for key, value := range node {
			if IsSecretName(key) {
				if _, isString := value.(string); isString {
					node[key] = Redacted
					changed = true
					continue
				}
			}
			if redact(value) {
				changed = true
			}
		}
	case []any:
		for _, item := range node {
			if redact(item) {
				changed = true
			}
		}
	}
	return changed
}

// RedactHeaders flattens h for logging with secret header values replaced.
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if IsSecretName(name) {
			out[name] = Redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
