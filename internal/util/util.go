package util

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// IntFrom coerces JSON-decoded numeric values to int. Non-numeric values
// (strings, nil, bools) yield zero.
func IntFrom(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

// ToBool is strict: only a real bool true is true. String "true" or numeric 1
// coming from loosely typed request payloads stay false.
func ToBool(v any) bool {
	b, _ := v.(bool)
	return b
}
