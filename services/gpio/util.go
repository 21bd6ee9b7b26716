// services/gpio/util.go
package gpio

import (
	"encoding/json"
	"strings"
)

func parsePull(v any) Pull {
	switch strings.ToLower(asString(v)) {
	case "up", "pullup":
		return PullUp
	case "down", "pulldown":
		return PullDown
	default:
		return PullNone
	}
}

func pullString(p Pull) string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func edgeString(e Edge) string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// ParseEdge converts a string to an Edge.
// Accepts: "rising", "falling", "both", "none" (case-insensitive).
func ParseEdge(s string) (Edge, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising":
		return EdgeRising, true
	case "falling":
		return EdgeFalling, true
	case "both":
		return EdgeBoth, true
	case "", "none":
		return EdgeNone, true
	}
	return EdgeNone, false
}

// wantBool extracts a boolean from either a map payload (by key) or a scalar.
// Recognises true/false, 1/0, on/off, yes/no (case-insensitive).
func wantBool(src any, key string) bool {
	if m, ok := src.(map[string]any); ok {
		if v, ok := m[key]; ok {
			return wantBool(v, "")
		}
		return false
	}
	switch v := src.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case uint32:
		return v != 0
	case float64:
		return int(v) != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}

func mapFromAny(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// decodeJSON converts a bus payload (raw JSON or decoded values) into T.
func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		// Accept maps, structs, numbers… by marshaling then decoding to T.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
