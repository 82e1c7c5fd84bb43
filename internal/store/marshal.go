package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalJSON converts v to JSON TEXT for storage. Map keys come out
// sorted, so equal values give byte-identical rows.
func marshalJSON(what string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // cut code contains && and <
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func marshalStats(stats map[string]int) (string, error) {
	if stats == nil {
		stats = map[string]int{}
	}
	return marshalJSON("stats", stats)
}

func marshalColumns(cols []string) (string, error) {
	if cols == nil {
		cols = []string{}
	}
	return marshalJSON("columns", cols)
}

func unmarshalStats(data string) (map[string]int, error) {
	out := map[string]int{}
	if data == "" || data == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return out, nil
}

func unmarshalColumns(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	return out, nil
}
