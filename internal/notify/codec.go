package notify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChannelName maps a table to a broker channel name.
func ChannelName(prefix, table string) string {
	return prefix + strings.ToLower(table)
}

// Encode serializes ev for broker payloads.
func Encode(ev ChangeEvent) (string, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode change event: %w", err)
	}
	return string(b), nil
}

// Decode parses a broker payload for table. An empty payload still counts as a
// change; missing fields fall back to table, schema and "update".
func Decode(payload, schema, table string) ChangeEvent {
	ev := ChangeEvent{}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			logger.Warn("undecodable change payload", "table", table, "err", err)
			ev = ChangeEvent{}
		}
	}
	if !ev.Event.Valid() {
		ev.Event = Update
	}
	if ev.Schema == "" {
		ev.Schema = schema
	}
	if ev.Table == "" {
		ev.Table = table
	}
	return ev
}
