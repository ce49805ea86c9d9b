package bluebubbles

import (
	"encoding/json"
	"strconv"
	"strings"
)

// record is one decoded JSON object from a webhook envelope. BlueBubbles
// builds and proxies (Tasker flows, server forwarders) disagree on where the
// message body lives and occasionally double-encode sub-records as JSON
// strings, so every accessor re-parses string values and tolerates missing
// or mistyped fields instead of failing.
type record map[string]any

// recordFrom converts a raw JSON value into a record. String values are
// parsed as JSON objects; anything that is not an object yields ok=false.
func recordFrom(value any) (record, bool) {
	switch v := value.(type) {
	case map[string]any:
		return record(v), true
	case record:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		if !strings.HasPrefix(trimmed, "{") {
			return nil, false
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return nil, false
		}
		return record(parsed), true
	default:
		return nil, false
	}
}

// str returns the first present string value among keys.
func (r record) str(keys ...string) (string, bool) {
	for _, key := range keys {
		if raw, ok := r[key]; ok {
			if s, ok := raw.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// num returns the first present numeric value among keys. Numeric strings
// count as numbers; any other type is treated as absent.
func (r record) num(keys ...string) (float64, bool) {
	for _, key := range keys {
		raw, ok := r[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v, true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// flag returns the first present boolean value among keys.
func (r record) flag(keys ...string) (bool, bool) {
	for _, key := range keys {
		if raw, ok := r[key]; ok {
			if b, ok := raw.(bool); ok {
				return b, true
			}
		}
	}
	return false, false
}

// child returns the sub-record stored under key, re-parsing JSON-encoded
// strings along the way.
func (r record) child(key string) (record, bool) {
	raw, ok := r[key]
	if !ok {
		return nil, false
	}
	return recordFrom(raw)
}

// list returns the array stored under key, or nil.
func (r record) list(key string) []any {
	if raw, ok := r[key]; ok {
		if items, ok := raw.([]any); ok {
			return items
		}
	}
	return nil
}

// looksLikeMessage reports whether the record plausibly is a message body
// rather than an unrelated envelope level.
func looksLikeMessage(r record) bool {
	if r == nil {
		return false
	}
	for _, key := range []string{"guid", "text", "body", "subject", "handle", "attachments", "associatedMessageGuid"} {
		if _, ok := r[key]; ok {
			return true
		}
	}
	return false
}

// extractMessageRecord locates the message sub-record inside a webhook
// envelope. Candidates are tried in order: message, data.message, data
// itself (when it looks like a message), payload.message. Returns nil when
// no plausible record is found.
func extractMessageRecord(envelope record) record {
	if envelope == nil {
		return nil
	}
	if msg, ok := envelope.child("message"); ok {
		return msg
	}
	if data, ok := envelope.child("data"); ok {
		if msg, ok := data.child("message"); ok {
			return msg
		}
		if looksLikeMessage(data) {
			return data
		}
	}
	if payload, ok := envelope.child("payload"); ok {
		if msg, ok := payload.child("message"); ok {
			return msg
		}
	}
	return nil
}
