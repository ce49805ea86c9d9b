package bluebubbles

import (
	"encoding/json"
	"testing"
)

func decodeEnvelope(t *testing.T, raw string) record {
	t.Helper()
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return record(parsed)
}

func TestExtractMessageRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantText string
		wantNil  bool
	}{
		{
			name:     "top level message",
			raw:      `{"type":"new-message","message":{"text":"hi","guid":"m1"}}`,
			wantText: "hi",
		},
		{
			name:     "data dot message",
			raw:      `{"type":"new-message","data":{"message":{"text":"nested","guid":"m2"}}}`,
			wantText: "nested",
		},
		{
			name:     "data itself is the message",
			raw:      `{"type":"new-message","data":{"text":"flat","guid":"m3","handle":{"address":"+15550001111"}}}`,
			wantText: "flat",
		},
		{
			name:     "payload dot message",
			raw:      `{"payload":{"message":{"text":"deep","guid":"m4"}}}`,
			wantText: "deep",
		},
		{
			name:     "json encoded data string",
			raw:      `{"data":"{\"message\":{\"text\":\"stringly\",\"guid\":\"m5\"}}"}`,
			wantText: "stringly",
		},
		{
			name:    "no plausible record",
			raw:     `{"type":"new-message","data":{"status":200}}`,
			wantNil: true,
		},
		{
			name:    "empty envelope",
			raw:     `{}`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := extractMessageRecord(decodeEnvelope(t, tt.raw))
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil record, got %v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected record, got nil")
			}
			text, _ := got.str("text")
			if text != tt.wantText {
				t.Fatalf("text = %q, want %q", text, tt.wantText)
			}
		})
	}
}

func TestRecordGetters(t *testing.T) {
	t.Parallel()

	r := decodeEnvelope(t, `{
		"text": "hello",
		"count": 3,
		"countStr": "42",
		"flagTrue": true,
		"flagStr": "true",
		"handle": "{\"address\":\"+15550001111\"}",
		"items": [1, 2]
	}`)

	if v, ok := r.str("missing", "text"); !ok || v != "hello" {
		t.Fatalf("str = (%q, %v), want (hello, true)", v, ok)
	}
	if _, ok := r.str("count"); ok {
		t.Fatalf("str should reject numeric value")
	}
	if v, ok := r.num("count"); !ok || v != 3 {
		t.Fatalf("num = (%v, %v), want (3, true)", v, ok)
	}
	if v, ok := r.num("countStr"); !ok || v != 42 {
		t.Fatalf("num from string = (%v, %v), want (42, true)", v, ok)
	}
	if _, ok := r.num("text"); ok {
		t.Fatalf("num should reject non-numeric string")
	}
	if v, ok := r.flag("flagTrue"); !ok || !v {
		t.Fatalf("flag = (%v, %v), want (true, true)", v, ok)
	}
	if _, ok := r.flag("flagStr"); ok {
		t.Fatalf("flag should reject string value")
	}
	child, ok := r.child("handle")
	if !ok {
		t.Fatalf("child should parse JSON-encoded sub-record")
	}
	if addr, _ := child.str("address"); addr != "+15550001111" {
		t.Fatalf("child address = %q", addr)
	}
	if items := r.list("items"); len(items) != 2 {
		t.Fatalf("list len = %d, want 2", len(items))
	}
}
