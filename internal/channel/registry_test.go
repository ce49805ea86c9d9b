package channel_test

import (
	"testing"

	"github.com/bluetaphq/bluetap/internal/channel"
)

func TestRegistryRegisterLookup(t *testing.T) {
	t.Parallel()
	reg := channel.NewRegistry()

	a := channel.NewTarget(channel.AccountConfig{ID: "alpha", WebhookPath: "/hook"})
	b := channel.NewTarget(channel.AccountConfig{ID: "beta", WebhookPath: "/hook/"})

	unregisterA, err := reg.Register(a)
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	if _, err := reg.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}

	got := reg.Lookup("/hook/")
	if len(got) != 2 {
		t.Fatalf("lookup len = %d, want 2", len(got))
	}
	if got[0] != a || got[1] != b {
		t.Fatalf("lookup order changed: %v", got)
	}

	unregisterA()
	got = reg.Lookup("/hook")
	if len(got) != 1 || got[0] != b {
		t.Fatalf("after unregister, lookup = %v", got)
	}
	if a.Status().Running {
		t.Fatalf("unregistered target still running")
	}
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	t.Parallel()
	reg := channel.NewRegistry()

	target := channel.NewTarget(channel.AccountConfig{ID: "alpha", WebhookPath: "/hook"})
	unregister, err := reg.Register(target)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	unregister()
	unregister()

	if got := reg.Lookup("/hook"); got != nil {
		t.Fatalf("lookup after double unregister = %v, want nil", got)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry len = %d, want 0", reg.Len())
	}
	if len(reg.Paths()) != 0 {
		t.Fatalf("paths not pruned: %v", reg.Paths())
	}
}

func TestRegistryRemovesExactInstance(t *testing.T) {
	t.Parallel()
	reg := channel.NewRegistry()

	first := channel.NewTarget(channel.AccountConfig{ID: "dup", WebhookPath: "/hook"})
	second := channel.NewTarget(channel.AccountConfig{ID: "dup", WebhookPath: "/hook"})
	unregisterFirst, _ := reg.Register(first)
	if _, err := reg.Register(second); err != nil {
		t.Fatalf("register second: %v", err)
	}

	unregisterFirst()
	got := reg.Lookup("/hook")
	if len(got) != 1 || got[0] != second {
		t.Fatalf("wrong instance removed: %v", got)
	}
}

func TestRegistryRejectsNil(t *testing.T) {
	t.Parallel()
	reg := channel.NewRegistry()
	if _, err := reg.Register(nil); err == nil {
		t.Fatalf("expected error for nil target")
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", "/"},
		{"root", "/", "/"},
		{"trailing slash stripped", "/hook/", "/hook"},
		{"double trailing slash", "/hook//", "/hook"},
		{"missing leading slash", "hook", "/hook"},
		{"whitespace", "  /hook  ", "/hook"},
		{"default path kept", "/bluebubbles-webhook", "/bluebubbles-webhook"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := channel.NormalizePath(tt.raw); got != tt.want {
				t.Fatalf("NormalizePath(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
