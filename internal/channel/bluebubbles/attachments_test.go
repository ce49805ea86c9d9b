package bluebubbles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bluetaphq/bluetap/internal/channel"
	"github.com/bluetaphq/bluetap/internal/media"
)

func TestAttachmentPipelineResolve(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "att-ok"):
			w.Header().Set("Content-Type", "image/png")
			if _, err := w.Write([]byte("\x89PNG fake bytes")); err != nil {
				t.Errorf("write response: %v", err)
			}
		case strings.Contains(r.URL.Path, "att-broken"):
			http.Error(w, "gone", http.StatusInternalServerError)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	store, err := media.NewDiskStore(nil, t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	client := NewClient(nil, server.URL, "secret", time.Second)
	pipeline := NewAttachmentPipeline(nil, client, store)

	msg := &channel.NormalizedMessage{
		Attachments: []channel.Attachment{
			{GUID: "att-oversized", MimeType: "video/mp4", TotalBytes: 100 * 1024 * 1024},
			{GUID: "att-broken", MimeType: "image/png"},
			{GUID: "att-ok", MimeType: "image/png"},
		},
	}
	items := pipeline.Resolve(context.Background(), msg, 1024)
	if len(items) != 1 {
		t.Fatalf("Resolve() = %d items, want 1", len(items))
	}
	if items[0].ContentType != "image/png" {
		t.Fatalf("ContentType = %q, want image/png", items[0].ContentType)
	}
	if items[0].Path == "" {
		t.Fatal("Path is empty")
	}
}

func TestAttachmentPipelineNoCollaborators(t *testing.T) {
	t.Parallel()

	msg := &channel.NormalizedMessage{
		Attachments: []channel.Attachment{{GUID: "att-1"}},
	}

	pipeline := NewAttachmentPipeline(nil, nil, nil)
	if items := pipeline.Resolve(context.Background(), msg, 0); items != nil {
		t.Fatalf("Resolve() without collaborators = %v, want nil", items)
	}

	unconfigured := NewAttachmentPipeline(nil, NewClient(nil, "", "", 0), nil)
	if items := unconfigured.Resolve(context.Background(), msg, 0); items != nil {
		t.Fatalf("Resolve() with unconfigured client = %v, want nil", items)
	}
}

