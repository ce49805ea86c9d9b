package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchRemote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Header().Set("Content-Disposition", `attachment; filename="photo.png"`)
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	asset, err := NewFetcher().FetchRemote(context.Background(), srv.URL+"/download/photo.png", 0)
	if err != nil {
		t.Fatalf("FetchRemote: %v", err)
	}
	if string(asset.Bytes) != "png-bytes" {
		t.Fatalf("Bytes = %q", string(asset.Bytes))
	}
	if asset.ContentType != "image/png" {
		t.Fatalf("ContentType = %q, want image/png", asset.ContentType)
	}
	if asset.FileName != "photo.png" {
		t.Fatalf("FileName = %q, want photo.png", asset.FileName)
	}
}

func TestFetchRemoteRejectsOversize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	_, err := NewFetcher().FetchRemote(context.Background(), srv.URL, 4)
	if !errors.Is(err, ErrAssetTooLarge) {
		t.Fatalf("expected ErrAssetTooLarge, got %v", err)
	}
}

func TestFetchRemoteRejectsBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewFetcher().FetchRemote(context.Background(), srv.URL, 0); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

func TestDetectMime(t *testing.T) {
	t.Parallel()

	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	if got := DetectMime(pngHeader, ""); got != "image/png" {
		t.Fatalf("DetectMime(png header) = %q, want image/png", got)
	}
	if got := DetectMime([]byte{0x00, 0x01, 0x02}, "doc.pdf"); got != "application/pdf" {
		t.Fatalf("DetectMime(ext fallback) = %q, want application/pdf", got)
	}
	if got := DetectMime(nil, ""); got != "" {
		t.Fatalf("DetectMime(empty) = %q, want empty", got)
	}
}
