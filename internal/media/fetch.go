package media

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

const fetchTimeout = 60 * time.Second

// Fetcher downloads remote assets over HTTP with a byte cap.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a bounded-timeout HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// FetchRemote downloads url and returns the raw bytes together with the
// content type and file name advertised by the server, when present.
// Payloads larger than maxBytes are rejected with ErrAssetTooLarge; a
// non-positive maxBytes falls back to MaxRemoteFetchBytes.
func (f *Fetcher) FetchRemote(ctx context.Context, url string, maxBytes int64) (RemoteAsset, error) {
	if strings.TrimSpace(url) == "" {
		return RemoteAsset{}, fmt.Errorf("url is required")
	}
	if maxBytes <= 0 {
		maxBytes = MaxRemoteFetchBytes
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RemoteAsset{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return RemoteAsset{}, fmt.Errorf("fetch remote asset: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return RemoteAsset{}, fmt.Errorf("fetch remote asset: unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > 0 && resp.ContentLength > maxBytes {
		return RemoteAsset{}, fmt.Errorf("%w: content length %d", ErrAssetTooLarge, resp.ContentLength)
	}
	data, err := ReadAllWithLimit(resp.Body, maxBytes)
	if err != nil {
		return RemoteAsset{}, err
	}
	if len(data) == 0 {
		return RemoteAsset{}, ErrEmptyAsset
	}
	asset := RemoteAsset{
		Bytes:       data,
		ContentType: contentTypeFromHeader(resp.Header.Get("Content-Type")),
		FileName:    fileNameFromResponse(resp),
	}
	return asset, nil
}

func contentTypeFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if idx := strings.IndexByte(header, ';'); idx >= 0 {
		header = header[:idx]
	}
	return strings.ToLower(strings.TrimSpace(header))
}

func fileNameFromResponse(resp *http.Response) string {
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(name)
			}
		}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		if name := path.Base(resp.Request.URL.Path); name != "" && name != "/" && name != "." {
			return name
		}
	}
	return ""
}
