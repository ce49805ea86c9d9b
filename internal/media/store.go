package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DiskStore persists media buffers under a local root directory.
// Files are content-addressed so repeated saves of the same bytes
// land on the same path.
type DiskStore struct {
	root   string
	logger *slog.Logger
}

// NewDiskStore creates a DiskStore rooted at dir.
func NewDiskStore(log *slog.Logger, dir string) (*DiskStore, error) {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &DiskStore{
		root:   abs,
		logger: log.With(slog.String("service", "media_store")),
	}, nil
}

// SaveBuffer writes data beneath the store root and returns the absolute
// path together with the effective content type. The content type is
// sniffed from the bytes when the caller did not supply one. Payloads
// larger than maxBytes are rejected; a non-positive maxBytes falls back
// to MaxAttachmentBytes.
func (s *DiskStore) SaveBuffer(data []byte, contentType string, direction Direction, maxBytes int64) (StoredAsset, error) {
	if s == nil {
		return StoredAsset{}, ErrStoreUnavailable
	}
	if len(data) == 0 {
		return StoredAsset{}, ErrEmptyAsset
	}
	if maxBytes <= 0 {
		maxBytes = MaxAttachmentBytes
	}
	if int64(len(data)) > maxBytes {
		return StoredAsset{}, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, maxBytes)
	}
	if direction == "" {
		direction = DirectionInbound
	}
	if contentType == "" {
		contentType = DetectMime(data, "")
	}

	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])
	dest := filepath.Join(s.root, string(direction), contentHash[:2], contentHash+ExtensionForMime(contentType))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return StoredAsset{}, fmt.Errorf("create parent dir: %w", err)
	}
	if _, err := os.Stat(dest); err == nil {
		return StoredAsset{Path: dest, ContentType: contentType}, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".media-*")
	if err != nil {
		return StoredAsset{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return StoredAsset{}, fmt.Errorf("write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return StoredAsset{}, fmt.Errorf("close media file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return StoredAsset{}, fmt.Errorf("place media file: %w", err)
	}
	s.logger.Debug(
		"stored media asset",
		slog.String("path", dest),
		slog.String("content_type", contentType),
		slog.Int("size", len(data)),
	)
	return StoredAsset{Path: dest, ContentType: contentType}, nil
}
