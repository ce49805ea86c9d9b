package media

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMime sniffs the MIME type of a buffer, falling back to the file
// extension when sniffing yields only a generic type. Returns "" when
// nothing usable can be determined.
func DetectMime(data []byte, filePath string) string {
	if len(data) > 0 {
		detected := mimetype.Detect(data).String()
		detected = contentTypeFromHeader(detected)
		if detected != "" && detected != "application/octet-stream" {
			return detected
		}
	}
	if ext := strings.ToLower(filepath.Ext(filePath)); ext != "" {
		if byExt := contentTypeFromHeader(mime.TypeByExtension(ext)); byExt != "" {
			return byExt
		}
	}
	if len(data) > 0 {
		return "application/octet-stream"
	}
	return ""
}

// ExtensionForMime returns a file extension (with dot) for common MIME types.
func ExtensionForMime(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/amr":
		return ".amr"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
