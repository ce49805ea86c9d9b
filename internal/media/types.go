package media

import "strings"

// MediaType classifies the kind of media asset.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeFile  MediaType = "file"
)

// Direction distinguishes inbound assets (received from the gateway) from
// outbound ones (produced for delivery).
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// RemoteAsset is the result of fetching a remote URL.
type RemoteAsset struct {
	Bytes       []byte
	ContentType string
	FileName    string
}

// StoredAsset is the result of persisting a buffer to local storage.
type StoredAsset struct {
	Path        string
	ContentType string
}

// TypeFromMime maps a MIME type onto the coarse media classification.
func TypeFromMime(mime string) MediaType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaTypeImage
	case strings.HasPrefix(mime, "video/"):
		return MediaTypeVideo
	case strings.HasPrefix(mime, "audio/"):
		return MediaTypeAudio
	default:
		return MediaTypeFile
	}
}
