package channel

import (
	"fmt"
	"strings"

	"github.com/bluetaphq/bluetap/internal/media"
)

// DisplayText returns the message text, or a media placeholder derived from
// its attachments when the text is empty. An empty result means the message
// carries nothing worth forwarding and should be dropped silently.
func (m NormalizedMessage) DisplayText() string {
	if text := strings.TrimSpace(m.Text); text != "" {
		return text
	}
	if len(m.Attachments) == 0 {
		if strings.TrimSpace(m.BalloonBundleID) != "" {
			return "<media:sticker>"
		}
		return ""
	}

	category := attachmentCategory(m.Attachments[0].MimeType)
	for _, att := range m.Attachments[1:] {
		if attachmentCategory(att.MimeType) != category {
			category = "attachment"
			break
		}
	}

	count := len(m.Attachments)
	noun := category
	if count != 1 {
		noun += "s"
	}
	return fmt.Sprintf("<media:%s> (%d %s)", category, count, noun)
}

func attachmentCategory(mimeType string) string {
	switch media.TypeFromMime(mimeType) {
	case media.MediaTypeImage:
		return "image"
	case media.MediaTypeVideo:
		return "video"
	case media.MediaTypeAudio:
		return "audio"
	default:
		return "attachment"
	}
}
