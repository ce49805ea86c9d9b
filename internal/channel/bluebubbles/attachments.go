package bluebubbles

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bluetaphq/bluetap/internal/channel"
	"github.com/bluetaphq/bluetap/internal/media"
)

// AttachmentPipeline downloads inbound attachments and persists them to
// the local media store.
type AttachmentPipeline struct {
	client *Client
	store  *media.DiskStore
	logger *slog.Logger
}

// NewAttachmentPipeline wires the pipeline. Either collaborator may be nil,
// which turns Resolve into a no-op.
func NewAttachmentPipeline(log *slog.Logger, client *Client, store *media.DiskStore) *AttachmentPipeline {
	if log == nil {
		log = slog.Default()
	}
	return &AttachmentPipeline{
		client: client,
		store:  store,
		logger: log.With(slog.String("service", "attachments")),
	}
}

// Resolve fetches and persists each attachment within the byte cap,
// returning stored items in encounter order. A failing attachment is
// logged and skipped without aborting its siblings. It satisfies the
// orchestrator's attachment-resolver surface.
func (p *AttachmentPipeline) Resolve(ctx context.Context, msg *channel.NormalizedMessage, maxBytes int64) []channel.MediaItem {
	if p == nil || msg == nil || len(msg.Attachments) == 0 {
		return nil
	}
	if p.client == nil || !p.client.Configured() || p.store == nil {
		return nil
	}
	if maxBytes <= 0 {
		maxBytes = media.MaxAttachmentBytes
	}

	var items []channel.MediaItem
	for _, att := range msg.Attachments {
		if strings.TrimSpace(att.GUID) == "" {
			continue
		}
		if att.TotalBytes > maxBytes {
			p.logger.Info("attachment skipped: over byte cap",
				slog.String("guid", att.GUID),
				slog.Int64("total_bytes", att.TotalBytes),
				slog.Int64("max_bytes", maxBytes))
			continue
		}
		data, contentType, err := p.client.DownloadAttachment(ctx, att.GUID, maxBytes)
		if err != nil {
			p.logger.Warn("attachment download failed",
				slog.String("guid", att.GUID),
				slog.Any("error", err))
			continue
		}
		if contentType == "" {
			contentType = att.MimeType
		}
		asset, err := p.store.SaveBuffer(data, contentType, media.DirectionInbound, maxBytes)
		if err != nil {
			p.logger.Warn("attachment persist failed",
				slog.String("guid", att.GUID),
				slog.Any("error", err))
			continue
		}
		items = append(items, channel.MediaItem{Path: asset.Path, ContentType: asset.ContentType})
	}
	return items
}
