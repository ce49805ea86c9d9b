// Package bluebubbles adapts a BlueBubbles gateway to the channel runtime:
// webhook intake and normalization on the way in, REST-driven replies,
// typing indicators, and read receipts on the way out.
package bluebubbles

import (
	"log/slog"

	"github.com/bluetaphq/bluetap/internal/channel"
	"github.com/bluetaphq/bluetap/internal/media"
)

// BuildTarget assembles a registration-ready target for one account: the
// REST client bound as its transport plus the attachment pipeline. Accounts
// without server credentials still get a target; the orchestrator degrades
// to dispatch-only processing for them.
func BuildTarget(log *slog.Logger, account channel.AccountConfig, store *media.DiskStore) *channel.Target {
	account = account.Normalize()
	client := NewClient(log, account.ServerURL, account.ServerPassword, 0)
	pipeline := NewAttachmentPipeline(log, client, store)
	return channel.NewTarget(account).Bind(client, pipeline)
}
