package webhookchecker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bluetaphq/bluetap/internal/channel"
	"github.com/bluetaphq/bluetap/internal/healthcheck"
)

const (
	checkTypeWebhookTarget = "webhook.target"
	titleWebhookTarget     = "Webhook target"

	// staleInboundAfter is the quiet period after which a previously
	// active target is flagged.
	staleInboundAfter = 24 * time.Hour
)

// StatusObserver reads runtime target status snapshots.
type StatusObserver interface {
	Statuses() []channel.TargetStatus
}

// Checker evaluates webhook target health checks.
type Checker struct {
	logger   *slog.Logger
	observer StatusObserver
}

// NewChecker creates a webhook target health checker.
func NewChecker(log *slog.Logger, observer StatusObserver) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_webhook")),
		observer: observer,
	}
}

// ListChecks evaluates the status snapshot of every registered target.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	// Status observer is context-free; best effort early cancellation guard.
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.observer == nil {
		if c.logger != nil {
			c.logger.Warn("webhook healthcheck dependency is unavailable")
		}
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeWebhookTarget + ".service",
				Type:    checkTypeWebhookTarget,
				Title:   titleWebhookTarget,
				Status:  healthcheck.StatusWarn,
				Summary: "Webhook checker service is not available.",
				Detail:  "status observer is nil",
			},
		}
	}

	statuses := c.observer.Statuses()
	if len(statuses) == 0 {
		return []healthcheck.CheckResult{}
	}

	now := time.Now()
	checks := make([]healthcheck.CheckResult, 0, len(statuses))
	for idx, status := range statuses {
		item := healthcheck.CheckResult{
			ID:       buildCheckID(status.AccountID, idx),
			Type:     checkTypeWebhookTarget,
			Title:    titleWebhookTarget,
			Subtitle: buildSubtitle(status.Path, status.AccountID),
			Metadata: map[string]any{
				"account_id": status.AccountID,
				"path":       status.Path,
				"running":    status.Running,
			},
		}
		if status.UpdatedAt.Unix() > 0 {
			item.Metadata["updated_at"] = status.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		if !status.LastInboundAt.IsZero() {
			item.Metadata["inbound_age_seconds"] = int64(now.Sub(status.LastInboundAt).Seconds())
		}
		if !status.LastOutboundAt.IsZero() {
			item.Metadata["outbound_age_seconds"] = int64(now.Sub(status.LastOutboundAt).Seconds())
		}

		switch {
		case !status.Running:
			item.Status = healthcheck.StatusError
			item.Summary = "Webhook target is stopped."
			item.Detail = strings.TrimSpace(status.LastError)
		case strings.TrimSpace(status.LastError) != "":
			item.Status = healthcheck.StatusWarn
			item.Summary = "Last delivery attempt failed."
			item.Detail = strings.TrimSpace(status.LastError)
		case !status.LastInboundAt.IsZero() && now.Sub(status.LastInboundAt) > staleInboundAfter:
			item.Status = healthcheck.StatusWarn
			item.Summary = fmt.Sprintf("No inbound traffic for over %s.", staleInboundAfter)
		default:
			item.Status = healthcheck.StatusOK
			item.Summary = "Webhook target is ready."
		}
		checks = append(checks, item)
	}
	return checks
}

func buildCheckID(accountID string, idx int) string {
	accountID = strings.TrimSpace(accountID)
	if accountID != "" {
		return checkTypeWebhookTarget + "." + accountID
	}
	return fmt.Sprintf("%s.unknown_%d", checkTypeWebhookTarget, idx+1)
}

func buildSubtitle(path, accountID string) string {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return path
	}
	if len(accountID) > 8 {
		accountID = accountID[:8]
	}
	return path + " (" + accountID + ")"
}
