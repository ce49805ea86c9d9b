package bluebubbles

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bluetaphq/bluetap/internal/channel"
	"github.com/bluetaphq/bluetap/internal/media"
)

// maxWebhookBody caps an inbound webhook body at 1 MiB. Larger requests are
// rejected before full buffering.
const maxWebhookBody int64 = 1 << 20

// InboundSink accepts normalized events for asynchronous processing. The
// webhook response never waits on it.
type InboundSink interface {
	EnqueueMessage(ctx context.Context, target *channel.Target, msg *channel.NormalizedMessage) bool
	EnqueueReaction(ctx context.Context, target *channel.Target, reaction *channel.NormalizedReaction) bool
}

// WebhookHandler terminates gateway webhook calls: method and size checks,
// envelope parsing, per-target auth, event triage, and fan-out to every
// authorized target on the path. It mounts as a catch-all so accounts can
// register arbitrary paths at runtime; static routes keep precedence.
type WebhookHandler struct {
	registry *channel.Registry
	sink     InboundSink
	logger   *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, registry *channel.Registry, sink InboundSink) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		registry: registry,
		sink:     sink,
		logger:   log.With(slog.String("handler", "bluebubbles_webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.Any("/*", h.Handle)
}

// Handle serves one webhook call. The response is decided synchronously;
// accepted events are processed by the sink's workers after the response
// is on the wire.
func (h *WebhookHandler) Handle(c echo.Context) error {
	req := c.Request()
	path := channel.NormalizePath(req.URL.Path)
	targets := h.registry.Lookup(path)
	if len(targets) == 0 {
		return echo.ErrNotFound
	}
	if req.Method != http.MethodPost {
		c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
		return echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed")
	}

	body, err := media.ReadAllWithLimit(req.Body, maxWebhookBody)
	if err != nil {
		if errors.Is(err, media.ErrAssetTooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
		}
		h.logger.Debug("webhook body read failed", slog.String("path", path), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	envelope := parseEnvelope(body)
	if envelope == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	authorized := h.authorizedTargets(req, targets)
	if len(authorized) == 0 {
		h.logger.Warn("webhook unauthorized", slog.String("path", path))
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	eventType := envelopeEventType(envelope)
	if !processableEvent(eventType) {
		h.logger.Debug("webhook event ignored",
			slog.String("path", path),
			slog.String("event_type", eventType))
		return c.String(http.StatusOK, "ok")
	}

	detached := context.WithoutCancel(req.Context())
	if reactionEvent(eventType) {
		reaction := NormalizeReaction(extractMessageRecord(envelope))
		if reaction == nil {
			return c.String(http.StatusOK, "ok")
		}
		for _, target := range authorized {
			if !h.sink.EnqueueReaction(detached, target, reaction) {
				h.logger.Debug("reaction not accepted",
					slog.String("account_id", target.Account.ID))
			}
		}
		return c.String(http.StatusOK, "ok")
	}

	msg := NormalizeMessage(extractMessageRecord(envelope))
	if msg == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	for _, target := range authorized {
		if !h.sink.EnqueueMessage(detached, target, msg) {
			h.logger.Debug("message not accepted",
				slog.String("account_id", target.Account.ID))
		}
	}
	return c.String(http.StatusOK, "ok")
}

// parseEnvelope decodes the webhook body: a JSON object, or a form-encoded
// body whose payload/data/message parameter carries the JSON. A message
// parameter holds the message record itself and is rewrapped so the
// extractor sees a regular envelope.
func parseEnvelope(body []byte) record {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return nil
		}
		return record(parsed)
	}
	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil
	}
	for _, key := range []string{"payload", "data", "message"} {
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			continue
		}
		parsed, ok := recordFrom(raw)
		if !ok {
			continue
		}
		if key == "message" {
			return record{"message": map[string]any(parsed)}
		}
		return parsed
	}
	return nil
}

func envelopeEventType(envelope record) string {
	eventType, _ := envelope.str("type", "event")
	return strings.ToLower(strings.TrimSpace(eventType))
}

// processableEvent reports whether the event type reaches normalization. An
// absent type counts as a plain message; anything else unknown is accepted
// and ignored.
func processableEvent(eventType string) bool {
	switch eventType {
	case "", "new-message", "updated-message", "message-reaction", "reaction":
		return true
	default:
		return false
	}
}

// reactionEvent reports whether the event type takes the reaction path.
// Records there that fail reaction normalization are dropped with a 200.
func reactionEvent(eventType string) bool {
	switch eventType {
	case "updated-message", "message-reaction", "reaction":
		return true
	default:
		return false
	}
}

// authorizedTargets filters targets to those the request may reach: secret
// match on a query parameter or header, loopback origin, or a target with
// no secret configured.
func (h *WebhookHandler) authorizedTargets(req *http.Request, targets []*channel.Target) []*channel.Target {
	candidates := authCandidates(req)
	loopback := isLoopback(req.RemoteAddr)
	authorized := make([]*channel.Target, 0, len(targets))
	for _, target := range targets {
		if authorizeTarget(target.Account.WebhookPassword, candidates, loopback) {
			authorized = append(authorized, target)
		}
	}
	return authorized
}

// authCandidates collects every secret the request presents. A bearer
// authorization header contributes both its raw and stripped forms.
func authCandidates(req *http.Request) []string {
	candidates := make([]string, 0, 6)
	query := req.URL.Query()
	for _, value := range []string{query.Get("guid"), query.Get("password")} {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}
	for _, header := range []string{"x-guid", "x-password", "x-bluebubbles-guid", "authorization"} {
		value := strings.TrimSpace(req.Header.Get(header))
		if value == "" {
			continue
		}
		candidates = append(candidates, value)
		if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
			if stripped := strings.TrimSpace(value[7:]); stripped != "" {
				candidates = append(candidates, stripped)
			}
		}
	}
	return candidates
}

func authorizeTarget(secret string, candidates []string, loopback bool) bool {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return true
	}
	if loopback {
		return true
	}
	for _, candidate := range candidates {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1 {
			return true
		}
	}
	return false
}

// isLoopback matches the socket peer address only. Forwarded-for headers
// are never consulted.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	switch host {
	case "127.0.0.1", "::1", "::ffff:127.0.0.1":
		return true
	}
	return false
}
