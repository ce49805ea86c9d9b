// Package channel defines the canonical event shapes produced from gateway
// webhooks, the path-keyed target registry, the delivery policy engine, and
// the outbound orchestrator that brackets replies with side-channel signals.
package channel

import (
	"strings"
	"sync"
	"time"
)

// ChannelType identifies a messaging gateway (e.g., "bluebubbles").
type ChannelType string

// TypeBlueBubbles is the only gateway this service speaks.
const TypeBlueBubbles ChannelType = "bluebubbles"

// String returns the channel type as a plain string.
func (c ChannelType) String() string {
	return string(c)
}

// Policy controls who may reach the agent through an account.
type Policy string

const (
	PolicyDisabled  Policy = "disabled"
	PolicyOpen      Policy = "open"
	PolicyAllowlist Policy = "allowlist"
	PolicyPairing   Policy = "pairing"
)

// String returns the policy as a plain string.
func (p Policy) String() string {
	return string(p)
}

const (
	// DefaultDMPolicy applies when an account omits dm_policy.
	DefaultDMPolicy = PolicyPairing
	// DefaultGroupPolicy applies when an account omits group_policy.
	DefaultGroupPolicy = PolicyOpen
	// DefaultWebhookPath is the inbound path when an account omits webhook_path.
	DefaultWebhookPath = "/bluebubbles-webhook"
)

// Attachment describes one inbound attachment as reported by the gateway.
// It carries only the descriptor; bytes are fetched on demand.
type Attachment struct {
	GUID          string `json:"guid,omitempty"`
	UTI           string `json:"uti,omitempty"`
	MimeType      string `json:"mimeType,omitempty"`
	TransferName  string `json:"transferName,omitempty"`
	TotalBytes    int64  `json:"totalBytes,omitempty"`
	Height        int    `json:"height,omitempty"`
	Width         int    `json:"width,omitempty"`
	OriginalRowID int64  `json:"originalRowId,omitempty"`
}

// MediaItem is one persisted attachment: a stable local path plus the
// detected content type.
type MediaItem struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType,omitempty"`
}

// NormalizedMessage is the canonical inbound message shape. It is built once
// per webhook call and not mutated afterwards.
type NormalizedMessage struct {
	Text            string
	SenderID        string
	SenderName      string
	MessageID       string
	TimestampMs     int64
	IsGroup         bool
	FromMe          bool
	ChatID          string
	ChatGUID        string
	ChatIdentifier  string
	ChatName        string
	Attachments     []Attachment
	BalloonBundleID string
}

// HasContent reports whether the message carries anything deliverable:
// text, at least one attachment, or a sticker/balloon marker.
func (m NormalizedMessage) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" ||
		len(m.Attachments) > 0 ||
		strings.TrimSpace(m.BalloonBundleID) != ""
}

// ChatLookupKeys returns the non-empty chat resolution candidates in
// priority order: chat id, chat identifier, sender handle.
func (m NormalizedMessage) ChatLookupKeys() []string {
	return chatLookupKeys(m.ChatID, m.ChatIdentifier, m.SenderID)
}

// chatLookupKeys returns the non-empty resolution candidates in priority
// order: chat id, chat identifier, sender handle.
func chatLookupKeys(chatID, chatIdentifier, senderID string) []string {
	keys := make([]string, 0, 3)
	for _, key := range []string{chatID, chatIdentifier, senderID} {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// ReactionAction says whether a tapback was applied or withdrawn.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)

// NormalizedReaction is the canonical inbound reaction shape. MessageID is
// the guid of the message the tapback targets.
type NormalizedReaction struct {
	Action         ReactionAction
	Emoji          string
	SenderID       string
	SenderName     string
	MessageID      string
	TimestampMs    int64
	IsGroup        bool
	FromMe         bool
	ChatID         string
	ChatGUID       string
	ChatIdentifier string
	ChatName       string
}

// ChatLookupKeys returns the non-empty chat resolution candidates in
// priority order: chat id, chat identifier, sender handle.
func (r NormalizedReaction) ChatLookupKeys() []string {
	return chatLookupKeys(r.ChatID, r.ChatIdentifier, r.SenderID)
}

// AccountConfig is the typed per-account configuration consumed by the
// policy engine and orchestrator.
type AccountConfig struct {
	ID                 string
	AgentID            string
	WebhookPath        string
	WebhookPassword    string
	ServerURL          string
	ServerPassword     string
	DMPolicy           Policy
	GroupPolicy        Policy
	AllowFrom          []string
	GroupAllowFrom     []string
	MaxAttachmentBytes int64
	ChunkLimit         int
	ChunkerMode        ChunkerMode
}

// Normalize trims identifiers and fills zero-value fields with defaults.
// Missing lists stay empty, never nil-panic material.
func (c AccountConfig) Normalize() AccountConfig {
	c.ID = strings.TrimSpace(c.ID)
	c.AgentID = strings.TrimSpace(c.AgentID)
	c.WebhookPath = NormalizePath(c.WebhookPath)
	if c.WebhookPath == "/" {
		c.WebhookPath = DefaultWebhookPath
	}
	c.ServerURL = strings.TrimSpace(strings.TrimSuffix(c.ServerURL, "/"))
	if c.DMPolicy == "" {
		c.DMPolicy = DefaultDMPolicy
	}
	if c.GroupPolicy == "" {
		c.GroupPolicy = DefaultGroupPolicy
	}
	if c.AllowFrom == nil {
		c.AllowFrom = []string{}
	}
	if c.GroupAllowFrom == nil {
		c.GroupAllowFrom = []string{}
	}
	return c
}

// NormalizePath lowers a raw webhook path to its canonical form: leading
// slash enforced, trailing slash stripped, bare or empty input becomes "/".
func NormalizePath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// TargetStatus is a point-in-time health snapshot for one registered target.
type TargetStatus struct {
	AccountID      string    `json:"account_id"`
	Path           string    `json:"path"`
	Running        bool      `json:"running"`
	LastInboundAt  time.Time `json:"last_inbound_at"`
	LastOutboundAt time.Time `json:"last_outbound_at"`
	LastError      string    `json:"last_error,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Target is one registered (account, path) pair together with the
// collaborators that serve it. Its status fields are written by the
// orchestrator and read by health reporting, so access goes through the
// mutex-guarded methods.
type Target struct {
	Account     AccountConfig
	Path        string
	Transport   Transport
	Attachments AttachmentResolver

	mu     sync.Mutex
	status TargetStatus
}

// NewTarget creates a running target for the given normalized account.
func NewTarget(account AccountConfig) *Target {
	account = account.Normalize()
	return &Target{
		Account: account,
		Path:    account.WebhookPath,
		status: TargetStatus{
			AccountID: account.ID,
			Path:      account.WebhookPath,
			Running:   true,
			UpdatedAt: time.Now(),
		},
	}
}

// Bind attaches the outbound transport and attachment resolver. Either may
// be nil; the orchestrator degrades to dispatch-only processing.
func (t *Target) Bind(transport Transport, attachments AttachmentResolver) *Target {
	t.Transport = transport
	t.Attachments = attachments
	return t
}

// Running reports whether the target still accepts inbound work.
func (t *Target) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.Running
}

// MarkInbound records an accepted inbound event.
func (t *Target) MarkInbound(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastInboundAt = at
	t.status.UpdatedAt = at
}

// MarkOutbound records a completed outbound send.
func (t *Target) MarkOutbound(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastOutboundAt = at
	t.status.UpdatedAt = at
}

// MarkError records the most recent processing failure.
func (t *Target) MarkError(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastError = err.Error()
	t.status.UpdatedAt = time.Now()
}

// MarkStopped flips the target out of the running state on unregister.
func (t *Target) MarkStopped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Running = false
	t.status.UpdatedAt = time.Now()
}

// Status returns a copy of the current status snapshot.
func (t *Target) Status() TargetStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
