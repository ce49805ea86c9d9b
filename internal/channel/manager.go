package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bluetaphq/bluetap/internal/dispatch"
	"github.com/bluetaphq/bluetap/internal/events"
	"github.com/bluetaphq/bluetap/internal/media"
	"github.com/bluetaphq/bluetap/internal/routing"
)

// Transport is the outbound gateway surface the orchestrator consumes.
// SendText and SendAttachment return the id assigned by the gateway when
// it reports one.
type Transport interface {
	Configured() bool
	SendText(ctx context.Context, chatGUID, text string) (string, error)
	SendAttachment(ctx context.Context, chatGUID, filename string, data []byte) (string, error)
	SendReaction(ctx context.Context, chatGUID, messageGUID, reaction string) error
	SetTyping(ctx context.Context, chatGUID string, typing bool) error
	MarkRead(ctx context.Context, chatGUID string) error
	FindChatGUID(ctx context.Context, keys []string) (string, error)
}

// AttachmentResolver downloads and persists a message's attachments,
// returning the stored items in attachment order.
type AttachmentResolver interface {
	Resolve(ctx context.Context, msg *NormalizedMessage, maxBytes int64) []MediaItem
}

// StatusSink receives a status snapshot after every accepted inbound event
// and every completed outbound send.
type StatusSink func(status TargetStatus)

// inboundTask is one queued unit of work. Exactly one of message or
// reaction is set. The context is the caller's detached processing context;
// the worker falls back to the pool context when it is nil.
type inboundTask struct {
	ctx      context.Context
	target   *Target
	message  *NormalizedMessage
	reaction *NormalizedReaction
}

// Manager runs inbound events through policy, routing, and the reply
// pipeline, and drives the gateway side effects around each reply. Policy
// evaluation lives in policy.go, chunking in outbound.go, and content
// shaping in content.go.
type Manager struct {
	registry   *Registry
	policy     *PolicyEngine
	resolver   *routing.Resolver
	dispatcher dispatch.Dispatcher
	recorder   *events.Recorder
	fetcher    *media.Fetcher
	statusSink StatusSink
	logger     *slog.Logger

	inboundQueue   chan inboundTask
	inboundWorkers int
	inboundOnce    sync.Once
	inboundCtx     context.Context
	inboundCancel  context.CancelFunc
	inboundWG      sync.WaitGroup
}

// NewManager creates a Manager with the given logger, registry, policy
// engine, route resolver, and reply dispatcher.
func NewManager(log *slog.Logger, registry *Registry, policy *PolicyEngine, resolver *routing.Resolver, dispatcher dispatch.Dispatcher) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if policy == nil {
		policy = NewPolicyEngine(log, nil)
	}
	if resolver == nil {
		resolver = routing.NewResolver("")
	}
	return &Manager{
		registry:       registry,
		policy:         policy,
		resolver:       resolver,
		dispatcher:     dispatcher,
		fetcher:        media.NewFetcher(),
		logger:         log.With(slog.String("component", "channel")),
		inboundQueue:   make(chan inboundTask, 256),
		inboundWorkers: 4,
	}
}

// WithRecorder attaches the system-event recorder used for reactions.
func (m *Manager) WithRecorder(recorder *events.Recorder) *Manager {
	m.recorder = recorder
	return m
}

// WithStatusSink attaches an observer for target status snapshots.
func (m *Manager) WithStatusSink(sink StatusSink) *Manager {
	m.statusSink = sink
	return m
}

// Registry returns the target registry used by this manager.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// RegisterTarget adds a target to the registry and logs the registration.
// The returned func unregisters exactly this target.
func (m *Manager) RegisterTarget(target *Target) (func(), error) {
	unregister, err := m.registry.Register(target)
	if err != nil {
		return nil, err
	}
	if m.logger != nil {
		m.logger.Info("target registered",
			slog.String("account_id", target.Account.ID),
			slog.String("path", target.Path))
	}
	return unregister, nil
}

// Start launches the inbound worker pool. Subsequent calls are no-ops.
func (m *Manager) Start(ctx context.Context) {
	m.inboundOnce.Do(func() {
		if m.logger != nil {
			m.logger.Info("manager start", slog.Int("workers", m.inboundWorkers))
		}
		m.inboundCtx, m.inboundCancel = context.WithCancel(ctx)
		for i := 0; i < m.inboundWorkers; i++ {
			m.inboundWG.Add(1)
			go func() {
				defer m.inboundWG.Done()
				for {
					select {
					case <-m.inboundCtx.Done():
						return
					case task := <-m.inboundQueue:
						m.process(task)
					}
				}
			}()
		}
	})
}

// Shutdown stops the worker pool and waits for in-flight tasks until the
// context expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.inboundCancel != nil {
		m.inboundCancel()
	}
	if m.logger != nil {
		m.logger.Info("manager stop")
	}
	done := make(chan struct{})
	go func() {
		m.inboundWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueMessage queues one normalized message for a target. It reports
// whether the task was accepted; a stopped target or a full queue rejects.
func (m *Manager) EnqueueMessage(ctx context.Context, target *Target, msg *NormalizedMessage) bool {
	if target == nil || msg == nil || !target.Running() {
		return false
	}
	return m.enqueue(inboundTask{ctx: ctx, target: target, message: msg})
}

// EnqueueReaction queues one normalized reaction for a target.
func (m *Manager) EnqueueReaction(ctx context.Context, target *Target, reaction *NormalizedReaction) bool {
	if target == nil || reaction == nil || !target.Running() {
		return false
	}
	return m.enqueue(inboundTask{ctx: ctx, target: target, reaction: reaction})
}

func (m *Manager) enqueue(task inboundTask) bool {
	select {
	case m.inboundQueue <- task:
		task.target.MarkInbound(time.Now())
		m.pushStatus(task.target)
		return true
	default:
		if m.logger != nil {
			m.logger.Warn("inbound queue full, dropping event",
				slog.String("account_id", task.target.Account.ID))
		}
		return false
	}
}

func (m *Manager) process(task inboundTask) {
	ctx := task.ctx
	if ctx == nil {
		ctx = m.inboundCtx
	}
	switch {
	case task.message != nil:
		m.processMessage(ctx, task.target, task.message)
	case task.reaction != nil:
		m.processReaction(ctx, task.target, task.reaction)
	}
}

// processMessage runs one message through policy, attachment resolution,
// routing, and the reply pipeline. Gateway side effects around the reply
// are best-effort; the typing indicator is always cleared on the way out.
func (m *Manager) processMessage(ctx context.Context, target *Target, msg *NormalizedMessage) {
	account := target.Account
	decision := m.policy.EvaluateMessage(ctx, account, msg)
	if decision.Reply != "" {
		m.sendPairingReply(ctx, target, msg.ChatGUID, msg.ChatLookupKeys(), msg.IsGroup, msg.SenderID, decision.Reply)
		return
	}
	if !decision.Allow {
		if m.logger != nil {
			m.logger.Debug("message dropped by policy",
				slog.String("account_id", account.ID),
				slog.String("sender_id", msg.SenderID))
		}
		return
	}
	text := msg.DisplayText()
	if text == "" {
		if m.logger != nil {
			m.logger.Debug("message has no deliverable content",
				slog.String("account_id", account.ID),
				slog.String("message_id", msg.MessageID))
		}
		return
	}

	var mediaItems []MediaItem
	if target.Attachments != nil {
		mediaItems = target.Attachments.Resolve(ctx, msg, account.MaxAttachmentBytes)
	}

	peer := peerFor(msg.IsGroup, msg.ChatGUID, msg.ChatID, msg.ChatIdentifier, msg.SenderID)
	route := m.resolver.Resolve(string(TypeBlueBubbles), account.AgentID, account.ID, peer)
	chatGUID := m.resolveChatGUID(ctx, target, msg.ChatGUID, msg.ChatLookupKeys(), msg.IsGroup, msg.SenderID)

	transport := target.Transport
	typing := transport != nil && transport.Configured() && chatGUID != ""
	var stopTyping func(context.Context)
	if typing {
		if err := transport.MarkRead(ctx, chatGUID); err != nil && m.logger != nil {
			m.logger.Debug("mark read failed", slog.String("chat_guid", chatGUID), slog.Any("error", err))
		}
		m.setTyping(ctx, transport, chatGUID, true)
		var stopOnce sync.Once
		stopTyping = func(ctx context.Context) {
			stopOnce.Do(func() { m.setTyping(ctx, transport, chatGUID, false) })
		}
		// The indicator must clear exactly once no matter how dispatch exits.
		defer stopTyping(ctx)
	}

	req := dispatch.Request{
		Channel:     TypeBlueBubbles.String(),
		Route:       route,
		SenderID:    msg.SenderID,
		SenderName:  msg.SenderName,
		ChatName:    msg.ChatName,
		IsGroup:     msg.IsGroup,
		MessageID:   msg.MessageID,
		TimestampMs: msg.TimestampMs,
		Text:        text,
		Media:       toDispatchMedia(mediaItems),
	}
	opts := dispatch.Options{
		Deliver: func(ctx context.Context, reply string) error {
			return m.deliver(ctx, target, chatGUID, reply)
		},
		DeliverMedia: func(ctx context.Context, url string) error {
			return m.deliverMedia(ctx, target, chatGUID, url)
		},
		OnReplyStart: func(ctx context.Context) {
			if typing {
				m.setTyping(ctx, transport, chatGUID, true)
			}
		},
		OnIdle: func(ctx context.Context) {
			if stopTyping != nil {
				stopTyping(ctx)
			}
		},
		OnError: func(ctx context.Context, kind string, err error) {
			target.MarkError(err)
			m.pushStatus(target)
			if m.logger != nil {
				m.logger.Error("reply pipeline failed",
					slog.String("kind", kind),
					slog.String("account_id", account.ID),
					slog.String("session_key", route.SessionKey),
					slog.Any("error", err))
			}
		},
	}
	if err := m.dispatcher.Dispatch(ctx, req, opts); err != nil && m.logger != nil {
		// Already reported through OnError with its kind.
		m.logger.Debug("dispatch finished with error",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}
}

// processReaction gates the reaction through policy and records a deduped
// system event for the conversation's session.
func (m *Manager) processReaction(ctx context.Context, target *Target, reaction *NormalizedReaction) {
	account := target.Account
	decision := m.policy.EvaluateReaction(ctx, account, reaction)
	if decision.Reply != "" {
		m.sendPairingReply(ctx, target, reaction.ChatGUID, reaction.ChatLookupKeys(), reaction.IsGroup, reaction.SenderID, decision.Reply)
		return
	}
	if !decision.Allow {
		if m.logger != nil {
			m.logger.Debug("reaction dropped by policy",
				slog.String("account_id", account.ID),
				slog.String("sender_id", reaction.SenderID))
		}
		return
	}
	if m.recorder == nil {
		return
	}
	peer := peerFor(reaction.IsGroup, reaction.ChatGUID, reaction.ChatID, reaction.ChatIdentifier, reaction.SenderID)
	route := m.resolver.Resolve(string(TypeBlueBubbles), account.AgentID, account.ID, peer)
	contextKey := fmt.Sprintf("%s|%s|%s|%s|%s",
		reaction.Action, peer.ID, reaction.MessageID, reaction.SenderID, reaction.Emoji)
	if m.recorder.Enqueue(ctx, reactionEventText(reaction), route.SessionKey, contextKey) {
		m.pushStatus(target)
	}
}

// SendReaction sends a tapback on behalf of an account. Used by operator
// tooling; inbound processing never calls it.
func (m *Manager) SendReaction(ctx context.Context, accountID, chatGUID, messageGUID, reaction string) error {
	target := m.findTarget(accountID)
	if target == nil {
		return fmt.Errorf("unknown account: %s", accountID)
	}
	transport := target.Transport
	if transport == nil || !transport.Configured() {
		return fmt.Errorf("transport not configured for account %s", accountID)
	}
	chatGUID = strings.TrimSpace(chatGUID)
	if chatGUID == "" {
		return fmt.Errorf("chat guid is required")
	}
	messageGUID = strings.TrimSpace(messageGUID)
	if messageGUID == "" {
		return fmt.Errorf("message guid is required")
	}
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return fmt.Errorf("reaction is required")
	}
	if m.logger != nil {
		m.logger.Info("reaction outbound",
			slog.String("account_id", accountID),
			slog.String("message_guid", messageGUID),
			slog.String("reaction", reaction))
	}
	if err := transport.SendReaction(ctx, chatGUID, messageGUID, reaction); err != nil {
		target.MarkError(err)
		m.pushStatus(target)
		return fmt.Errorf("send reaction: %w", err)
	}
	target.MarkOutbound(time.Now())
	m.pushStatus(target)
	return nil
}

// Statuses returns status snapshots for every registered target.
func (m *Manager) Statuses() []TargetStatus {
	return m.registry.Statuses()
}

// deliver sends one reply through the target's transport, chunked per the
// account's outbound policy. Chunks go out in order; the first failure
// aborts the remainder.
func (m *Manager) deliver(ctx context.Context, target *Target, chatGUID, reply string) error {
	transport := target.Transport
	if transport == nil || !transport.Configured() {
		return fmt.Errorf("transport not configured")
	}
	if chatGUID == "" {
		return fmt.Errorf("no chat guid resolved")
	}
	policy := OutboundPolicyFor(target.Account)
	for _, chunk := range policy.Chunker(reply, policy.TextChunkLimit) {
		if _, err := transport.SendText(ctx, chatGUID, chunk); err != nil {
			return fmt.Errorf("send text: %w", err)
		}
		target.MarkOutbound(time.Now())
		m.pushStatus(target)
	}
	return nil
}

// deliverMedia downloads one remote reply asset and forwards it through the
// target's transport as an attachment.
func (m *Manager) deliverMedia(ctx context.Context, target *Target, chatGUID, url string) error {
	transport := target.Transport
	if transport == nil || !transport.Configured() {
		return fmt.Errorf("transport not configured")
	}
	if chatGUID == "" {
		return fmt.Errorf("no chat guid resolved")
	}
	asset, err := m.fetcher.FetchRemote(ctx, url, 0)
	if err != nil {
		return fmt.Errorf("fetch reply media: %w", err)
	}
	filename := asset.FileName
	if filename == "" {
		filename = "attachment"
	}
	if _, err := transport.SendAttachment(ctx, chatGUID, filename, asset.Bytes); err != nil {
		return fmt.Errorf("send attachment: %w", err)
	}
	target.MarkOutbound(time.Now())
	m.pushStatus(target)
	return nil
}

// sendPairingReply delivers the one-shot pairing-code message. Failures are
// logged and swallowed; the inbound event never proceeds to dispatch.
func (m *Manager) sendPairingReply(ctx context.Context, target *Target, chatGUID string, lookupKeys []string, isGroup bool, senderID, reply string) {
	resolved := m.resolveChatGUID(ctx, target, chatGUID, lookupKeys, isGroup, senderID)
	if err := m.deliver(ctx, target, resolved, reply); err != nil {
		if m.logger != nil {
			m.logger.Warn("pairing reply failed",
				slog.String("account_id", target.Account.ID),
				slog.String("sender_id", senderID),
				slog.Any("error", err))
		}
		return
	}
	if m.logger != nil {
		m.logger.Info("pairing reply sent",
			slog.String("account_id", target.Account.ID),
			slog.String("sender_id", senderID))
	}
}

// resolveChatGUID picks the delivery chat guid: the normalized guid when the
// event carried one, else a gateway lookup over the candidate keys, else a
// constructed direct-message guid. Empty means the reply cannot be delivered.
func (m *Manager) resolveChatGUID(ctx context.Context, target *Target, chatGUID string, lookupKeys []string, isGroup bool, senderID string) string {
	if trimmed := strings.TrimSpace(chatGUID); trimmed != "" {
		return trimmed
	}
	transport := target.Transport
	if transport != nil && transport.Configured() && len(lookupKeys) > 0 {
		found, err := transport.FindChatGUID(ctx, lookupKeys)
		if err != nil {
			if m.logger != nil {
				m.logger.Debug("chat lookup failed",
					slog.String("account_id", target.Account.ID),
					slog.Any("error", err))
			}
		} else if found != "" {
			return found
		}
	}
	if !isGroup {
		if handle := strings.TrimSpace(senderID); handle != "" {
			return "iMessage;-;" + handle
		}
	}
	return ""
}

func (m *Manager) setTyping(ctx context.Context, transport Transport, chatGUID string, typing bool) {
	if err := transport.SetTyping(ctx, chatGUID, typing); err != nil && m.logger != nil {
		m.logger.Debug("set typing failed",
			slog.String("chat_guid", chatGUID),
			slog.Bool("typing", typing),
			slog.Any("error", err))
	}
}

func (m *Manager) pushStatus(target *Target) {
	if m.statusSink != nil {
		m.statusSink(target.Status())
	}
}

func (m *Manager) findTarget(accountID string) *Target {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil
	}
	for _, target := range m.registry.List() {
		if strings.EqualFold(target.Account.ID, accountID) {
			return target
		}
	}
	return nil
}

// peerFor derives the routing peer. Groups key on the chat identity so the
// whole room shares one session; direct messages key on the sender handle.
func peerFor(isGroup bool, chatGUID, chatID, chatIdentifier, senderID string) routing.Peer {
	if isGroup {
		for _, candidate := range []string{chatGUID, chatID, chatIdentifier} {
			if trimmed := strings.TrimSpace(candidate); trimmed != "" {
				return routing.Peer{Kind: routing.PeerGroup, ID: trimmed}
			}
		}
		return routing.Peer{Kind: routing.PeerGroup, ID: strings.TrimSpace(senderID)}
	}
	return routing.Peer{Kind: routing.PeerDirect, ID: strings.TrimSpace(senderID)}
}

// reactionEventText renders the system-event line for one tapback.
func reactionEventText(reaction *NormalizedReaction) string {
	who := strings.TrimSpace(reaction.SenderName)
	if who == "" {
		who = strings.TrimSpace(reaction.SenderID)
	}
	if reaction.Action == ReactionRemoved {
		return fmt.Sprintf("%s removed a %s reaction", who, reaction.Emoji)
	}
	return fmt.Sprintf("%s reacted with %s", who, reaction.Emoji)
}

func toDispatchMedia(items []MediaItem) []dispatch.Media {
	if len(items) == 0 {
		return nil
	}
	media := make([]dispatch.Media, 0, len(items))
	for _, item := range items {
		media = append(media, dispatch.Media{Path: item.Path, ContentType: item.ContentType})
	}
	return media
}
