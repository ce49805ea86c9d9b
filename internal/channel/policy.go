package channel

import (
	"context"
	"log/slog"
	"strings"
)

// PairingRequest identifies an unrecognized sender asking for access.
type PairingRequest struct {
	Channel   ChannelType
	AccountID string
	SenderID  string
	Meta      map[string]string
}

// PairingCode is the store's answer to an upsert: the active code for the
// sender and whether this call created the request.
type PairingCode struct {
	Code    string
	Created bool
}

// PairingService is the minimal pairing-store surface the policy engine
// consumes.
type PairingService interface {
	AllowFrom(ctx context.Context, channelType ChannelType, accountID string) ([]string, error)
	UpsertRequest(ctx context.Context, req PairingRequest) (PairingCode, error)
	BuildReply(req PairingRequest, code string) string
}

// PolicyDecision is the verdict for one inbound event. Allow false with an
// empty Reply means silent drop; a non-empty Reply carries the one-shot
// pairing-code message for the sender.
type PolicyDecision struct {
	Allow bool
	Reply string
}

// PolicyEngine decides allow, deny, or pair for normalized events against
// an account's static lists merged with the live pairing store.
type PolicyEngine struct {
	pairing PairingService
	logger  *slog.Logger
}

// NewPolicyEngine creates a PolicyEngine. pairing may be nil, in which case
// the dynamic allow-list is empty and pairing requests silently drop.
func NewPolicyEngine(log *slog.Logger, pairing PairingService) *PolicyEngine {
	if log == nil {
		log = slog.Default()
	}
	return &PolicyEngine{
		pairing: pairing,
		logger:  log.With(slog.String("component", "policy")),
	}
}

// eventIdentity is the match surface shared by messages and reactions.
type eventIdentity struct {
	senderID       string
	senderName     string
	chatID         string
	chatGUID       string
	chatIdentifier string
	chatName       string
}

// EvaluateMessage runs the decision procedure for an inbound message.
// FromMe messages always drop to prevent echo loops.
func (e *PolicyEngine) EvaluateMessage(ctx context.Context, account AccountConfig, msg *NormalizedMessage) PolicyDecision {
	if msg == nil || msg.FromMe {
		return PolicyDecision{}
	}
	return e.evaluate(ctx, account, eventIdentity{
		senderID:       msg.SenderID,
		senderName:     msg.SenderName,
		chatID:         msg.ChatID,
		chatGUID:       msg.ChatGUID,
		chatIdentifier: msg.ChatIdentifier,
		chatName:       msg.ChatName,
	}, msg.IsGroup)
}

// EvaluateReaction runs the same gate for an inbound reaction.
func (e *PolicyEngine) EvaluateReaction(ctx context.Context, account AccountConfig, reaction *NormalizedReaction) PolicyDecision {
	if reaction == nil || reaction.FromMe {
		return PolicyDecision{}
	}
	return e.evaluate(ctx, account, eventIdentity{
		senderID:       reaction.SenderID,
		senderName:     reaction.SenderName,
		chatID:         reaction.ChatID,
		chatGUID:       reaction.ChatGUID,
		chatIdentifier: reaction.ChatIdentifier,
		chatName:       reaction.ChatName,
	}, reaction.IsGroup)
}

func (e *PolicyEngine) evaluate(ctx context.Context, account AccountConfig, ident eventIdentity, isGroup bool) PolicyDecision {
	account = account.Normalize()
	dynamic := e.dynamicAllowList(ctx, account)

	if isGroup {
		switch account.GroupPolicy {
		case PolicyOpen:
			return PolicyDecision{Allow: true}
		case PolicyAllowlist:
			static := account.GroupAllowFrom
			if len(static) == 0 {
				static = account.AllowFrom
			}
			effective := mergeAllowLists(static, dynamic)
			if len(effective) == 0 || !ident.matches(effective) {
				return PolicyDecision{}
			}
			return PolicyDecision{Allow: true}
		default:
			return PolicyDecision{}
		}
	}

	switch account.DMPolicy {
	case PolicyOpen:
		return PolicyDecision{Allow: true}
	case PolicyAllowlist:
		if ident.matches(mergeAllowLists(account.AllowFrom, dynamic)) {
			return PolicyDecision{Allow: true}
		}
		return PolicyDecision{}
	case PolicyPairing:
		if ident.matches(mergeAllowLists(account.AllowFrom, dynamic)) {
			return PolicyDecision{Allow: true}
		}
		return e.requestPairing(ctx, account, ident)
	default:
		return PolicyDecision{}
	}
}

// requestPairing records (or re-reads) the sender's pairing request. Only a
// newly created request earns the one-shot code reply; the event itself
// never proceeds to dispatch.
func (e *PolicyEngine) requestPairing(ctx context.Context, account AccountConfig, ident eventIdentity) PolicyDecision {
	if e.pairing == nil {
		return PolicyDecision{}
	}
	req := PairingRequest{
		Channel:   TypeBlueBubbles,
		AccountID: account.ID,
		SenderID:  ident.senderID,
		Meta:      pairingMeta(ident),
	}
	result, err := e.pairing.UpsertRequest(ctx, req)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("pairing request failed",
				slog.String("account_id", account.ID),
				slog.String("sender_id", ident.senderID),
				slog.Any("error", err))
		}
		return PolicyDecision{}
	}
	if !result.Created {
		return PolicyDecision{}
	}
	return PolicyDecision{Reply: e.pairing.BuildReply(req, result.Code)}
}

func pairingMeta(ident eventIdentity) map[string]string {
	meta := map[string]string{}
	if ident.senderName != "" {
		meta["sender_name"] = ident.senderName
	}
	if ident.chatGUID != "" {
		meta["chat_guid"] = ident.chatGUID
	}
	if ident.chatName != "" {
		meta["chat_name"] = ident.chatName
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func (e *PolicyEngine) dynamicAllowList(ctx context.Context, account AccountConfig) []string {
	if e.pairing == nil {
		return nil
	}
	entries, err := e.pairing.AllowFrom(ctx, TypeBlueBubbles, account.ID)
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("read dynamic allow list failed",
				slog.String("account_id", account.ID),
				slog.Any("error", err))
		}
		return nil
	}
	return entries
}

// matches reports whether any allow-list entry matches this event. A bare
// entry matches the sender id or any chat field; entries with a
// chat_id:/chat_guid:/chat_identifier: prefix match only that field. First
// match wins, no priority among fields.
func (i eventIdentity) matches(allowList []string) bool {
	for _, entry := range allowList {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		switch {
		case strings.HasPrefix(entry, "chat_guid:"):
			if equalsFold(strings.TrimPrefix(entry, "chat_guid:"), i.chatGUID) {
				return true
			}
		case strings.HasPrefix(entry, "chat_id:"):
			if equalsFold(strings.TrimPrefix(entry, "chat_id:"), i.chatID) {
				return true
			}
		case strings.HasPrefix(entry, "chat_identifier:"):
			if equalsFold(strings.TrimPrefix(entry, "chat_identifier:"), i.chatIdentifier) {
				return true
			}
		default:
			if equalsFold(entry, i.senderID) ||
				equalsFold(entry, i.chatID) ||
				equalsFold(entry, i.chatGUID) ||
				equalsFold(entry, i.chatIdentifier) {
				return true
			}
		}
	}
	return false
}

func equalsFold(entry, value string) bool {
	entry = strings.TrimSpace(entry)
	value = strings.TrimSpace(value)
	if entry == "" || value == "" {
		return false
	}
	return strings.EqualFold(entry, value)
}

func mergeAllowLists(static, dynamic []string) []string {
	if len(static) == 0 && len(dynamic) == 0 {
		return nil
	}
	merged := make([]string, 0, len(static)+len(dynamic))
	seen := map[string]struct{}{}
	for _, list := range [][]string{static, dynamic} {
		for _, entry := range list {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			key := strings.ToLower(entry)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, entry)
		}
	}
	return merged
}
