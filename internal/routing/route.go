// Package routing derives stable agent routes from conversation identity.
// The same peer must always resolve to the same session key so replies and
// system events land in one conversation thread.
package routing

import (
	"fmt"
	"strings"
)

// DefaultAgentID is used when neither the account nor the resolver names an
// agent.
const DefaultAgentID = "main"

// PeerKind distinguishes direct and group conversations.
type PeerKind string

const (
	PeerDirect PeerKind = "dm"
	PeerGroup  PeerKind = "group"
)

// Peer identifies the remote side of a conversation. For groups the ID is
// the chat identity; for DMs the sender handle.
type Peer struct {
	Kind PeerKind
	ID   string
}

// Route is the resolved delivery coordinate for one inbound event.
type Route struct {
	AgentID    string `json:"agent_id"`
	AccountID  string `json:"account_id"`
	SessionKey string `json:"session_key"`
}

// Resolver builds routes with a configurable fallback agent.
type Resolver struct {
	defaultAgentID string
}

// NewResolver creates a Resolver. An empty defaultAgentID falls back to
// DefaultAgentID.
func NewResolver(defaultAgentID string) *Resolver {
	defaultAgentID = strings.TrimSpace(defaultAgentID)
	if defaultAgentID == "" {
		defaultAgentID = DefaultAgentID
	}
	return &Resolver{defaultAgentID: defaultAgentID}
}

// Resolve derives the route for a peer on one account. agentID may be empty,
// in which case the resolver default applies. Resolution is deterministic
// and idempotent.
func (r *Resolver) Resolve(channelType, agentID, accountID string, peer Peer) Route {
	agent := strings.TrimSpace(agentID)
	if agent == "" {
		agent = r.defaultAgentID
	}
	kind := peer.Kind
	if kind == "" {
		kind = PeerDirect
	}
	return Route{
		AgentID:   agent,
		AccountID: strings.TrimSpace(accountID),
		SessionKey: fmt.Sprintf("agent:%s:%s:%s:%s:%s",
			agent,
			strings.TrimSpace(channelType),
			strings.TrimSpace(accountID),
			kind,
			strings.TrimSpace(peer.ID)),
	}
}
