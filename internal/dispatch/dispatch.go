// Package dispatch hands normalized inbound events to the reply pipeline.
// The pipeline is modeled as a capability set of optional hooks so the
// orchestrator can bracket side-channel signals around reply generation
// without knowing how replies are produced.
package dispatch

import (
	"context"

	"github.com/bluetaphq/bluetap/internal/routing"
)

// Error kinds reported through the OnError hook.
const (
	ErrKindDispatch = "dispatch"
	ErrKindReply    = "reply"
)

// Media is one persisted inbound attachment forwarded to the pipeline.
type Media struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
}

// Request carries one normalized inbound event and its resolved route.
type Request struct {
	Channel     string        `json:"channel"`
	Route       routing.Route `json:"route"`
	SenderID    string        `json:"sender_id"`
	SenderName  string        `json:"sender_name,omitempty"`
	ChatName    string        `json:"chat_name,omitempty"`
	IsGroup     bool          `json:"is_group"`
	MessageID   string        `json:"message_id,omitempty"`
	TimestampMs int64         `json:"timestamp_ms,omitempty"`
	Text        string        `json:"text"`
	Media       []Media       `json:"media,omitempty"`
}

// Options is the capability set a dispatcher may invoke while producing a
// reply. Absent hooks are no-ops. DeliverMedia receives one remote asset
// URL per call, after all text has been delivered.
type Options struct {
	Deliver      func(ctx context.Context, text string) error
	DeliverMedia func(ctx context.Context, url string) error
	OnReplyStart func(ctx context.Context)
	OnIdle       func(ctx context.Context)
	OnError      func(ctx context.Context, kind string, err error)
}

// NotifyReplyStart invokes OnReplyStart when present.
func (o Options) NotifyReplyStart(ctx context.Context) {
	if o.OnReplyStart != nil {
		o.OnReplyStart(ctx)
	}
}

// NotifyIdle invokes OnIdle when present.
func (o Options) NotifyIdle(ctx context.Context) {
	if o.OnIdle != nil {
		o.OnIdle(ctx)
	}
}

// NotifyError invokes OnError when present.
func (o Options) NotifyError(ctx context.Context, kind string, err error) {
	if o.OnError != nil && err != nil {
		o.OnError(ctx, kind, err)
	}
}

// Dispatcher turns one inbound event into zero or more reply deliveries
// through the Options hooks.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request, opts Options) error
}
