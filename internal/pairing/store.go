// Package pairing issues one-shot codes to unrecognized senders and tracks
// operator approvals. Approved senders surface through the dynamic
// allow-list the policy engine merges with static account lists.
package pairing

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no pairing request matches the lookup.
var ErrNotFound = errors.New("pairing request not found")

// Status of a pairing request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Request is one pairing request.
type Request struct {
	ID        string            `json:"id"`
	Channel   string            `json:"channel"`
	AccountID string            `json:"account_id"`
	SenderID  string            `json:"sender_id"`
	Code      string            `json:"code"`
	Status    Status            `json:"status"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// UpsertResult reports the active code for a sender and whether the upsert
// created a new request.
type UpsertResult struct {
	Code    string
	Created bool
}

// Store persists pairing requests.
type Store interface {
	// Upsert inserts the request unless one already exists for the same
	// (channel, account, sender). The existing request's code wins.
	Upsert(ctx context.Context, req Request) (UpsertResult, error)
	// Approve marks the pending request carrying the code as approved.
	Approve(ctx context.Context, channel, accountID, code string) (Request, error)
	// Revoke deletes a sender's request, approved or not.
	Revoke(ctx context.Context, channel, accountID, senderID string) error
	// ListRequests returns requests for an account, optionally filtered by
	// status, newest first.
	ListRequests(ctx context.Context, channel, accountID string, status Status) ([]Request, error)
	// ReadAllowFrom returns the sender ids of approved requests.
	ReadAllowFrom(ctx context.Context, channel, accountID string) ([]string, error)
	// DeleteExpired removes pending requests last touched before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
