package pairing

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bluetaphq/bluetap/internal/channel"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	codeLength   = 8

	// DefaultRequestTTL is how long a pending request stays approvable.
	DefaultRequestTTL = 24 * time.Hour
)

// Notifier alerts the operator about newly created pairing requests.
type Notifier interface {
	NotifyPairingRequest(ctx context.Context, req Request) error
}

// Service issues pairing codes and exposes the approval workflow. It
// satisfies the policy engine's pairing surface.
type Service struct {
	store    Store
	notifier Notifier
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService builds a pairing service over the given store. A non-positive
// ttl falls back to DefaultRequestTTL.
func NewService(log *slog.Logger, store Store, ttl time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	return &Service{
		store:  store,
		ttl:    ttl,
		logger: log.With(slog.String("service", "pairing")),
	}
}

// WithNotifier attaches an operator notifier for newly created requests.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// AllowFrom returns the sender ids approved for the account.
func (s *Service) AllowFrom(ctx context.Context, channelType channel.ChannelType, accountID string) ([]string, error) {
	return s.store.ReadAllowFrom(ctx, string(channelType), accountID)
}

// UpsertRequest registers a pairing request for the sender. An existing
// request keeps its original code and reports Created false.
func (s *Service) UpsertRequest(ctx context.Context, req channel.PairingRequest) (channel.PairingCode, error) {
	code, err := newCode()
	if err != nil {
		return channel.PairingCode{}, err
	}
	res, err := s.store.Upsert(ctx, Request{
		ID:        uuid.NewString(),
		Channel:   string(req.Channel),
		AccountID: req.AccountID,
		SenderID:  req.SenderID,
		Code:      code,
		Meta:      req.Meta,
	})
	if err != nil {
		return channel.PairingCode{}, fmt.Errorf("upsert pairing request: %w", err)
	}
	if res.Created {
		s.logger.Info("pairing request created",
			slog.String("channel", string(req.Channel)),
			slog.String("account", req.AccountID),
			slog.String("sender", req.SenderID))
		s.notifyCreated(ctx, req, res.Code)
	}
	return channel.PairingCode{Code: res.Code, Created: res.Created}, nil
}

// BuildReply renders the one-shot message sent back to an unpaired sender.
func (s *Service) BuildReply(req channel.PairingRequest, code string) string {
	return fmt.Sprintf(
		"Pairing request received.\n\nYour pairing code is: %s\n\nShare it with the operator to approve this conversation. The code expires in %s.",
		code, formatTTL(s.ttl))
}

// Approve marks the pending request carrying the code as approved, which
// adds its sender to the dynamic allow-list.
func (s *Service) Approve(ctx context.Context, channelType channel.ChannelType, accountID, code string) (Request, error) {
	req, err := s.store.Approve(ctx, string(channelType), accountID, code)
	if err != nil {
		return Request{}, err
	}
	s.logger.Info("pairing request approved",
		slog.String("account", accountID),
		slog.String("sender", req.SenderID))
	return req, nil
}

// Revoke removes a sender's request or approval.
func (s *Service) Revoke(ctx context.Context, channelType channel.ChannelType, accountID, senderID string) error {
	if err := s.store.Revoke(ctx, string(channelType), accountID, senderID); err != nil {
		return err
	}
	s.logger.Info("pairing revoked",
		slog.String("account", accountID),
		slog.String("sender", senderID))
	return nil
}

// ListRequests returns the account's requests, optionally filtered by status.
func (s *Service) ListRequests(ctx context.Context, channelType channel.ChannelType, accountID string, status Status) ([]Request, error) {
	return s.store.ListRequests(ctx, string(channelType), accountID, status)
}

// SweepExpired deletes pending requests older than the service TTL.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteExpired(ctx, time.Now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("expired pairing requests removed", slog.Int64("count", removed))
	}
	return removed, nil
}

func (s *Service) notifyCreated(ctx context.Context, req channel.PairingRequest, code string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyPairingRequest(ctx, Request{
		Channel:   string(req.Channel),
		AccountID: req.AccountID,
		SenderID:  req.SenderID,
		Code:      code,
		Status:    StatusPending,
		Meta:      req.Meta,
	})
	if err != nil {
		s.logger.Warn("pairing notification failed",
			slog.String("sender", req.SenderID),
			slog.Any("error", err))
	}
}

// newCode returns an 8-character uppercase base32 code.
func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

func formatTTL(ttl time.Duration) string {
	if ttl%(24*time.Hour) == 0 {
		days := int(ttl / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	if ttl%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(ttl/time.Hour))
	}
	return ttl.String()
}
