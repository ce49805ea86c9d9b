// Package notify delivers operator notifications over SMTP.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	mail "github.com/wneessen/go-mail"

	"github.com/bluetaphq/bluetap/internal/pairing"
)

// Config holds SMTP settings for operator notifications. Notifications are
// disabled while Host, From, or To is empty.
type Config struct {
	Host     string   `toml:"host" json:"host"`
	Port     int      `toml:"port" json:"port"`
	Username string   `toml:"username" json:"username"`
	Password string   `toml:"password" json:"password"`
	Security string   `toml:"security" json:"security" validate:"omitempty,oneof=tls starttls none"`
	From     string   `toml:"from" json:"from"`
	To       []string `toml:"to" json:"to"`
}

// Mailer emails the operator when a pairing request is created.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
}

// NewMailer builds a mailer. Port defaults to 587 and security to starttls.
func NewMailer(log *slog.Logger, cfg Config) *Mailer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if strings.TrimSpace(cfg.Security) == "" {
		cfg.Security = "starttls"
	}
	return &Mailer{cfg: cfg, logger: log.With(slog.String("service", "notify"))}
}

// Enabled reports whether the mailer has enough configuration to send.
func (m *Mailer) Enabled() bool {
	return strings.TrimSpace(m.cfg.Host) != "" &&
		strings.TrimSpace(m.cfg.From) != "" &&
		len(m.cfg.To) > 0
}

// NotifyPairingRequest emails the pairing code and sender details to the
// operator. A disabled mailer is a silent no-op.
func (m *Mailer) NotifyPairingRequest(ctx context.Context, req pairing.Request) error {
	if !m.Enabled() {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(fmt.Sprintf("Pairing request from %s", req.SenderID))
	msg.SetBodyString(mail.TypeTextPlain, renderPairingBody(req))
	msg.SetMessageID()

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password))
	}
	switch m.cfg.Security {
	case "tls":
		opts = append(opts, mail.WithSSLPort(false), mail.WithTLSPolicy(mail.TLSMandatory))
	case "starttls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	m.logger.Info("pairing notification sent",
		slog.String("account", req.AccountID),
		slog.String("sender", req.SenderID))
	return nil
}

func renderPairingBody(req pairing.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new pairing request is waiting for approval.\n\n")
	fmt.Fprintf(&b, "Channel:  %s\n", req.Channel)
	fmt.Fprintf(&b, "Account:  %s\n", req.AccountID)
	fmt.Fprintf(&b, "Sender:   %s\n", req.SenderID)
	fmt.Fprintf(&b, "Code:     %s\n", req.Code)
	if len(req.Meta) > 0 {
		keys := make([]string, 0, len(req.Meta))
		for k := range req.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, req.Meta[k])
		}
	}
	b.WriteString("\nApprove with: bluetap pairing approve <account> <code>\n")
	return b.String()
}
