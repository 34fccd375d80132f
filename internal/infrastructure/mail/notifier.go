package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"IntelRadar/internal/config"
	"IntelRadar/internal/domain"
	"IntelRadar/internal/logging"
	"IntelRadar/internal/ports"
)

const sendTimeout = 30 * time.Second

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// Notifier delivers the run digest through an authenticated SMTP relay.
type Notifier struct {
	cfg       config.MailConfig
	logger    *slog.Logger
	newSender func(config.MailConfig) (sender, error)
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier keeps relay settings. Without credentials PublishDigest is a no-op.
func NewNotifier(cfg config.MailConfig, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger, newSender: dialer}
}

// Name identifies the channel in logs.
func (n *Notifier) Name() string { return "mail" }

// PublishDigest sends one plain-text message with the digest subject and body.
func (n *Notifier) PublishDigest(ctx context.Context, digest domain.Digest) error {
	if !n.cfg.Enabled() {
		n.log().Info("mail credentials not configured, skipping")
		return nil
	}

	msg, err := n.buildMessage(digest)
	if err != nil {
		return err
	}

	client, err := n.newSender(n.cfg)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	n.log().Info("mail sent", "recipient", n.recipient(), "records", len(digest.Records))
	return nil
}

func (n *Notifier) buildMessage(digest domain.Digest) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if n.cfg.SenderName != "" {
		if err := msg.FromFormat(n.cfg.SenderName, n.cfg.Username); err != nil {
			return nil, fmt.Errorf("set sender: %w", err)
		}
	} else if err := msg.From(n.cfg.Username); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(n.recipient()); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(digest.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, digest.Body)
	return msg, nil
}

func (n *Notifier) recipient() string {
	if n.cfg.Recipient != "" {
		return n.cfg.Recipient
	}
	return n.cfg.Username
}

func (n *Notifier) log() *slog.Logger {
	if n.logger == nil {
		return logging.Discard()
	}
	return n.logger
}

// dialer upgrades with STARTTLS before authenticating; plaintext relays are refused.
func dialer(cfg config.MailConfig) (sender, error) {
	return gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthLogin),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTimeout(sendTimeout),
	)
}
