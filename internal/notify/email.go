// Package notify sends guest-facing messages once a reservation is confirmed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// DefaultFromName signs confirmations when EMAIL_FROM_NAME is empty.
const DefaultFromName = "Restaurant Concierge"

// EmailSender delivers a reservation confirmation.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one confirmation. Body is the plain-text part; HTML may be
// empty.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
}

func (m EmailMessage) htmlOrText() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Body
}

// sender is the From line every provider signs with.
type sender struct {
	name    string
	address string
}

func newSender(name, address string) sender {
	if name = strings.TrimSpace(name); name == "" {
		name = DefaultFromName
	}
	return sender{name: name, address: strings.TrimSpace(address)}
}

func (s sender) header() string {
	return fmt.Sprintf("%s <%s>", s.name, s.address)
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender posts confirmations to the SendGrid v3 mail API.
type SendGridSender struct {
	api    sendGridAPI
	from   sender
	logger *logging.Logger
}

// NewSendGridSender returns nil without an API key so callers can fall back
// to SES or the log sender.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil
	}
	return newSendGridSender(sendgrid.NewSendClient(key), cfg, logger)
}

func newSendGridSender(api sendGridAPI, cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{api: api, from: newSender(cfg.FromName, cfg.FromEmail), logger: logger}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.api == nil {
		return errors.New("notify: sendgrid sender has no client")
	}
	email := mail.NewSingleEmail(
		mail.NewEmail(s.from.name, s.from.address),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		msg.htmlOrText(),
	)
	resp, err := s.api.SendWithContext(ctx, email)
	if err != nil {
		s.logger.Error("confirmation email failed", "provider", "sendgrid", "to", msg.To, "error", err)
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		s.logger.Error("confirmation email rejected", "provider", "sendgrid", "to", msg.To, "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("notify: sendgrid status %d", resp.StatusCode)
	}
	s.logger.Info("confirmation email sent", "provider", "sendgrid", "to", msg.To, "status", resp.StatusCode)
	return nil
}

// StubEmailSender only logs. Bootstrap picks it when no provider is set up.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("confirmation email not sent; no provider configured", "to", msg.To, "subject", msg.Subject)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
