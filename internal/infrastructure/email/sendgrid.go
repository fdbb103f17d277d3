package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender implements Sender using the SendGrid v3 API
type SendGridSender struct {
	apiKey   string
	from     string
	fromName string
	logger   *slog.Logger
}

func NewSendGridSender(apiKey, from, fromName string, logger *slog.Logger) *SendGridSender {
	if logger == nil {
		logger = slog.Default()
	}
	if fromName == "" {
		fromName = "Tenantplane"
	}
	return &SendGridSender{apiKey: apiKey, from: from, fromName: fromName, logger: logger}
}

// Send composes and delivers one message. Plaintext tokens arrive here only
// inside the invitation URL and are never logged.
func (s *SendGridSender) Send(_ context.Context, to string, kind Kind, data map[string]string) error {
	if s.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}

	subject, body, err := composeMessage(kind, data)
	if err != nil {
		return err
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.from),
		subject,
		mail.NewEmail("", to),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d", response.StatusCode)
	}

	s.logger.Info("mail sent",
		slog.String("kind", string(kind)),
		slog.Int("status", response.StatusCode),
	)
	return nil
}

func composeMessage(kind Kind, data map[string]string) (subject, body string, err error) {
	switch kind {
	case KindInvitation:
		subject = fmt.Sprintf("You have been invited to join %s", data["organization"])
		body = fmt.Sprintf(
			"You have been invited to join %s as %s.\n\n"+
				"Open the link below to accept the invitation. The link is valid for 7 days and can be used once.\n\n"+
				"  %s\n\n"+
				"If you were not expecting this invitation you can ignore this message.\n",
			data["organization"], data["role"], data["url"],
		)
	case KindTenantReceived:
		subject = "Your registration has been received"
		body = fmt.Sprintf(
			"Thanks for registering %s. Your application is pending review; we will notify you once a decision is made.\n",
			data["organization"],
		)
	case KindTenantApproved:
		subject = "Your organization has been approved"
		body = fmt.Sprintf(
			"Good news: %s has been approved and your workspace is now active.\n",
			data["organization"],
		)
	case KindTenantRejected:
		subject = "Your registration was not approved"
		body = fmt.Sprintf(
			"Unfortunately %s was not approved.\n\nReason: %s\n",
			data["organization"], data["reason"],
		)
	default:
		return "", "", fmt.Errorf("unknown email kind %q", kind)
	}
	return subject, body, nil
}
