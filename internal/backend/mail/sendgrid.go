package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/boothprint/internal/backend/fetch"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer sends the image as a PNG attachment through SendGrid
type SendGridMailer struct {
	client  sendClient
	fetcher fetch.Fetcher
	config  Config
}

func NewSendGridMailer(apiKey string, fetcher fetch.Fetcher, config Config) *SendGridMailer {
	return &SendGridMailer{
		client:  sendgrid.NewSendClient(apiKey),
		fetcher: fetcher,
		config:  config,
	}
}

// NewMailer returns a SendGrid mailer when an API key is set, otherwise a LogMailer
func NewMailer(apiKey string, fetcher fetch.Fetcher, config Config) Mailer {
	if apiKey == "" {
		slog.Warn("SENDGRID_API_KEY not set, emails will only be logged")
		return LogMailer{}
	}
	return NewSendGridMailer(apiKey, fetcher, config)
}

func (m *SendGridMailer) SendImage(ctx context.Context, email, imageURL string) error {
	image, err := m.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return fmt.Errorf("failed to fetch image for email: %w", err)
	}
	message, err := m.buildMessage(email, image)
	if err != nil {
		return err
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", resp.StatusCode, resp.Body)
	}

	slog.Info("email sent", "email", email, "status", resp.StatusCode)
	return nil
}

func (m *SendGridMailer) buildMessage(email string, image []byte) (*sgmail.SGMailV3, error) {
	html, err := renderBody()
	if err != nil {
		return nil, fmt.Errorf("failed to render email body: %w", err)
	}

	from := sgmail.NewEmail(m.config.FromName, m.config.From)
	to := sgmail.NewEmail("", email)
	message := sgmail.NewSingleEmail(from, m.config.Subject, to, plainBody, html)

	attachment := sgmail.NewAttachment()
	attachment.SetContent(base64.StdEncoding.EncodeToString(image))
	attachment.SetType("image/png")
	attachment.SetFilename("image.png")
	attachment.SetDisposition("attachment")
	message.AddAttachment(attachment)

	return message, nil
}
