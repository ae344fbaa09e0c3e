// Package mail sends transactional mail through an HTTP mail-provider
// API.
package mail

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/healthlog/healthlog/internal/config"
	"go.uber.org/zap"
)

// Mailer posts messages to the configured mail API. When no endpoint is
// configured, sends are logged and dropped so development setups work
// without a provider.
type Mailer struct {
	client *resty.Client
	cfg    config.MailConfig
	log    *zap.Logger
}

// NewMailer creates a mailer.
func NewMailer(cfg config.MailConfig, log *zap.Logger) *Mailer {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Mailer{client: client, cfg: cfg, log: log}
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// SendVerification mails the email-verification link for a freshly
// registered account.
func (m *Mailer) SendVerification(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", m.cfg.BaseURL, token)
	body := fmt.Sprintf(`<p>Welcome to Health Log.</p><p>Verify your email: <a href="%s">%s</a></p>`, link, link)
	return m.send(ctx, message{
		From:    m.cfg.From,
		To:      to,
		Subject: "Verify your Health Log account",
		HTML:    body,
	})
}

func (m *Mailer) send(ctx context.Context, msg message) error {
	if m.cfg.Endpoint == "" {
		m.log.Info("mail endpoint not configured, dropping message",
			zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return nil
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post(m.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail provider returned %s", resp.Status())
	}
	return nil
}
