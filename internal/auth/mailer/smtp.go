package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/loandocs/loandocs/pkg/cryptox"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
}

// SMTPMailer is the production Mailer backed by an SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
	dial   func(*gomail.Message) error
}

func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, logger: logger}
	m.dial = func(msg *gomail.Message) error {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		return d.DialAndSend(msg)
	}
	return m
}

func (m *SMTPMailer) send(to, subject, htmlBody string) error {
	if m.cfg.Host == "" || m.cfg.FromEmail == "" {
		return fmt.Errorf("smtp config missing")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.FromEmail)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dial(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) SendMagicLink(ctx context.Context, to, magicLinkURL string, ttlHours int) error {
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Sign in to your loan documents</h2>
    <p>Use the button below to sign in. The link works once and expires in %d hours.</p>
    <div style="text-align:center; margin: 20px 0;">
      <a href="%s" style="display:inline-block; padding: 12px 20px; background: #0f172a; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold;">Sign in</a>
    </div>
    <p style="font-size: 12px; color: #6b7280;">If you did not request this email you can safely ignore it.</p>
  </div>
</body>
</html>`, ttlHours, magicLinkURL)

	if err := m.send(to, "Your sign-in link", body); err != nil {
		return err
	}
	m.logger.Info("magic link email sent", slog.String("email_hash", cryptox.Hash(to)))
	return nil
}

func (m *SMTPMailer) SendVerificationCode(ctx context.Context, to, code string, ttlMinutes int) error {
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Your verification code</h2>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>The code expires in %d minutes.</p>
    <p style="font-size: 12px; color: #6b7280;">If you did not request this code you can safely ignore it.</p>
  </div>
</body>
</html>`, code, ttlMinutes)

	if err := m.send(to, "Your verification code", body); err != nil {
		return err
	}
	m.logger.Info("verification code email sent", slog.String("email_hash", cryptox.Hash(to)))
	return nil
}
