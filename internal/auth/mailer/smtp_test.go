package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/loandocs/loandocs/pkg/cryptox"
)

func newStubbedMailer(buf *bytes.Buffer) *SMTPMailer {
	cfg := SMTPConfig{Host: "smtp.example.com", Port: 587, FromEmail: "auth@example.com"}
	m := NewSMTPMailer(cfg, slog.New(slog.NewJSONHandler(buf, nil)))
	m.dial = func(*gomail.Message) error { return nil }
	return m
}

func TestSendLogsHashedRecipientOnly(t *testing.T) {
	t.Parallel()

	const to = "borrower@example.com"

	t.Run("magic link", func(t *testing.T) {
		var buf bytes.Buffer
		m := newStubbedMailer(&buf)

		err := m.SendMagicLink(context.Background(), to, "https://auth.example.com/ml/opaque-link-token", 24)
		require.NoError(t, err)

		logged := buf.String()
		require.NotContains(t, logged, to)
		require.NotContains(t, logged, "opaque-link-token")
		require.Contains(t, logged, cryptox.Hash(to))
	})

	t.Run("verification code", func(t *testing.T) {
		var buf bytes.Buffer
		m := newStubbedMailer(&buf)

		err := m.SendVerificationCode(context.Background(), to, "482913", 10)
		require.NoError(t, err)

		logged := buf.String()
		require.NotContains(t, logged, to)
		require.NotContains(t, logged, "482913")
		require.Contains(t, logged, cryptox.Hash(to))
	})
}

func TestSendRejectsEmptyRecipient(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := newStubbedMailer(&buf)

	err := m.SendMagicLink(context.Background(), "  ", "https://auth.example.com/ml/x", 24)
	require.Error(t, err)
	require.Empty(t, buf.String())
}
