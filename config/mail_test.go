package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPMailerFromEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "")
	assert.Nil(t, NewSMTPMailerFromEnv())

	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_FROM", "alerts@example.com")
	t.Setenv("SMTP_TIMEOUT_SECONDS", "")
	m := NewSMTPMailerFromEnv()
	require.NotNil(t, m)
	assert.Equal(t, "smtp.example.com", m.Host)
	assert.Equal(t, 2525, m.Port)
	assert.Equal(t, "alerts@example.com", m.From)
	assert.Equal(t, 10*time.Second, m.Timeout)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("alerts@example.com", "admin@example.com", "Indicator IND-AFC-01\nbreached", "current value 15% > target 10%"))

	headers, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, headers, "From: alerts@example.com\r\n")
	assert.Contains(t, headers, "To: admin@example.com\r\n")
	assert.Contains(t, headers, "Subject: Indicator IND-AFC-01 breached\r\n", "subject stays on one header line")
	assert.Equal(t, "current value 15% > target 10%", body)
}

func TestSMTPMailer_RejectsBadInput(t *testing.T) {
	var none *SMTPMailer
	assert.Error(t, none.SendEmail(context.Background(), "a@example.com", "s", "b"))

	m := &SMTPMailer{Host: "smtp.example.com", Port: 25}
	assert.Error(t, m.SendEmail(context.Background(), "  ", "s", "b"))
}
