package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPMailer is the store-and-forward channel: the relay queues and retries delivery.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// NewSMTPMailerFromEnv returns nil when SMTP_HOST is not configured.
func NewSMTPMailerFromEnv() *SMTPMailer {
	host := stringFromEnv("SMTP_HOST", "")
	if host == "" {
		return nil
	}
	return &SMTPMailer{
		Host:     host,
		Port:     intFromEnv("SMTP_PORT", 587),
		Username: stringFromEnv("SMTP_USERNAME", ""),
		Password: stringFromEnv("SMTP_PASSWORD", ""),
		From:     stringFromEnv("SMTP_FROM", "no-reply@localhost"),
		Timeout:  time.Duration(intFromEnv("SMTP_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func (m *SMTPMailer) SendEmail(ctx context.Context, address, subject, body string) error {
	if m == nil {
		return errors.New("smtp mailer is not configured")
	}
	if strings.TrimSpace(address) == "" {
		return errors.New("recipient address is required")
	}

	addr := net.JoinHostPort(m.Host, fmt.Sprint(m.Port))
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	msg := buildMessage(m.From, address, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.From, []string{address}, msg)
	}()

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("smtp send to %s timed out after %s", address, timeout)
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + strings.ReplaceAll(subject, "\n", " ") + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
