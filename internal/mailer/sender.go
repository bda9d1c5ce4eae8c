// Package mailer composes and delivers the outbound message over SMTP
// as multipart/alternative with a plain-text part derived from the
// HTML, no templates, no locales.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"regexp"
	"strings"
	"time"

	mail "github.com/go-mail/mail/v2"

	"github.com/krultra/smtp-agent/pkg/logger"
)

// Sender composes and transports one message, returning a boolean
// success plus an error message string. The engine does not
// distinguish failure categories beyond that.
type Sender interface {
	Send(ctx context.Context, to []string, subject, html string) (success bool, errMessage string)
}

// Config is the subset of internal/config.Config the SMTP client needs.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	FromEmail          string
	FromName           string
	DialTimeout        time.Duration
	InsecureSkipVerify bool
}

// SMTPSender dials the configured relay for every send rather than
// holding a pooled connection open.
type SMTPSender struct {
	cfg Config
}

func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject, html string) (bool, string) {
	if s.cfg.Host == "" {
		logger.Current().Warn("SMTP host not configured, message not sent")
		return false, "SMTP host not configured"
	}
	if len(to) == 0 {
		return false, "no recipients specified"
	}

	m := mail.NewMessage()
	from := s.cfg.FromEmail
	if from == "" {
		return false, "SMTP_FROM_EMAIL not set"
	}
	m.SetHeader("From", m.FormatAddress(from, s.cfg.FromName))
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", stripTags(html))
	m.AddAlternative("text/html", html)

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	// STARTTLS is opt-in via SMTP_USE_TLS; implicit TLS is inferred from
	// the conventional SSL port so 465 works without an extra knob.
	if s.cfg.Port == 465 {
		d.SSL = true
		d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	} else if s.cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}

	timeout := s.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d.Timeout = timeout

	logger.Current().Info("sending message", "to", to, "subject", subject)

	if err := d.DialAndSend(m); err != nil {
		return false, fmt.Errorf("smtp: %w", err).Error()
	}
	return true, ""
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags produces a crude plain-text alternative for the
// text/plain part so the message is genuinely multipart/alternative
// rather than HTML-only.
func stripTags(html string) string {
	text := tagPattern.ReplaceAllString(html, "")
	return strings.TrimSpace(text)
}
