// Package notify delivers customer mail and records activity feed events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message is one outbound HTML email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Result reports a dispatch attempt. Err is set when Success is false.
type Result struct {
	Success   bool
	MessageID string
	Err       error
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer sends mail through an SMTP relay. It does not retry.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers msg. Cancellation of ctx is honored before the dial only.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}
	if strings.TrimSpace(msg.To) == "" {
		return Result{Err: errors.New("notify: empty recipient")}
	}
	id := messageID(m.cfg.From)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.From, []string{msg.To}, buildMIME(m.cfg.From, id, msg))
	}()
	select {
	case err := <-done:
		if err != nil {
			return Result{Err: fmt.Errorf("smtp send: %w", err)}
		}
		return Result{Success: true, MessageID: id}
	case <-time.After(m.cfg.Timeout):
		return Result{Err: fmt.Errorf("smtp send: timed out after %s", m.cfg.Timeout)}
	}
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "> ")
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}

func buildMIME(from, id string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Message-ID: " + id + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	return []byte(b.String())
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) Result {
	id := "log-" + uuid.NewString()
	m.Logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("message_id", id).
		Int("body_bytes", len(msg.HTMLBody)).
		Msg("email not sent: no SMTP host configured")
	return Result{Success: true, MessageID: id}
}
