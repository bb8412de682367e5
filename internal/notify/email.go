package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
)

type SMTPConfig struct {
	Host     string
	Port     int `default:"587"`
	Username string
	Password string
	From     string `default:"editorial@localhost"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSink mails a notification to the recipient's directory address.
type EmailSink struct {
	cfg      SMTPConfig
	users    storage.UserDirectory
	sendMail sendMailFunc
}

func NewEmailSink(cfg SMTPConfig, users storage.UserDirectory) *EmailSink {
	return &EmailSink{cfg: cfg, users: users, sendMail: smtp.SendMail}
}

func (s *EmailSink) Name() string {
	return "email"
}

func (s *EmailSink) Deliver(ctx context.Context, n domain.Notification) error {
	user, err := s.users.GetUser(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient %s: %w", n.RecipientID, err)
	}
	if user.Email == "" {
		return nil
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(addr, auth, s.cfg.From, []string{user.Email}, buildMessage(s.cfg.From, user.Email, n)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to string, n domain.Notification) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(n.Subject) + "\r\n")
	b.WriteString("Message-ID: <" + n.ID.String() + "@editorial>\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(n.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
