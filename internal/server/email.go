package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strings"

	"document-gateway/internal/config"

	"go.uber.org/zap"
)

// EmailService sends contact notifications over SMTP.
type EmailService struct {
	cfg config.EmailConfig
	log *zap.Logger
}

func NewEmailService(cfg config.EmailConfig, log *zap.Logger) *EmailService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SMTPPort == "" {
		cfg.SMTPPort = "587"
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.SMTPUser
	}
	return &EmailService{cfg: cfg, log: log}
}

// SendEmail sends an HTML message. When email is disabled it only logs.
func (s *EmailService) SendEmail(to, subject, body string) error {
	if !s.cfg.Enabled {
		s.log.Debug("email disabled, not sending", zap.String("to", to), zap.String("subject", subject))
		return nil
	}
	if s.cfg.SMTPHost == "" || s.cfg.SMTPUser == "" || s.cfg.SMTPPassword == "" {
		return errors.New("SMTP not configured")
	}
	if to == "" {
		return errors.New("no recipient configured")
	}

	msg := buildMessage(s.cfg.FromEmail, to, subject, body)
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	addr := net.JoinHostPort(s.cfg.SMTPHost, s.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.cfg.FromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	s.log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", "", "\n", "").Replace(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// NotifyContact mails the operator about a new submission.
func (s *EmailService) NotifyContact(ctx context.Context, n ContactNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("New contact: %s (%s)", n.Name, n.Service)
	return s.SendEmail(s.cfg.NotifyEmail, subject, contactEmailBody(n))
}

func contactEmailBody(n ContactNotification) string {
	e := html.EscapeString
	return fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h2>New contact submission</h2>
	<table>
		<tr><td><b>Contact ID</b></td><td>%s</td></tr>
		<tr><td><b>Name</b></td><td>%s</td></tr>
		<tr><td><b>Email</b></td><td>%s</td></tr>
		<tr><td><b>Company</b></td><td>%s</td></tr>
		<tr><td><b>Service</b></td><td>%s</td></tr>
		<tr><td><b>Budget</b></td><td>%s</td></tr>
		<tr><td><b>Received</b></td><td>%s</td></tr>
	</table>
	<p style="white-space: pre-wrap;">%s</p>
</body>
</html>`,
		e(n.ContactID), e(n.Name), e(n.Email), e(n.Company), e(n.Service), e(n.Budget),
		isoTimestamp(n.Timestamp), e(n.Message))
}
