// Package mail delivers password recovery messages.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers a recovery link to an address
type Sender interface {
	SendRecovery(ctx context.Context, toEmail, link string) error
}

const recoverySubject = "Reset your password"

func recoveryBody(link string) string {
	return fmt.Sprintf("Someone asked to reset the password for this account.\n\n"+
		"Follow this link to choose a new password:\n%s\n\n"+
		"If this wasn't you, ignore this message.\n", link)
}

// SMTPSender sends mail through an SMTP server via go-mail
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials
func NewSMTPSender(host string, port int, username, password, fromEmail string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
	}
}

// SendRecovery implements Sender
func (s *SMTPSender) SendRecovery(ctx context.Context, toEmail, link string) error {
	msg, err := Message(s.fromEmail, toEmail, link)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// LogSender writes recovery links to the log. Used when no SMTP host is set.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendRecovery implements Sender
func (s *LogSender) SendRecovery(ctx context.Context, toEmail, link string) error {
	s.logger.InfoContext(ctx, "password recovery requested", "to", toEmail, "link", link)
	return nil
}

// Message builds the recovery message
func Message(from, to, link string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(recoverySubject)
	msg.SetBodyString(gomail.TypeTextPlain, recoveryBody(link))
	return msg, nil
}
