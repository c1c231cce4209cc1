package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPMailer delivers mail through an SMTP relay. STARTTLS is used when the
// server offers it; AUTH PLAIN when a username is set.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	port := m.Port
	if port == 0 {
		port = 25
	}
	timeout := m.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Username),
			mail.WithPassword(m.Password),
		)
	}
	return mail.NewClient(m.Host, opts...)
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, from string, to []string, subject, body string) error {
	msg, err := BuildMessage(from, to, subject, body, time.Now())
	if err != nil {
		return err
	}
	c, err := m.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	port := m.Port
	if port == 0 {
		port = 25
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", net.JoinHostPort(m.Host, strconv.Itoa(port)), err)
	}
	return nil
}

// BuildMessage renders a plain text UTF-8 message.
func BuildMessage(from string, to []string, subject, body string, date time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("recipients %v: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(date)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP relay is configured.
type LogMailer struct{}

// Send implements Mailer.
func (LogMailer) Send(_ context.Context, from string, to []string, subject, body string) error {
	slog.Warn("no smtp relay configured, message logged only", "from", from, "to", to, "subject", subject, "body", body)
	return nil
}
