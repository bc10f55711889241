package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/vietddude/vitality/internal/core/config"
)

const mailTimeout = 60 * time.Second

// MailSink sends alerts over SMTP with mandatory STARTTLS.
type MailSink struct {
	username string
	password string
	server   string
	port     uint16
	from     string
	to       string
}

// NewMailSink creates a sink from the SMTP fields of s.
func NewMailSink(s config.Settings) *MailSink {
	return &MailSink{
		username: s.SMTPUsername,
		password: s.SMTPPassword,
		server:   s.SMTPServer,
		port:     s.SMTPPort,
		from:     s.EmailFrom,
		to:       s.EmailTo,
	}
}

func (m *MailSink) Name() string { return "mail" }

// Send delivers alert as a plain text mail.
func (m *MailSink) Send(ctx context.Context, alert Alert) error {
	msg, err := m.buildMessage(alert)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.server,
		mail.WithPort(int(m.port)),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.username),
		mail.WithPassword(m.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(mailTimeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *MailSink) buildMessage(alert Alert) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", m.from, err)
	}
	if err := msg.To(m.to); err != nil {
		return nil, fmt.Errorf("invalid to address %q: %w", m.to, err)
	}
	msg.Subject(alert.Subject)

	msg.SetBodyString(mail.TypeTextPlain, alert.Body)
	return msg, nil
}
