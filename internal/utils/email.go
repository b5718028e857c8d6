package utils

import (
	"bytes"
	"context"
	"fmt"

	"cedra_orders/internal/config"

	"github.com/wneessen/go-mail"
)

type Attachment struct {
	Name string
	Data []byte
}

type Email struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer envoie les e-mails transactionnels par SMTP (login + TLS obligatoire).
type Mailer struct {
	cfg config.SMTPConfig
}

// NewMailer retourne nil si SMTP_HOST n'est pas configuré.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	if cfg.Host == "" {
		return nil
	}
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Send(ctx context.Context, e Email) error {
	msg, err := m.build(e)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("client smtp: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func (m *Mailer) build(e Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(e.To); err != nil {
		return nil, err
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(mail.TypeTextHTML, e.HTML)
	for _, a := range e.Attachments {
		msg.AttachReader(a.Name, bytes.NewReader(a.Data))
	}
	return msg, nil
}
