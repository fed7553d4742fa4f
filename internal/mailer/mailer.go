// Package mailer sends templated plain-text mail over SMTPS.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/pmontanari/screenops/internal/config"
)

type Mailer struct {
	cfg config.SMTP
}

func New(cfg config.SMTP) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether outbound mail is configured. Operations skip
// sends silently when it is not, mirroring the dry-run posture.
func (m *Mailer) Enabled() bool {
	return m.cfg.User != "" && m.cfg.AppPassword != ""
}

// Send submits one plain-text message over implicit TLS.
func (m *Mailer) Send(ctx context.Context, toEmail, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.User); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.AppPassword),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send to %s: %w", toEmail, err)
	}
	return nil
}

// Render substitutes the {name} placeholder in a template body.
func Render(template, name string) string {
	return strings.ReplaceAll(template, "{name}", name)
}

// SendTemplate renders a template body for the recipient's name and
// sends it.
func (m *Mailer) SendTemplate(ctx context.Context, toEmail, subject, template, name string) error {
	return m.Send(ctx, toEmail, subject, Render(template, name))
}
