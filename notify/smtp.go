package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/pkg/errors"
)

var _ Mailer = (*SMTPMailer)(nil)

// SMTPMailer sends mail over SMTP with implicit TLS.
type SMTPMailer struct {
	host string
	port string
	user string
	pass string
	from string
}

func NewSMTPMailer(host, port, user, pass, from string) *SMTPMailer {
	if from == "" {
		from = user
	}
	return &SMTPMailer{host: host, port: port, user: user, pass: pass, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)

	conn, err := (&tls.Dialer{Config: &tls.Config{ServerName: m.host}}).DialContext(ctx, "tcp", m.host+":"+m.port)
	if err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] tls dial")
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] smtp client")
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	if err = client.Auth(auth); err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] auth")
	}
	if err = client.Mail(m.from); err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] mail from")
	}
	if err = client.Rcpt(to); err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] rcpt to")
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] data")
	}
	if _, err = w.Write([]byte(msg)); err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] write")
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] close")
	}
	return client.Quit()
}
