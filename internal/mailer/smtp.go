package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

type SMTPOptions struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer delivers through an SMTP relay with PLAIN auth when credentials are set.
type SMTPMailer struct {
	addr     string
	host     string
	auth     smtp.Auth
	from     string
	envelope string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(opts SMTPOptions) (*SMTPMailer, error) {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		return nil, errors.New("mailer: missing SMTP host")
	}
	port := strings.TrimSpace(opts.Port)
	if port == "" {
		port = "587"
	}
	sender, err := mail.ParseAddress(opts.From)
	if err != nil {
		return nil, fmt.Errorf("mailer: invalid sender %q: %w", opts.From, err)
	}

	var auth smtp.Auth
	if opts.Username != "" {
		auth = smtp.PlainAuth("", opts.Username, opts.Password, host)
	}
	return &SMTPMailer{
		addr:     net.JoinHostPort(host, port),
		host:     host,
		auth:     auth,
		from:     opts.From,
		envelope: sender.Address,
		send:     smtp.SendMail,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	raw, err := Encode(m.from, msg, time.Now())
	if err != nil {
		return err
	}
	recipient, err := mail.ParseAddress(msg.To)
	if err != nil {
		return err
	}

	// net/smtp has no context support; run it aside and honour cancellation.
	done := make(chan error, 1)
	go func() {
		done <- m.send(m.addr, m.auth, m.envelope, []string{recipient.Address}, raw)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
