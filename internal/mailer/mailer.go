// Package mailer delivers transactional email. Drivers are selected by
// MAIL_DRIVER: log (default), smtp, amqp (queue for an external sender) and
// outbox (RFC 5322 files written to object storage).
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"velovis/internal/config"
	"velovis/internal/storage"

	"github.com/google/uuid"
)

const (
	DriverLog    = "log"
	DriverSMTP   = "smtp"
	DriverAMQP   = "amqp"
	DriverOutbox = "outbox"
)

// Message is one outgoing HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends a message. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the configured driver.
func New(cfg config.Config) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MailDriver)) {
	case "", DriverLog:
		return NewLogMailer(cfg.MailFrom), nil
	case DriverSMTP:
		return NewSMTPMailer(SMTPOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	case DriverAMQP:
		return NewAMQPMailer(cfg.AMQPURL, cfg.MailQueue, cfg.MailFrom)
	case DriverOutbox:
		store, err := storage.NewObjectStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("mailer: outbox storage: %w", err)
		}
		return NewOutboxMailer(store, cfg.MailFrom), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver: %s", cfg.MailDriver)
	}
}

func (m Message) validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("mailer: invalid recipient %q: %w", m.To, err)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mailer: subject is empty")
	}
	return nil
}

// Encode renders msg as an RFC 5322 message with a quoted-printable HTML body.
func Encode(from string, msg Message, date time.Time) ([]byte, error) {
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("mailer: invalid sender %q: %w", from, err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}

	domain := "localhost"
	if at := strings.LastIndex(sender.Address, "@"); at >= 0 {
		domain = sender.Address[at+1:]
	}

	var buf bytes.Buffer
	header := func(k, v string) {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}
	header("From", sender.String())
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(msg.HTML)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
