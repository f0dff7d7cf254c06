package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Job is the JSON payload published for an external mail worker.
type Job struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html"`
	QueuedAt time.Time `json:"queued_at"`
}

// AMQPMailer publishes mail jobs to a durable RabbitMQ queue. It dials per message.
type AMQPMailer struct {
	url   string
	queue string
	from  string
	dial  func(url string) (*amqp.Connection, error)
}

func NewAMQPMailer(url, queue, from string) (*AMQPMailer, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("mailer: missing AMQP url")
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = "mail.outbound"
	}
	return &AMQPMailer{url: url, queue: queue, from: from, dial: amqp.Dial}, nil
}

// NewJob builds the queue payload for msg.
func (m *AMQPMailer) NewJob(msg Message, now time.Time) Job {
	return Job{From: m.from, To: msg.To, Subject: msg.Subject, HTML: msg.HTML, QueuedAt: now.UTC()}
}

func (m *AMQPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(m.NewJob(msg, time.Now()))
	if err != nil {
		return fmt.Errorf("mailer: marshal job: %w", err)
	}

	conn, err := m.dial(m.url)
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq: dial failed")
		return fmt.Errorf("mailer: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("mailer: open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(m.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("mailer: declare queue: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", m.queue, false, false, pub); err != nil {
		return fmt.Errorf("mailer: publish: %w", err)
	}
	return nil
}
