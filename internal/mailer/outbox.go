package mailer

import (
	"context"
	"time"

	"velovis/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const outboxCategory = "outbox"

// OutboxMailer archives every message as an .eml object; a separate relay
// (or an operator in development) picks them up from the store.
type OutboxMailer struct {
	store storage.ObjectStore
	from  string
	now   func() time.Time
}

func NewOutboxMailer(store storage.ObjectStore, from string) *OutboxMailer {
	return &OutboxMailer{store: store, from: from, now: time.Now}
}

func (m *OutboxMailer) Send(ctx context.Context, msg Message) error {
	now := m.now()
	raw, err := Encode(m.from, msg, now)
	if err != nil {
		return err
	}
	key := storage.ObjectKey(outboxCategory, now, uuid.NewString(), "eml")
	stored, err := m.store.Put(ctx, key, raw, "message/rfc822")
	if err != nil {
		return err
	}
	logrus.WithField("key", stored).WithField("to", msg.To).Info("mail written to outbox")
	return nil
}
