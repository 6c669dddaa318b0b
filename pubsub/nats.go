package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/pkg/slogx"
	"github.com/deanmachines/foundry/pkg/uuidx"
	"github.com/nats-io/nats.go"
)

const defaultSubjectPrefix = "foundry.run"

// NATS returns a broker that fans events out over a NATS connection.
// Every run maps to one subject under the foundry.run prefix, so
// subscribers in other processes observe the same event stream as
// local ones.
func NATS[T any](conn *nats.Conn) Broker[T] {
	return &natsBroker[T]{conn: conn, prefix: defaultSubjectPrefix}
}

type natsBroker[T any] struct {
	conn   *nats.Conn
	prefix string
}

func (b *natsBroker[T]) Topic(_ context.Context, id string) Topic[T] {
	return &natsTopic[T]{
		conn:    b.conn,
		subject: fmt.Sprintf("%s.%s", b.prefix, id),
	}
}

type natsTopic[T any] struct {
	conn    *nats.Conn
	subject string
}

func (t *natsTopic[T]) Publish(_ context.Context, event events.Event) error {
	data, err := events.ToJSON(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	return t.conn.Publish(t.subject, data)
}

func (t *natsTopic[T]) Subscribe(ctx context.Context, hook events.Hook[T]) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}

	sub, err := t.conn.Subscribe(t.subject, func(msg *nats.Msg) {
		event, err := events.FromJSON(msg.Data)
		if err != nil {
			slog.WarnContext(ctx, "dropping undecodable event", "subject", t.subject, slogx.Error(err))
			return
		}
		dispatchEvent(ctx, hook, event)
	})
	if err != nil {
		return nil, err
	}

	id := uuidx.NewString()
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	return &natsSubscription{id: id, sub: sub}, nil
}

type natsSubscription struct {
	id  string
	sub *nats.Subscription
}

func (s *natsSubscription) ID() string {
	return s.id
}

func (s *natsSubscription) Unsubscribe() {
	_ = s.sub.Unsubscribe()
}
