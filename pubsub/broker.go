package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/pkg/uuidx"
)

const defaultSlowSubscriberTimeout = 100 * time.Millisecond

// Broker hands out topics, one per run.
type Broker[T any] interface {
	Topic(context.Context, string) Topic[T]
}

// Topic carries the events of a single run to its subscribers.
type Topic[T any] interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook[T]) (Subscription, error)
}

// Subscription is a handle to an active topic subscription.
type Subscription interface {
	ID() string
	Unsubscribe()
}

type broker[T any] struct {
	topics                *haxmap.Map[string, *topic[T]]
	slowSubscriberTimeout time.Duration
}

// Local returns an in-process broker. Subscribers that fail to drain
// their buffer within the slow-subscriber timeout are dropped.
func Local[T any]() Broker[T] {
	return &broker[T]{
		topics:                haxmap.New[string, *topic[T]](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

func (b *broker[T]) Topic(ctx context.Context, id string) Topic[T] {
	topic, _ := b.topics.GetOrCompute(id, func() *topic[T] {
		return &topic[T]{
			id:                    id,
			subscriptions:         haxmap.New[string, *subscription[T]](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return topic
}

type topic[T any] struct {
	id                    string
	subscriptions         *haxmap.Map[string, *subscription[T]]
	slowSubscriberTimeout time.Duration
}

func (t *topic[T]) Publish(ctx context.Context, event events.Event) error {
	t.subscriptions.ForEach(func(id string, sub *subscription[T]) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case sub.channel <- event:
		case <-time.After(t.slowSubscriberTimeout):
			// buffer stayed full for the whole grace period
			sub.Unsubscribe()
		}
		return true
	})
	return nil
}

func (t *topic[T]) Subscribe(ctx context.Context, hook events.Hook[T]) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	return t.newSubscription(ctx, hook), nil
}

func (t *topic[T]) newSubscription(ctx context.Context, hook events.Hook[T]) *subscription[T] {
	id := uuidx.NewString()
	sub := &subscription[T]{
		id:      id,
		ctx:     ctx,
		channel: make(chan events.Event, 50),
		onClose: func() { t.subscriptions.Del(id) },
		hook:    hook,
	}
	t.subscriptions.Set(id, sub)
	go sub.forwardToHook()
	return sub
}

type subscription[T any] struct {
	id        string
	ctx       context.Context
	channel   chan events.Event
	closeOnce sync.Once
	onClose   func()
	hook      events.Hook[T]
}

func (s *subscription[T]) ID() string {
	return s.id
}

func (s *subscription[T]) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.channel)
	})
}

func (s *subscription[T]) forwardToHook() {
	for {
		select {
		case event, ok := <-s.channel:
			if !ok {
				return
			}
			dispatchEvent(s.ctx, s.hook, event)
		case <-s.ctx.Done():
			return
		}
	}
}
