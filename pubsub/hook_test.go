package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/pkg/uuidx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTopic struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (t *recordingTopic) Publish(_ context.Context, event events.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.events = append(t.events, event)
	return nil
}

func (t *recordingTopic) Subscribe(context.Context, events.Hook[string]) (Subscription, error) {
	return nil, errors.New("not implemented")
}

func TestPublishingHook(t *testing.T) {
	ctx := context.Background()

	t.Run("maps hook callbacks onto wire events", func(t *testing.T) {
		topic := &recordingTopic{}
		hook := PublishingHook[string](topic)

		runID := uuidx.New()
		hook.OnUserPrompt(ctx, messages.New().WithSender("Jan").UserPrompt("hello"))
		hook.OnAssistantMessage(ctx, messages.Message[messages.AssistantMessage]{
			RunID:  runID,
			Sender: "research",
			Payload: messages.AssistantMessage{
				Content: messages.AssistantContentOrParts{Content: "hi"},
			},
		})
		hook.OnResult(ctx, "done")

		require.Len(t, topic.events, 3)

		req, ok := topic.events[0].(events.Request[messages.UserMessage])
		require.True(t, ok)
		assert.Equal(t, "Jan", req.Sender)

		resp, ok := topic.events[1].(events.Response[messages.AssistantMessage])
		require.True(t, ok)
		assert.Equal(t, runID, resp.RunID)
		assert.Equal(t, "research", resp.Sender)

		result, ok := topic.events[2].(events.Result[string])
		require.True(t, ok)
		assert.Equal(t, "done", result.Result)
	})

	t.Run("run errors pass through unwrapped", func(t *testing.T) {
		topic := &recordingTopic{}
		hook := PublishingHook[string](topic)

		original := events.Error{RunID: uuidx.New(), Err: errors.New("boom")}
		hook.OnError(ctx, original)
		hook.OnError(ctx, errors.New("plain"))

		require.Len(t, topic.events, 2)
		assert.Equal(t, original, topic.events[0])
		fail, ok := topic.events[1].(events.Error)
		require.True(t, ok)
		assert.EqualError(t, fail.Err, "plain")
	})

	t.Run("publish failures do not panic", func(t *testing.T) {
		topic := &recordingTopic{err: errors.New("broker down")}
		hook := PublishingHook[string](topic)
		hook.OnResult(ctx, "dropped")
		assert.Empty(t, topic.events)
	})
}
