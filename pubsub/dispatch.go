package pubsub

import (
	"context"
	"fmt"

	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/messages"
	json "github.com/goccy/go-json"
)

// dispatchEvent maps a run event onto the matching hook callback. Delim
// events are stream control and are not forwarded.
func dispatchEvent[T any](ctx context.Context, hook events.Hook[T], event events.Event) {
	switch event := event.(type) {
	case events.Delim:
	case events.Request[messages.UserMessage]:
		hook.OnUserPrompt(ctx, messages.Message[messages.UserMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Message,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Chunk[messages.AssistantMessage]:
		hook.OnAssistantChunk(ctx, messages.Message[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Chunk[messages.ToolCallMessage]:
		hook.OnToolCallChunk(ctx, messages.Message[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Request[messages.ToolResponse]:
		hook.OnToolCallResponse(ctx, messages.Message[messages.ToolResponse]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Message,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Response[messages.ToolCallMessage]:
		hook.OnToolCallMessage(ctx, messages.Message[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Response,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Response[messages.AssistantMessage]:
		hook.OnAssistantMessage(ctx, messages.Message[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Response,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Result[T]:
		hook.OnResult(ctx, event.Result)
	case events.Result[json.RawMessage]:
		// events decoded off the wire carry the result as raw JSON
		var result T
		if err := json.Unmarshal(event.Result, &result); err != nil {
			hook.OnError(ctx, fmt.Errorf("invalid result payload: %w", err))
			return
		}
		hook.OnResult(ctx, result)
	case events.Error:
		hook.OnError(ctx, event.Err)
	default:
		panic(fmt.Sprintf("unknown event type: %T", event))
	}
}
