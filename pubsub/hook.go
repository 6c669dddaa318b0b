package pubsub

import (
	"context"
	"log/slog"

	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/pkg/slogx"
)

// EventHook adapts a per-event callback into a run hook. The callback
// receives the same wire events a topic subscriber would, which makes it
// the inverse of dispatchEvent.
func EventHook[T any](emit func(context.Context, events.Event) error) events.Hook[T] {
	return &eventHook[T]{emit: emit}
}

// PublishingHook returns a hook that republishes every run event onto
// the given topic, so remote subscribers observe the run as it happens.
func PublishingHook[T any](topic Topic[T]) events.Hook[T] {
	return EventHook[T](topic.Publish)
}

type eventHook[T any] struct {
	emit func(context.Context, events.Event) error
}

func (h *eventHook[T]) send(ctx context.Context, event events.Event) {
	if err := h.emit(ctx, event); err != nil {
		slog.WarnContext(ctx, "dropping undeliverable event", slogx.Error(err))
	}
}

func (h *eventHook[T]) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	h.send(ctx, events.Request[messages.UserMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Message:   msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (h *eventHook[T]) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.send(ctx, events.Chunk[messages.AssistantMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Chunk:     msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (h *eventHook[T]) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	h.send(ctx, events.Chunk[messages.ToolCallMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Chunk:     msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (h *eventHook[T]) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.send(ctx, events.Response[messages.AssistantMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Response:  msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (h *eventHook[T]) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	h.send(ctx, events.Response[messages.ToolCallMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Response:  msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (h *eventHook[T]) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	h.send(ctx, events.Request[messages.ToolResponse]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Message:   msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (h *eventHook[T]) OnResult(ctx context.Context, result T) {
	h.send(ctx, events.Result[T]{Result: result})
}

func (h *eventHook[T]) OnError(ctx context.Context, err error) {
	if ee, ok := err.(events.Error); ok {
		h.send(ctx, ee)
		return
	}
	h.send(ctx, events.Error{Err: err})
}
