package events

import (
	"context"
	"log/slog"
	"slices"

	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/pkg/slogx"
	json "github.com/goccy/go-json"
)

// Hook receives the lifecycle events of a run. There is deliberately no
// no-op implementation: every consumer decides explicitly what to do
// with each event type, and new event types force an update at compile
// time.
type Hook[T any] interface {
	OnUserPrompt(context.Context, messages.Message[messages.UserMessage])

	OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage])

	OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage])

	OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage])

	OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage])

	OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse])

	OnResult(context.Context, T)

	OnError(context.Context, error)
}

// LoggingHook returns a hook that logs every event through slog.
func LoggingHook[T any]() Hook[T] {
	return &loggingHook[T]{}
}

type loggingHook[T any] struct{}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func (loggingHook[T]) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	slog.InfoContext(ctx, "User prompt", "message", mustJSON(msg))
}

func (loggingHook[T]) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	slog.InfoContext(ctx, "Assistant chunk", "message", mustJSON(msg))
}

func (loggingHook[T]) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	slog.InfoContext(ctx, "Tool call chunk", "message", mustJSON(msg))
}

func (loggingHook[T]) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	slog.InfoContext(ctx, "Assistant message", "message", mustJSON(msg))
}

func (loggingHook[T]) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	slog.InfoContext(ctx, "Tool call", "message", mustJSON(msg))
}

func (loggingHook[T]) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	slog.InfoContext(ctx, "Tool call response", "message", mustJSON(msg))
}

func (loggingHook[T]) OnResult(ctx context.Context, result T) {
	slog.InfoContext(ctx, "completion result", "result", mustJSON(result))
}

func (loggingHook[T]) OnError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "completion error", slogx.Error(err))
}

// NewCompositeHook fans events out to all the provided hooks in order.
func NewCompositeHook[T any](hooks ...Hook[T]) Hook[T] {
	return CompositeHook[T](hooks)
}

// CompositeHook combines multiple hooks into one implementation.
type CompositeHook[T any] []Hook[T]

func (c CompositeHook[T]) OnUserPrompt(ctx context.Context, up messages.Message[messages.UserMessage]) {
	for h := range slices.Values(c) {
		h.OnUserPrompt(ctx, up)
	}
}

func (c CompositeHook[T]) OnAssistantChunk(ctx context.Context, ac messages.Message[messages.AssistantMessage]) {
	for h := range slices.Values(c) {
		h.OnAssistantChunk(ctx, ac)
	}
}

func (c CompositeHook[T]) OnToolCallChunk(ctx context.Context, tc messages.Message[messages.ToolCallMessage]) {
	for h := range slices.Values(c) {
		h.OnToolCallChunk(ctx, tc)
	}
}

func (c CompositeHook[T]) OnAssistantMessage(ctx context.Context, am messages.Message[messages.AssistantMessage]) {
	for h := range slices.Values(c) {
		h.OnAssistantMessage(ctx, am)
	}
}

func (c CompositeHook[T]) OnToolCallMessage(ctx context.Context, tm messages.Message[messages.ToolCallMessage]) {
	for h := range slices.Values(c) {
		h.OnToolCallMessage(ctx, tm)
	}
}

func (c CompositeHook[T]) OnToolCallResponse(ctx context.Context, tr messages.Message[messages.ToolResponse]) {
	for h := range slices.Values(c) {
		h.OnToolCallResponse(ctx, tr)
	}
}

func (c CompositeHook[T]) OnResult(ctx context.Context, result T) {
	for h := range slices.Values(c) {
		h.OnResult(ctx, result)
	}
}

func (c CompositeHook[T]) OnError(ctx context.Context, err error) {
	for h := range slices.Values(c) {
		h.OnError(ctx, err)
	}
}
