package trace

import (
	"context"

	"github.com/deanmachines/foundry/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/deanmachines/foundry/trace"

var _ provider.Provider = (*tracedProvider)(nil)

type tracedProvider struct {
	next provider.Provider
}

// Provider wraps a model provider so each ChatCompletion becomes a
// span. The span stays open until the event stream closes, and token
// usage accumulated on the thread is attached at that point.
func Provider(next provider.Provider) provider.Provider {
	return &tracedProvider{next: next}
}

func (t *tracedProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	tracer := otel.Tracer(tracerName)

	attrs := []attribute.KeyValue{
		attribute.String("llm.run_id", params.RunID.String()),
		attribute.Bool("llm.stream", params.Stream),
		attribute.Int("llm.tools", len(params.Tools)),
	}
	if params.Model != nil {
		attrs = append(attrs, attribute.String("llm.model", params.Model.Name()))
	}

	ctx, span := tracer.Start(ctx, "llm.chat_completion",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(attrs...),
	)

	stream, err := t.next.ChatCompletion(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	out := make(chan provider.StreamEvent)
	go func() {
		defer close(out)
		defer span.End()

		for event := range stream {
			if fail, ok := event.(provider.Error); ok && fail.Err != nil {
				span.RecordError(fail.Err)
				span.SetStatus(codes.Error, fail.Err.Error())
			}
			// A consumer that walked away must not pin the span open,
			// so forwarding gives up once the context is done.
			select {
			case out <- event:
			case <-ctx.Done():
				for range stream {
				}
				span.SetStatus(codes.Error, ctx.Err().Error())
				return
			}
		}

		if params.Thread != nil {
			usage := params.Thread.Usage()
			span.SetAttributes(
				attribute.Int64("llm.usage.prompt_tokens", usage.PromptTokens),
				attribute.Int64("llm.usage.completion_tokens", usage.CompletionTokens),
				attribute.Int64("llm.usage.total_tokens", usage.TotalTokens),
				attribute.Int("llm.turns", params.Thread.TurnLen()),
			)
		}
	}()
	return out, nil
}
