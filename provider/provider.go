// Package provider abstracts the LLM backends. Implementations stream
// completions as typed events over a channel so the executor can treat
// OpenAI and Gemini uniformly.
package provider

import (
	"context"

	"github.com/deanmachines/foundry/internal/shortterm"
	"github.com/deanmachines/foundry/tool"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// Provider executes chat completions against a model backend. The
// returned channel carries Delim, Chunk, Response, and Error events and
// is closed when the completion finishes.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// CompletionParams carries everything a provider needs for one
// completion request.
type CompletionParams struct {
	// RunID identifies the run this completion belongs to.
	RunID uuid.UUID

	// Instructions is the rendered system prompt for this turn.
	Instructions string

	// Thread holds the conversation history to send to the model.
	Thread *shortterm.Aggregator

	// Stream requests incremental chunks instead of a single response.
	Stream bool

	// ResponseSchema, when set, asks the model to emit JSON matching
	// the schema.
	ResponseSchema *StructuredOutput

	// Model names the concrete model to use. It is the api.Model of
	// the active agent, declared structurally to avoid a cycle.
	Model interface {
		Name() string
		Provider() Provider
	}

	// Tools lists the functions the model may call this turn.
	Tools []tool.Definition

	// ParallelToolCalls allows the model to issue several tool calls in
	// one turn. Routers turn this off to force a single decision.
	ParallelToolCalls bool

	_ struct{}
}

// StructuredOutput describes a JSON response format by name and schema.
type StructuredOutput struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}
