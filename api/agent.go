// Package api holds the interfaces that tie the framework together
// without creating import cycles between the agent, tool, and provider
// packages.
package api

import (
	"github.com/deanmachines/foundry/tool"
	"github.com/deanmachines/foundry/types"
)

// Agent is the capability surface every agent exposes to the runtime.
// Configuration is immutable once built; methods return values rather
// than allowing runtime mutation.
type Agent interface {
	// Name returns the agent's unique identifier. It is stable across
	// sessions and is used for registry lookups, handoffs, and logging.
	Name() string

	// Model returns the model this agent runs on, which in turn knows
	// the provider that can execute completions for it.
	Model() Model

	// Tools returns the tool definitions this agent may invoke.
	Tools() []tool.Definition

	// ParallelToolCalls reports whether the agent allows compatible
	// tool calls from a single turn to run concurrently.
	ParallelToolCalls() bool

	// RenderInstructions produces the system prompt for a turn. The
	// runtime context supplies the template variables, so instructions
	// can vary per request without rebuilding the agent.
	RenderInstructions(types.RuntimeContext) (string, error)
}
