// Package foundry orchestrates conversations across LLM agents.
//
// A Workflow is an ordered list of steps, each addressing a named agent
// with a prompt. Running a workflow needs an ExecutionContext, built
// with Local, which wires an executor, an event hook, and a promise for
// the typed final result.
//
//	researcher := agent.New(
//		agent.Name("researcher"),
//		agent.Instructions("You research topics thoroughly."),
//	)
//
//	wf := foundry.New(
//		foundry.Agents(researcher),
//		foundry.Steps(foundry.Step(researcher.Name(), "Summarize the state of RISC-V")),
//	)
//
//	if err := foundry.Run(ctx, wf, foundry.Local[string](hook)); err != nil {
//		// handle error
//	}
//
// Hooks observe every event of the run (prompts, chunks, tool calls,
// the final result); structured output, streaming, turn limits, and the
// runtime context are configured with options on Local. The network
// package builds on this to route a single user message to the best
// agent of a catalog.
package foundry
