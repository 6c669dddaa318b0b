// Package executor drives agent runs. A RunCommand bundles the agent,
// the conversation thread, the observing hook, and the limits for one
// run; Local executes it as a reactor loop that streams provider
// events, dispatches tool calls through reflection, and follows agent
// handoffs until an assistant message completes the promise.
//
// Tool functions may accept a types.RuntimeContext parameter, which is
// injected by the executor and hidden from the model. A tool that
// returns an api.Agent transfers the run to that agent.
package executor
