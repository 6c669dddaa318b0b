// Package events defines the typed events that flow through a run's
// topic and the hooks that consume them.
//
// It lifts provider stream events into run events with sender
// attribution, and serializes them with a type discriminator so they
// survive a trip through an external broker:
//
//   - Delim: stream boundary markers
//   - Chunk[T]: incremental response fragments
//   - Request[T]: inbound messages (user prompts, tool responses)
//   - Response[T]: completed model turns
//   - Result[T]: the terminal value of a run
//   - Error: failures with run context preserved
//
// Hooks receive these events on the subscriber side. LoggingHook logs
// everything, CompositeHook fans out to several hooks at once.
package events
