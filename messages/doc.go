// Package messages defines the conversation envelope exchanged between
// users, agents, and tools. Every entry in a run's history is a
// Message[T] carrying a typed payload plus run metadata (run and turn
// ids, sender, timestamp, and an optional JSON metadata blob).
//
// Payload types mirror the chat roles providers understand:
//
//   - InstructionsMessage: the rendered system prompt
//   - UserMessage: user input, plain text or multi-part content
//   - AssistantMessage: model output, text or a refusal
//   - ToolCallMessage: tool invocations requested by the model
//   - ToolResponse: the result of running a tool
//   - Retry: a failed tool call fed back to the model for another attempt
//
// Messages are built through the fluent builder:
//
//	msg := messages.New().WithSender("triage").UserPrompt("hello")
//
// All payloads serialize to JSON with a "type" discriminator so a
// heterogeneous history round-trips through Message[ModelMessage].
package messages
