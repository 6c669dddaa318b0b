package executor

import (
	"context"

	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/provider"
	"github.com/deanmachines/foundry/tool"
	"github.com/deanmachines/foundry/types"
)

// Mock Provider

type mockProvider struct {
	responses  []provider.StreamEvent
	err        error
	lastParams provider.CompletionParams
	streamCh   chan provider.StreamEvent
}

func (m *mockProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	if m.err != nil {
		return nil, m.err
	}

	m.lastParams = params

	if m.streamCh != nil {
		return m.streamCh, nil
	}

	ch := make(chan provider.StreamEvent, len(m.responses))
	for _, resp := range m.responses {
		ch <- resp
	}
	close(ch)
	return ch, nil
}

// Mock Agent

type mockAgent struct {
	testName         string
	testModel        testModel
	testTools        []tool.Definition
	instructionsErr  error
	testInstructions string
	parallel         bool
}

func (m *mockAgent) Name() string {
	if m.testName == "" {
		return "mock_agent"
	}
	return m.testName
}

func (m *mockAgent) Model() api.Model {
	return m.testModel
}

func (m *mockAgent) Tools() []tool.Definition {
	return m.testTools
}

func (m *mockAgent) ParallelToolCalls() bool {
	return m.parallel
}

func (m *mockAgent) RenderInstructions(rc types.RuntimeContext) (string, error) {
	if m.instructionsErr != nil {
		return "", m.instructionsErr
	}
	if m.testInstructions == "" {
		return "mock instructions", nil
	}
	return m.testInstructions, nil
}

// Mock Hook

type mockHook[T any] struct {
	onAssistantMessage func(ctx context.Context, msg messages.Message[messages.AssistantMessage])
	onToolCallResponse func(ctx context.Context, msg messages.Message[messages.ToolResponse])
	onError            func(ctx context.Context, err error)
}

func (h *mockHook[T]) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {}

func (h *mockHook[T]) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
}

func (h *mockHook[T]) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
}

func (h *mockHook[T]) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	if h.onAssistantMessage != nil {
		h.onAssistantMessage(ctx, msg)
	}
}

func (h *mockHook[T]) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
}

func (h *mockHook[T]) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	if h.onToolCallResponse != nil {
		h.onToolCallResponse(ctx, msg)
	}
}

func (h *mockHook[T]) OnResult(ctx context.Context, result T) {}

func (h *mockHook[T]) OnError(ctx context.Context, err error) {
	if h.onError != nil {
		h.onError(ctx, err)
	}
}

// Test Model

type testModel struct {
	provider provider.Provider
}

func (m testModel) Provider() provider.Provider { return m.provider }
func (m testModel) Name() string                { return "test_model" }

// Helper Functions

func newTestAgent() *mockAgent {
	prov := &mockProvider{
		responses: []provider.StreamEvent{
			provider.Response[messages.AssistantMessage]{
				Response: messages.AssistantMessage{
					Content: messages.AssistantContentOrParts{
						Content: "test result",
					},
				},
			},
		},
	}
	return &mockAgent{
		testName:  "test_agent",
		testModel: testModel{provider: prov},
		testTools: []tool.Definition{
			{
				Name:     "test_tool",
				Function: func() string { return "result" },
			},
		},
	}
}
