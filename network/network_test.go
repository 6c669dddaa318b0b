package network

import (
	"context"
	"sync"
	"testing"

	"github.com/deanmachines/foundry"
	"github.com/deanmachines/foundry/agent"
	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays one canned stream per completion call.
type scriptedProvider struct {
	mu      sync.Mutex
	scripts [][]provider.StreamEvent
	calls   int
}

func (s *scriptedProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	s.mu.Lock()
	var script []provider.StreamEvent
	if s.calls < len(s.scripts) {
		script = s.scripts[s.calls]
	}
	s.calls++
	s.mu.Unlock()

	ch := make(chan provider.StreamEvent, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type scriptedModel struct {
	p provider.Provider
}

func (m scriptedModel) Provider() provider.Provider { return m.p }
func (m scriptedModel) Name() string                { return "scripted" }

type resultHook struct {
	mu      sync.Mutex
	results []string
	errs    []error
	senders []string
}

func (h *resultHook) OnUserPrompt(context.Context, messages.Message[messages.UserMessage]) {}
func (h *resultHook) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {
}
func (h *resultHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage]) {}
func (h *resultHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.senders = append(h.senders, msg.Sender)
}
func (h *resultHook) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage]) {
}
func (h *resultHook) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse]) {}
func (h *resultHook) OnResult(ctx context.Context, result string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
}
func (h *resultHook) OnError(ctx context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}
func (h *resultHook) OnClose(context.Context) {}

func specialist(name, specialty string, model api.Model) api.Agent {
	return agent.New(
		agent.Name(name),
		agent.Model(model),
		agent.Instructions("You are the "+specialty+"."),
	)
}

func TestNew(t *testing.T) {
	model := scriptedModel{}

	t.Run("builds a router with one transfer tool per member", func(t *testing.T) {
		n := New(
			Name("deskside"),
			Model(model),
			Agents(
				specialist("research", "researcher", model),
				specialist("stock analyst", "stock analyst", model),
			),
			Specialty("research", "deep research and source gathering"),
		)

		router := n.Router()
		assert.Equal(t, "deskside", router.Name())
		require.Len(t, router.Tools(), 2)
		assert.Equal(t, "transfer_to_research", router.Tools()[0].Name)
		assert.Equal(t, "transfer_to_stock_analyst", router.Tools()[1].Name)
		assert.False(t, router.ParallelToolCalls())

		instructions, err := router.RenderInstructions(nil)
		require.NoError(t, err)
		assert.Contains(t, instructions, "research: deep research and source gathering")
		assert.Contains(t, instructions, "transfer to research")
	})

	t.Run("default route falls back to the first member", func(t *testing.T) {
		n := New(Agents(specialist("utility", "generalist", model)))
		assert.Equal(t, "utility", n.defaultRoute)
	})

	t.Run("panics without agents", func(t *testing.T) {
		assert.Panics(t, func() { New(Name("empty")) })
	})

	t.Run("panics on unknown default route", func(t *testing.T) {
		assert.Panics(t, func() {
			New(
				Agents(specialist("research", "researcher", model)),
				DefaultRoute("ghost"),
			)
		})
	})
}

func TestTransferTool(t *testing.T) {
	target := specialist("stock analyst", "stock analyst", scriptedModel{})
	def := TransferTool(target, "quotes and market data")

	assert.Equal(t, "transfer_to_stock_analyst", def.Name)
	assert.Contains(t, def.Description, "quotes and market data")

	fn, ok := def.Function.(func() api.Agent)
	require.True(t, ok)
	assert.Equal(t, target, fn())
}

func TestGenerate(t *testing.T) {
	t.Run("router hands off and the specialist answers", func(t *testing.T) {
		prov := &scriptedProvider{
			scripts: [][]provider.StreamEvent{
				{
					provider.Response[messages.ToolCallMessage]{
						Response: messages.ToolCallMessage{
							ToolCalls: []messages.ToolCallData{
								{ID: "call_1", Name: "transfer_to_research", Arguments: "{}"},
							},
						},
					},
				},
				{
					provider.Response[messages.AssistantMessage]{
						Response: messages.AssistantMessage{
							Content: messages.AssistantContentOrParts{Content: "here is what I found"},
						},
					},
				},
			},
		}
		model := scriptedModel{p: prov}

		n := New(
			Name("deskside"),
			Model(model),
			Agents(
				specialist("research", "researcher", model),
				specialist("utility", "generalist", model),
			),
			DefaultRoute("utility"),
		)

		hook := &resultHook{}
		err := Generate(context.Background(), n, "what is new in RISC-V?", foundry.Local[string](hook))
		require.NoError(t, err)

		assert.Equal(t, 2, prov.calls)
		require.Len(t, hook.results, 1)
		assert.Equal(t, "here is what I found", hook.results[0])
		require.NotEmpty(t, hook.senders)
		assert.Equal(t, "research", hook.senders[len(hook.senders)-1])
	})

	t.Run("router may answer directly", func(t *testing.T) {
		prov := &scriptedProvider{
			scripts: [][]provider.StreamEvent{
				{
					provider.Response[messages.AssistantMessage]{
						Response: messages.AssistantMessage{
							Content: messages.AssistantContentOrParts{Content: "the network answers"},
						},
					},
				},
			},
		}
		model := scriptedModel{p: prov}

		n := New(
			Name("deskside"),
			Model(model),
			Agents(specialist("utility", "generalist", model)),
		)

		hook := &resultHook{}
		err := Generate(context.Background(), n, "hello", foundry.Local[string](hook))
		require.NoError(t, err)
		require.Len(t, hook.results, 1)
		assert.Equal(t, "the network answers", hook.results[0])
	})
}
