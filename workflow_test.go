package foundry

import (
	"context"
	"sync"
	"testing"

	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/internal/shortterm"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/provider"
	"github.com/deanmachines/foundry/tool"
	"github.com/deanmachines/foundry/types"
	"github.com/fogfish/opts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu       sync.Mutex
	answers  []string
	usage    *shortterm.Usage
	calls    int
	paramLog []provider.CompletionParams
}

func (s *stubProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	s.mu.Lock()
	answer := "done"
	if s.calls < len(s.answers) {
		answer = s.answers[s.calls]
	}
	s.calls++
	s.paramLog = append(s.paramLog, params)
	s.mu.Unlock()

	resp := provider.Response[messages.AssistantMessage]{
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: answer},
		},
	}
	if s.usage != nil {
		reported := shortterm.New()
		reported.AddUsage(s.usage)
		resp.Checkpoint = reported.Checkpoint()
	}

	ch := make(chan provider.StreamEvent, 1)
	ch <- resp
	close(ch)
	return ch, nil
}

type stubModel struct {
	p provider.Provider
}

func (m stubModel) Provider() provider.Provider { return m.p }
func (m stubModel) Name() string                { return "stub_model" }

type stubAgent struct {
	name  string
	model stubModel
}

func (a *stubAgent) Name() string         { return a.name }
func (a *stubAgent) Model() api.Model     { return a.model }
func (a *stubAgent) Tools() []tool.Definition {
	return nil
}
func (a *stubAgent) ParallelToolCalls() bool { return false }
func (a *stubAgent) RenderInstructions(types.RuntimeContext) (string, error) {
	return "you are a test agent", nil
}

type recordingHook[T any] struct {
	mu      sync.Mutex
	prompts []messages.Message[messages.UserMessage]
	results []T
	errs    []error
	closed  bool
}

func (h *recordingHook[T]) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, msg)
}

func (h *recordingHook[T]) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {
}

func (h *recordingHook[T]) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage]) {
}

func (h *recordingHook[T]) OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage]) {
}

func (h *recordingHook[T]) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage]) {
}

func (h *recordingHook[T]) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse]) {
}

func (h *recordingHook[T]) OnResult(ctx context.Context, result T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
}

func (h *recordingHook[T]) OnError(ctx context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingHook[T]) OnClose(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func newStubAgent(name string, prov provider.Provider) *stubAgent {
	return &stubAgent{name: name, model: stubModel{p: prov}}
}

func TestNewWorkflow(t *testing.T) {
	prov := &stubProvider{}
	a := newStubAgent("researcher", prov)
	b := newStubAgent("writer", prov)

	wf := New(
		Name("Jan"),
		Agents(a, b),
		Steps(
			Step(a.Name(), "find sources"),
			Step(b.Name(), "write the summary"),
		),
	)

	assert.Equal(t, "Jan", wf.name)
	got, ok := wf.agents.Get("writer")
	assert.True(t, ok)
	assert.Equal(t, b, got)
	assert.Len(t, wf.steps, 2)
}

func TestStep(t *testing.T) {
	t.Run("string task", func(t *testing.T) {
		step := Step("researcher", "look this up")
		assert.Equal(t, "researcher", step.agentName)
		assert.Equal(t, stringTask("look this up"), step.task)
	})

	t.Run("message task", func(t *testing.T) {
		msg := messages.New().WithSender("Jan").UserPrompt("look this up")
		step := Step("researcher", msg)
		assert.Equal(t, messageTask(msg), step.task)
	})
}

func TestRun(t *testing.T) {
	t.Run("single step completes with the assistant answer", func(t *testing.T) {
		prov := &stubProvider{answers: []string{"the answer"}}
		a := newStubAgent("solo", prov)
		hook := &recordingHook[string]{}

		wf := New(Agents(a), Steps(Step(a.Name(), "question")))
		err := Run(context.Background(), wf, Local[string](hook))
		require.NoError(t, err)

		require.Len(t, hook.results, 1)
		assert.Equal(t, "the answer", hook.results[0])
		assert.Empty(t, hook.errs)
		assert.True(t, hook.closed)
	})

	t.Run("user prompt carries the workflow name as sender", func(t *testing.T) {
		prov := &stubProvider{}
		a := newStubAgent("solo", prov)
		hook := &recordingHook[string]{}

		wf := New(Name("Ops"), Agents(a), Steps(Step(a.Name(), "question")))
		require.NoError(t, Run(context.Background(), wf, Local[string](hook)))

		require.Len(t, hook.prompts, 1)
		assert.Equal(t, "Ops", hook.prompts[0].Sender)
	})

	t.Run("only the final step forwards a result", func(t *testing.T) {
		prov := &stubProvider{answers: []string{"draft", "final"}}
		a := newStubAgent("researcher", prov)
		b := newStubAgent("writer", prov)
		hook := &recordingHook[string]{}

		wf := New(
			Agents(a, b),
			Steps(Step(a.Name(), "research"), Step(b.Name(), "write")),
		)
		require.NoError(t, Run(context.Background(), wf, Local[string](hook)))

		assert.Equal(t, 2, prov.calls)
		require.Len(t, hook.results, 1)
		assert.Equal(t, "final", hook.results[0])
	})

	t.Run("structured output applies to the final step only", func(t *testing.T) {
		type verdict struct {
			Answer string `json:"answer"`
		}
		prov := &stubProvider{answers: []string{"notes", `{"answer":"42"}`}}
		a := newStubAgent("researcher", prov)
		b := newStubAgent("writer", prov)
		hook := &recordingHook[verdict]{}

		wf := New(
			Agents(a, b),
			Steps(Step(a.Name(), "research"), Step(b.Name(), "answer")),
		)
		err := Run(context.Background(), wf, Local[verdict](hook,
			StructuredOutput[verdict]("verdict", "the final verdict"),
		))
		require.NoError(t, err)

		require.Len(t, prov.paramLog, 2)
		assert.Nil(t, prov.paramLog[0].ResponseSchema)
		require.NotNil(t, prov.paramLog[1].ResponseSchema)
		assert.Equal(t, "verdict", prov.paramLog[1].ResponseSchema.Name)

		require.Len(t, hook.results, 1)
		assert.Equal(t, "42", hook.results[0].Answer)
	})

	t.Run("prior turns are visible to the model", func(t *testing.T) {
		prov := &stubProvider{}
		a := newStubAgent("solo", prov)
		hook := &recordingHook[string]{}

		rc := Local[string](hook).WithPriorTurns(
			PriorTurn{Role: RoleUser, Sender: "Jan", Content: "my name is Jan"},
			PriorTurn{Role: RoleAssistant, Sender: "solo", Content: "noted"},
			PriorTurn{Role: "system", Content: "ignored"},
		)

		wf := New(Agents(a), Steps(Step(a.Name(), "what is my name?")))
		require.NoError(t, Run(context.Background(), wf, rc))

		require.Len(t, prov.paramLog, 1)
		// two prior turns plus the step prompt
		assert.Equal(t, 3, prov.paramLog[0].Thread.Len())
	})

	t.Run("usage accumulates across steps", func(t *testing.T) {
		prov := &stubProvider{
			answers: []string{"draft", "final"},
			usage:   &shortterm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}
		a := newStubAgent("researcher", prov)
		b := newStubAgent("writer", prov)
		hook := &recordingHook[string]{}

		rc := Local[string](hook)
		wf := New(
			Agents(a, b),
			Steps(Step(a.Name(), "research"), Step(b.Name(), "write")),
		)
		require.NoError(t, Run(context.Background(), wf, rc))

		usage := rc.Usage()
		assert.Equal(t, int64(20), usage.PromptTokens)
		assert.Equal(t, int64(10), usage.CompletionTokens)
		assert.Equal(t, int64(30), usage.TotalTokens)
	})

	t.Run("unknown agent fails the run", func(t *testing.T) {
		hook := &recordingHook[string]{}
		wf := New(Steps(Step("ghost", "hello")))

		err := Run(context.Background(), wf, Local[string](hook))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent ghost not found")
		assert.True(t, hook.closed)
	})
}

func TestLocalOptions(t *testing.T) {
	hook := &recordingHook[string]{}
	rc := Local[string](hook,
		Streaming(true),
		WithMaxTurns(7),
		WithRuntimeContext(types.RuntimeContext{"user": "jan"}),
	)

	assert.True(t, rc.settings.stream)
	assert.Equal(t, 7, rc.settings.maxTurns)
	assert.Equal(t, "jan", rc.settings.runtimeContext["user"])
}

func TestStructuredOutputOption(t *testing.T) {
	t.Run("string result skips the schema", func(t *testing.T) {
		var s ExecutionSettings
		err := opts.Apply(&s, []opts.Option[ExecutionSettings]{
			StructuredOutput[string]("name", "desc"),
		})
		require.NoError(t, err)
		assert.Nil(t, s.responseSchema)
	})

	t.Run("struct result generates one", func(t *testing.T) {
		type route struct {
			Agent string `json:"agent"`
		}
		var s ExecutionSettings
		err := opts.Apply(&s, []opts.Option[ExecutionSettings]{
			StructuredOutput[route]("route", "routing decision"),
		})
		require.NoError(t, err)
		require.NotNil(t, s.responseSchema)
		assert.Equal(t, "route", s.responseSchema.Name)
		_, hasAgent := s.responseSchema.Schema.Properties.Get("agent")
		assert.True(t, hasAgent)
	})
}

func TestDeferredPromise(t *testing.T) {
	t.Run("forwards the completed value", func(t *testing.T) {
		hook := &recordingHook[string]{}
		rc := Local[string](hook)
		rc.promise.Complete("hello")
		rc.onClose(context.Background())

		require.Len(t, hook.results, 1)
		assert.Equal(t, "hello", hook.results[0])
		assert.True(t, hook.closed)
	})

	t.Run("first outcome wins", func(t *testing.T) {
		hook := &recordingHook[string]{}
		rc := Local[string](hook)
		rc.promise.Complete("first")
		rc.promise.Error(assert.AnError)
		rc.onClose(context.Background())

		require.Len(t, hook.results, 1)
		assert.Equal(t, "first", hook.results[0])
		assert.Empty(t, hook.errs)
	})

	t.Run("decode failure surfaces as an error", func(t *testing.T) {
		type verdict struct {
			Answer string `json:"answer"`
		}
		hook := &recordingHook[verdict]{}
		rc := Local[verdict](hook)
		rc.promise.Complete("not json at all")
		rc.onClose(context.Background())

		assert.Empty(t, hook.results)
		require.Len(t, hook.errs, 1)
	})
}
