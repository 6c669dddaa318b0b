package foundry

import (
	"context"
	"reflect"

	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/internal/executor"
	"github.com/deanmachines/foundry/internal/shortterm"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/provider"
	"github.com/deanmachines/foundry/types"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// ExecutionSettings carries the tunables shared by every step of a run.
// It is separate from ExecutionContext so the option constructors stay
// free of the result type parameter.
type ExecutionSettings struct {
	responseSchema *provider.StructuredOutput
	runtimeContext types.RuntimeContext
	stream         bool
	maxTurns       int
}

var (
	// WithRuntimeContext makes the given key/value bag available to
	// instruction templates and tool functions during the run.
	WithRuntimeContext = opts.ForName[ExecutionSettings, types.RuntimeContext]("runtimeContext")

	// Streaming enables incremental assistant/tool-call chunks on the hook.
	Streaming = opts.ForName[ExecutionSettings, bool]("stream")

	// WithMaxTurns caps the number of completion turns per step.
	WithMaxTurns = opts.ForName[ExecutionSettings, int]("maxTurns")
)

// StructuredOutput asks the model to answer in the JSON shape of T on
// the final step. For string and gjson.Result no schema is generated.
func StructuredOutput[T any](name, description string) opts.Option[ExecutionSettings] {
	return opts.Type[ExecutionSettings](func(s *ExecutionSettings) error {
		schema := jsonSchema[T]()
		if schema != nil {
			s.responseSchema = &provider.StructuredOutput{
				Name:        name,
				Description: description,
				Schema:      schema,
			}
		}
		return nil
	})
}

func jsonSchema[T any]() *jsonschema.Schema {
	var schema *jsonschema.Schema
	var t T
	_, isGjsonResult := any(t).(gjson.Result)
	isString := reflect.TypeFor[T]().Kind() == reflect.String

	if !isGjsonResult && !isString {
		schema = executor.ToJSONSchema[T]()
	}

	return schema
}

// ExecutionContext holds the executor, hook, and promise wiring for one
// conversation run. Build one with Local; a context belongs to a single
// run and is not reused.
type ExecutionContext[T any] struct {
	settings ExecutionSettings
	executor executor.Executor[T]
	hook     Hook[T]
	promise  executor.Promise
	onClose  func(context.Context)
	// state is the conversation thread shared by every step of the
	// run; completed turns join back into it.
	state *shortterm.Aggregator
}

// PriorTurn is one turn of earlier conversation to replay onto the
// thread before the first step runs, so the model sees session
// history.
type PriorTurn struct {
	Role    string
	Sender  string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// WithPriorTurns seeds the conversation thread. Turns with unknown
// roles are skipped.
func (e ExecutionContext[T]) WithPriorTurns(turns ...PriorTurn) ExecutionContext[T] {
	for _, turn := range turns {
		builder := messages.New().WithSender(turn.Sender)
		switch turn.Role {
		case RoleUser:
			e.state.AddUserPrompt(builder.UserPrompt(turn.Content))
		case RoleAssistant:
			e.state.AddAssistantMessage(builder.AssistantMessage(turn.Content))
		}
	}
	return e
}

// Usage is the token usage accumulated across the run.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Usage reports what the run consumed so far. Meaningful once Run has
// returned.
func (e ExecutionContext[T]) Usage() Usage {
	u := e.state.Usage()
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func (e *ExecutionContext[T]) createCommand(agent api.Agent, mem *shortterm.Aggregator, schema *provider.StructuredOutput) (executor.RunCommand[T], error) {
	cmd, err := executor.NewRunCommand[T](agent, mem, e.hook)
	if err != nil {
		return executor.RunCommand[T]{}, err
	}
	if len(e.settings.runtimeContext) > 0 {
		cmd = cmd.WithRuntimeContext(e.settings.runtimeContext)
	}
	if schema != nil {
		cmd = cmd.WithResponseSchema(schema)
	}
	if e.settings.stream {
		cmd = cmd.WithStream(e.settings.stream)
	}
	if e.settings.maxTurns > 0 {
		cmd = cmd.WithMaxTurns(e.settings.maxTurns)
	}
	return cmd, nil
}

// Local creates an ExecutionContext backed by the in-process executor.
// The hook receives every event of the run; its OnResult fires once with
// the final step's outcome decoded into T, then OnClose.
func Local[T any](hook Hook[T], options ...opts.Option[ExecutionSettings]) ExecutionContext[T] {
	fut := executor.NewFuture(executor.DefaultUnmarshal[T]())
	dp := &deferredPromise[T]{
		promise: fut,
		hook:    hook,
	}

	execCtx := ExecutionContext[T]{
		executor: executor.NewLocal[T](),
		hook:     hook,
		promise:  dp,
		state:    shortterm.New(),
		onClose: func(ctx context.Context) {
			dp.Forward(ctx)
			hook.OnClose(ctx)
		},
	}

	if err := opts.Apply(&execCtx.settings, options); err != nil {
		panic(err)
	}

	return execCtx
}
