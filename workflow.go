package foundry

import (
	"context"
	"fmt"
	"slices"

	"github.com/alphadose/haxmap"
	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/internal/executor"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/provider"
	"github.com/fogfish/opts"
)

// Workflow is an ordered conversation across a set of agents. Each step
// addresses one agent by name; only the final step's answer becomes the
// run result.
type Workflow struct {
	name   string
	agents *haxmap.Map[string, api.Agent]
	steps  []ConversationStep
}

// Agents registers the agents the workflow steps may address.
func Agents(agent api.Agent, extraAgents ...api.Agent) opts.Option[Workflow] {
	return opts.Type[Workflow](func(o *Workflow) error {
		o.agents.Set(agent.Name(), agent)
		for elem := range slices.Values(extraAgents) {
			o.agents.Set(elem.Name(), elem)
		}
		return nil
	})
}

// Steps appends conversation steps in execution order.
func Steps(step ConversationStep, extraSteps ...ConversationStep) opts.Option[Workflow] {
	return opts.Type[Workflow](func(o *Workflow) error {
		o.steps = append(o.steps, step)
		o.steps = append(o.steps, extraSteps...)
		return nil
	})
}

// Name sets the sender name attached to user prompts, default "User".
var Name = opts.ForName[Workflow, string]("name")

func New(options ...opts.Option[Workflow]) *Workflow {
	p := &Workflow{
		name:   "User",
		agents: haxmap.New[string, api.Agent](),
	}
	if err := opts.Apply(p, options); err != nil {
		panic(err)
	}
	return p
}

// Run executes the workflow's steps in order. Intermediate steps run
// with a discarded promise; the final step completes the execution
// context's promise and, through onClose, the hook's OnResult/OnClose.
func Run[T any](ctx context.Context, w *Workflow, rc ExecutionContext[T]) error {
	defer rc.onClose(ctx)

	maxItems := len(w.steps) - 1

	for i, step := range w.steps {
		var promise executor.Promise
		var schema *provider.StructuredOutput
		if i < maxItems {
			promise = noopPromise{}
		} else {
			promise = rc.promise
			schema = rc.settings.responseSchema
		}

		if err := runStep(ctx, w, step, rc, promise, schema); err != nil {
			return err
		}
	}

	return nil
}

func runStep[T any](ctx context.Context, w *Workflow, step ConversationStep, rc ExecutionContext[T], promise executor.Promise, schema *provider.StructuredOutput) error {
	agent, found := w.agents.Get(step.agentName)
	if !found {
		return fmt.Errorf("agent %s not found", step.agentName)
	}

	state := rc.state

	var message messages.Message[messages.UserMessage]
	switch tsk := step.task.(type) {
	case stringTask:
		message = messages.New().WithSender(w.name).UserPrompt(string(tsk))
	case messageTask:
		message = messages.Message[messages.UserMessage](tsk)
	default:
		return fmt.Errorf("unknown task type %T", tsk)
	}
	state.AddUserPrompt(message)
	rc.hook.OnUserPrompt(ctx, message)

	cmd, err := rc.createCommand(agent, state, schema)
	if err != nil {
		return err
	}

	return rc.executor.Run(ctx, cmd, promise)
}
