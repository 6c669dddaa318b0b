package agent

import (
	"strings"
	"text/template"

	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/provider/openai"
	"github.com/deanmachines/foundry/tool"
	"github.com/deanmachines/foundry/types"
	"github.com/fogfish/opts"
)

var _ api.Agent = (*defaultAgent)(nil)

// defaultAgent is an immutable agent definition: a name, the model to
// call, an instruction template, and the tools the model may use.
type defaultAgent struct {
	name              string
	model             api.Model
	instructions      string
	tools             []tool.Definition
	parallelToolCalls bool
}

// Name returns the agent's name.
func (a *defaultAgent) Name() string {
	return a.name
}

// Model returns the model the agent calls.
func (a *defaultAgent) Model() api.Model {
	return a.model
}

// Tools returns the agent's tool definitions.
func (a *defaultAgent) Tools() []tool.Definition {
	return a.tools
}

// ParallelToolCalls reports whether the model may issue tool calls in parallel.
func (a *defaultAgent) ParallelToolCalls() bool {
	return a.parallelToolCalls
}

// RenderInstructions renders the agent's instructions against the
// runtime context. Instructions without template actions pass through
// untouched; templates fail on keys the context does not carry.
func (a *defaultAgent) RenderInstructions(rc types.RuntimeContext) (string, error) {
	if !strings.Contains(a.instructions, "{{") {
		return a.instructions, nil
	}
	return renderTemplate("instructions", a.instructions, rc)
}

func renderTemplate(name, templateStr string, rc types.RuntimeContext) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, rc); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Option configures an agent during construction.
type Option = opts.Option[defaultAgent]

var (
	Name              = opts.ForName[defaultAgent, string]("name")
	Model             = opts.ForName[defaultAgent, api.Model]("model")
	Instructions      = opts.ForName[defaultAgent, string]("instructions")
	ParallelToolCalls = opts.ForName[defaultAgent, bool]("parallelToolCalls")
)

func Tools(tool tool.Definition, extraTools ...tool.Definition) Option {
	return opts.Type[defaultAgent](func(o *defaultAgent) error {
		o.tools = append(o.tools, tool)
		o.tools = append(o.tools, extraTools...)
		return nil
	})
}

// New creates an agent from the given options. The model defaults to
// GPT-4o mini and parallel tool calls are enabled unless disabled.
func New(options ...Option) api.Agent {
	agent := &defaultAgent{
		model:             openai.GPT4oMini(),
		parallelToolCalls: true,
	}
	if err := opts.Apply(agent, options); err != nil {
		panic(err)
	}
	return agent
}
