// Package network presents a catalog of specialist agents as a single
// conversational entry point. Routing is delegated to the model: the
// network builds a router agent whose instructions list every member
// with its specialty and whose tools are generated transfer functions,
// one per member. The router's own reasoning picks the specialist;
// there is no routing table.
package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/deanmachines/foundry"
	"github.com/deanmachines/foundry/agent"
	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/tool"
	"github.com/fogfish/opts"
)

// Option configures a Network during construction.
type Option = opts.Option[Network]

// Network is an LLM-routed roster of agents.
type Network struct {
	name         string
	model        api.Model
	instructions string
	roster       []api.Agent
	specialties  map[string]string
	defaultRoute string
	router       api.Agent
}

var (
	// Name sets the network's public name; the router agent answers
	// under this name.
	Name = opts.ForName[Network, string]("name")

	// Model sets the model the router runs on.
	Model = opts.ForName[Network, api.Model]("model")

	// Instructions appends extra routing guidance to the generated
	// router instructions.
	Instructions = opts.ForName[Network, string]("instructions")

	// DefaultRoute names the member that handles requests no specialist
	// fits. Defaults to the first registered member.
	DefaultRoute = opts.ForName[Network, string]("defaultRoute")
)

// Agents registers roster members in order.
func Agents(member api.Agent, extraMembers ...api.Agent) opts.Option[Network] {
	return opts.Type[Network](func(o *Network) error {
		o.roster = append(o.roster, member)
		o.roster = append(o.roster, extraMembers...)
		return nil
	})
}

// Specialty records a one-line description of what the named member is
// good at. It ends up in the router's instructions and on the member's
// transfer tool.
func Specialty(agentName, specialty string) opts.Option[Network] {
	return opts.Type[Network](func(o *Network) error {
		if o.specialties == nil {
			o.specialties = make(map[string]string)
		}
		o.specialties[agentName] = specialty
		return nil
	})
}

// New builds a network and its router agent. It panics on empty
// rosters and unknown default routes; networks are assembled at
// startup from static definitions.
func New(options ...opts.Option[Network]) *Network {
	n := &Network{
		name: "network",
	}
	if err := opts.Apply(n, options); err != nil {
		panic(err)
	}
	if len(n.roster) == 0 {
		panic(fmt.Sprintf("network %s has no agents", n.name))
	}
	if n.defaultRoute == "" {
		n.defaultRoute = n.roster[0].Name()
	}
	if _, ok := n.member(n.defaultRoute); !ok {
		panic(fmt.Sprintf("network %s default route %q is not a member", n.name, n.defaultRoute))
	}

	n.router = n.buildRouter()
	return n
}

func (n *Network) member(name string) (api.Agent, bool) {
	for _, m := range n.roster {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Name returns the network's public name.
func (n *Network) Name() string { return n.name }

// Router returns the generated router agent.
func (n *Network) Router() api.Agent { return n.router }

// Agents returns the roster in registration order.
func (n *Network) Agents() []api.Agent {
	out := make([]api.Agent, len(n.roster))
	copy(out, n.roster)
	return out
}

// Agent looks up a roster member by name.
func (n *Network) Agent(name string) (api.Agent, bool) {
	return n.member(name)
}

// SpecialtyOf returns the registered specialty for a roster member,
// empty when none was declared.
func (n *Network) SpecialtyOf(agentName string) string {
	return n.specialties[agentName]
}

func (n *Network) buildRouter() api.Agent {
	tools := make([]tool.Definition, 0, len(n.roster))
	for _, member := range n.roster {
		tools = append(tools, TransferTool(member, n.specialties[member.Name()]))
	}

	options := []agent.Option{
		agent.Name(n.name),
		agent.Instructions(n.routingInstructions()),
		agent.Tools(tools[0], tools[1:]...),
		agent.ParallelToolCalls(false),
	}
	if n.model != nil {
		options = append(options, agent.Model(n.model))
	}
	return agent.New(options...)
}

func (n *Network) routingInstructions() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the dispatcher for the %s network. ", n.name)
	sb.WriteString("Read the user's request and hand it to the specialist best equipped to answer, using exactly one transfer tool.\n\nSpecialists:\n")
	for _, member := range n.roster {
		specialty := n.specialties[member.Name()]
		if specialty == "" {
			specialty = fmt.Sprintf("handles %s requests", member.Name())
		}
		fmt.Fprintf(&sb, "- %s: %s\n", member.Name(), specialty)
	}
	fmt.Fprintf(&sb, "\nWhen no specialist fits, or you are unsure, transfer to %s. Do not answer the request yourself.", n.defaultRoute)
	if n.instructions != "" {
		sb.WriteString("\n\n")
		sb.WriteString(n.instructions)
	}
	return sb.String()
}

// TransferTool builds the handoff tool for a member agent. The
// function returns the agent itself, which the run loop recognizes as
// a transfer of control.
func TransferTool(target api.Agent, specialty string) tool.Definition {
	desc := fmt.Sprintf("Transfer the conversation to the %s agent.", target.Name())
	if specialty != "" {
		desc += " " + specialty
	}
	return tool.Must(
		func() api.Agent { return target },
		tool.Name("transfer_to_"+slug(target.Name())),
		tool.Description(desc),
	)
}

func slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// Workflow builds a single-step conversation addressed to the router.
func (n *Network) Workflow(prompt string) *foundry.Workflow {
	members := append([]api.Agent{n.router}, n.roster...)
	return foundry.New(
		foundry.Agents(members[0], members[1:]...),
		foundry.Steps(foundry.Step(n.router.Name(), prompt)),
	)
}

// Generate routes the prompt through the network and completes the
// execution context's promise with the specialist's answer.
func Generate[T any](ctx context.Context, n *Network, prompt string, rc foundry.ExecutionContext[T]) error {
	return foundry.Run(ctx, n.Workflow(prompt), rc)
}
