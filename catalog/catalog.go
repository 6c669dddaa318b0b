// Package catalog declares the stock roster of agents the service
// ships with: research, writing, engineering, marketing, and ops
// specialists, plus the utility agent that catches everything else.
// Each entry is a name, an instruction template over the runtime
// context, a model reference, and a tool set.
package catalog

import (
	"github.com/deanmachines/foundry/agent"
	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/network"
	"github.com/deanmachines/foundry/tool"
	"github.com/deanmachines/foundry/tools"
)

// Config carries the shared wiring the catalog agents need.
type Config struct {
	// Model is used by every agent; nil falls back to the builder default.
	Model api.Model
	// WebSearchKey enables the web search tool when set.
	WebSearchKey string
	// Index backs the knowledge-base search tool; nil disables it.
	Index tools.Index
}

type entry struct {
	name         string
	specialty    string
	instructions string
	tools        []tool.Definition
}

// Agents builds the full roster, registering every member in the
// global agent registry.
func Agents(cfg Config) []api.Agent {
	out := make([]api.Agent, 0, len(entries(cfg)))
	for _, e := range entries(cfg) {
		options := []agent.Option{
			agent.Name(e.name),
			agent.Instructions(e.instructions),
		}
		if cfg.Model != nil {
			options = append(options, agent.Model(cfg.Model))
		}
		if len(e.tools) > 0 {
			options = append(options, agent.Tools(e.tools[0], e.tools[1:]...))
		}
		member := agent.New(options...)
		agent.Add(member)
		out = append(out, member)
	}
	return out
}

// Specialties maps each roster agent to its one-line routing blurb.
func Specialties(cfg Config) map[string]string {
	m := make(map[string]string)
	for _, e := range entries(cfg) {
		m[e.name] = e.specialty
	}
	return m
}

// Network assembles the full roster behind an LLM-routed network with
// the utility agent as the default route.
func Network(name string, cfg Config) *network.Network {
	roster := Agents(cfg)
	options := []network.Option{
		network.Name(name),
		network.Agents(roster[0], roster[1:]...),
		network.DefaultRoute("utility"),
	}
	if cfg.Model != nil {
		options = append(options, network.Model(cfg.Model))
	}
	for agentName, specialty := range Specialties(cfg) {
		options = append(options, network.Specialty(agentName, specialty))
	}
	return network.New(options...)
}

func entries(cfg Config) []entry {
	calculator := tools.Calculator()
	stock := tools.NewStock().Definition()
	hackernews := tools.NewHackerNews().Definition()
	weather := tools.NewWeather().Definition()

	var search []tool.Definition
	if cfg.WebSearchKey != "" {
		search = append(search, tools.NewWebSearch(cfg.WebSearchKey).Definition())
	}

	var knowledge []tool.Definition
	if cfg.Index != nil {
		knowledge = append(knowledge, tools.NewKnowledge(cfg.Index).Definition())
	}

	return []entry{
		{
			name:      "research",
			specialty: "deep research, source gathering, literature review",
			instructions: "You are a meticulous research assistant. Gather sources, " +
				"cross-check claims, and cite where each fact came from. Prefer primary sources.",
			tools: append(append([]tool.Definition{hackernews}, search...), knowledge...),
		},
		{
			name:      "analyst",
			specialty: "quantitative analysis and data interpretation",
			instructions: "You are a data analyst for session {{.session_id}}. Break problems " +
				"into measurable questions, compute what can be computed, and state your assumptions.",
			tools: []tool.Definition{calculator},
		},
		{
			name:         "writer",
			specialty:    "long-form writing, editing, and summarization",
			instructions: "You are a precise technical writer. Write clearly, prefer short sentences, and keep the reader's goal in view.",
		},
		{
			name:         "coder",
			specialty:    "writing and reviewing code",
			instructions: "You are a senior software engineer. Write idiomatic, tested code and explain trade-offs briefly.",
		},
		{
			name:         "debugger",
			specialty:    "diagnosing failures, stack traces, and flaky behavior",
			instructions: "You are a debugging specialist. Reproduce first, bisect second, and only then hypothesize. Always state the evidence for a diagnosis.",
		},
		{
			name:         "architect",
			specialty:    "system design and architecture reviews",
			instructions: "You are a systems architect. Surface constraints and failure modes before proposing designs, and keep designs as small as the problem allows.",
		},
		{
			name:      "data",
			specialty: "datasets, pipelines, SQL, and data modeling",
			instructions: "You are a data engineer. Design schemas and pipelines that are easy to " +
				"backfill and audit. Show your queries.",
			tools: []tool.Definition{calculator},
		},
		{
			name:         "documentation",
			specialty:    "reference docs, runbooks, and API documentation",
			instructions: "You write reference documentation. Document what the system does, not what the marketing page says. Include runnable examples.",
			tools:        knowledge,
		},
		{
			name:         "marketing",
			specialty:    "positioning, campaigns, and product messaging",
			instructions: "You are a product marketer. Lead with the customer problem, quantify the benefit, and never overclaim.",
		},
		{
			name:         "seo",
			specialty:    "search optimization and content strategy",
			instructions: "You are an SEO strategist. Recommend content and structure changes backed by search intent, and flag anything that risks ranking penalties.",
			tools:        search,
		},
		{
			name:         "copywriter",
			specialty:    "short-form copy, headlines, and CTAs",
			instructions: "You write crisp short-form copy. Offer three options per ask, each with a different angle.",
		},
		{
			name:         "social",
			specialty:    "social media posts and engagement",
			instructions: "You write social posts. Match the platform's tone, keep it short, and include a hook in the first line.",
			tools:        []tool.Definition{hackernews},
		},
		{
			name:         "stock",
			specialty:    "stock quotes and market questions",
			instructions: "You are a market data assistant. Use the stock tool for prices; never invent a number. You do not give investment advice.",
			tools:        []tool.Definition{stock, calculator},
		},
		{
			name:         "weather",
			specialty:    "weather and forecast questions",
			instructions: "You answer weather questions using the weather tool. Give the place name back as resolved so mixups are visible.",
			tools:        []tool.Definition{weather},
		},
		{
			name:         "browser",
			specialty:    "open-web lookups and current events",
			instructions: "You answer questions that need fresh information from the web. Search first, then answer with links to what you used.",
			tools:        append([]tool.Definition{hackernews}, search...),
		},
		{
			name:         "knowledge",
			specialty:    "questions about the internal knowledge base",
			instructions: "You answer from the internal knowledge base. Search it before answering and quote the documents you relied on. Say so when nothing matches.",
			tools:        knowledge,
		},
		{
			name:      "memory",
			specialty: "recalling and curating conversation history",
			instructions: "You curate conversation history for session {{.session_id}}. " +
				"Summarize what has been discussed when asked, and keep summaries faithful to the transcript.",
		},
		{
			name:         "sysadmin",
			specialty:    "operations, deployment, and infrastructure questions",
			instructions: "You are an operations engineer. Prefer boring, reversible changes, and always mention the rollback path.",
			tools:        knowledge,
		},
		{
			name:         "evaluator",
			specialty:    "reviewing and scoring other answers",
			instructions: "You evaluate answers for correctness, completeness, and tone. Score each dimension 1-5 and justify every score in one sentence.",
		},
		{
			name:         "utility",
			specialty:    "general questions that fit no other specialist",
			instructions: "You are a helpful generalist. Answer directly when you can; say plainly when a question needs a specialist or information you do not have.",
			tools:        []tool.Definition{calculator, weather},
		},
	}
}
