package catalog

import (
	"testing"

	"github.com/deanmachines/foundry/provider"
	"github.com/deanmachines/foundry/tools"
	"github.com/deanmachines/foundry/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogModel struct{}

func (catalogModel) Name() string                { return "catalog-model" }
func (catalogModel) Provider() provider.Provider { return nil }

func TestAgents(t *testing.T) {
	roster := Agents(Config{Model: catalogModel{}})
	require.Len(t, roster, 20)

	names := make(map[string]bool, len(roster))
	for _, a := range roster {
		names[a.Name()] = true
		assert.Equal(t, "catalog-model", a.Model().Name())
	}
	for _, want := range []string{"research", "stock", "weather", "knowledge", "utility", "evaluator"} {
		assert.True(t, names[want], "missing agent %s", want)
	}
}

func TestAgentTools(t *testing.T) {
	toolNames := func(cfg Config, agentName string) []string {
		for _, a := range Agents(cfg) {
			if a.Name() != agentName {
				continue
			}
			var names []string
			for _, def := range a.Tools() {
				names = append(names, def.Name)
			}
			return names
		}
		return nil
	}

	t.Run("stock agent carries the quote tool", func(t *testing.T) {
		assert.Contains(t, toolNames(Config{}, "stock"), "stock_price")
	})

	t.Run("search tool only with an API key", func(t *testing.T) {
		assert.NotContains(t, toolNames(Config{}, "browser"), "web_search")
		assert.Contains(t, toolNames(Config{WebSearchKey: "key"}, "browser"), "web_search")
	})

	t.Run("knowledge tool only with an index", func(t *testing.T) {
		assert.Empty(t, toolNames(Config{}, "knowledge"))
		cfg := Config{Index: tools.NewMemoryIndex()}
		assert.Contains(t, toolNames(cfg, "knowledge"), "search_knowledge_base")
	})
}

func TestTemplatedInstructions(t *testing.T) {
	for _, a := range Agents(Config{}) {
		if a.Name() != "analyst" {
			continue
		}
		rendered, err := a.RenderInstructions(types.RuntimeContext{"session_id": "s-123"})
		require.NoError(t, err)
		assert.Contains(t, rendered, "session s-123")

		_, err = a.RenderInstructions(types.RuntimeContext{})
		assert.Error(t, err)
		return
	}
	t.Fatal("analyst agent not found")
}

func TestNetwork(t *testing.T) {
	n := Network("deanmachines", Config{Model: catalogModel{}})

	assert.Equal(t, "deanmachines", n.Name())
	assert.Len(t, n.Agents(), 20)
	require.Len(t, n.Router().Tools(), 20)

	instructions, err := n.Router().RenderInstructions(nil)
	require.NoError(t, err)
	assert.Contains(t, instructions, "transfer to utility")
	assert.Contains(t, instructions, "stock: stock quotes and market questions")
}

func TestSpecialties(t *testing.T) {
	m := Specialties(Config{})
	assert.Len(t, m, 20)
	assert.NotEmpty(t, m["utility"])
}
