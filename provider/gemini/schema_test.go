package gemini

import (
	"testing"

	"github.com/deanmachines/foundry/tool"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGenaiSchema(t *testing.T) {
	t.Run("nil schema", func(t *testing.T) {
		assert.Nil(t, toGenaiSchema(nil))
	})

	t.Run("tool schema", func(t *testing.T) {
		def := tool.Must(func(symbol string, days int) string { return "" },
			tool.Name("stock_history"),
			tool.Parameters("symbol", "days"),
		)
		_, schema := def.ToNameAndSchema()

		converted := toGenaiSchema(schema)
		require.NotNil(t, converted)
		assert.Equal(t, genai.TypeObject, converted.Type)
		assert.Equal(t, []string{"symbol", "days"}, converted.Required)

		require.Contains(t, converted.Properties, "symbol")
		assert.Equal(t, genai.TypeString, converted.Properties["symbol"].Type)
		require.Contains(t, converted.Properties, "days")
		assert.Equal(t, genai.TypeInteger, converted.Properties["days"].Type)
	})
}

func TestGenaiType(t *testing.T) {
	assert.Equal(t, genai.TypeString, genaiType("string"))
	assert.Equal(t, genai.TypeNumber, genaiType("number"))
	assert.Equal(t, genai.TypeArray, genaiType("array"))
	assert.Equal(t, genai.TypeUnspecified, genaiType(""))
}
