package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeContextString(t *testing.T) {
	t.Run("renders JSON", func(t *testing.T) {
		rc := RuntimeContext{"user_id": "u-1"}
		assert.JSONEq(t, `{"user_id":"u-1"}`, rc.String())
	})

	t.Run("empty context", func(t *testing.T) {
		assert.Equal(t, "{}", RuntimeContext{}.String())
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		rc := RuntimeContext{"ch": make(chan int)}
		assert.Empty(t, rc.String())
	})
}
