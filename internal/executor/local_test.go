package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/internal/shortterm"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/provider"
	"github.com/deanmachines/foundry/tool"
	"github.com/deanmachines/foundry/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assistantResponse(content string) provider.Response[messages.AssistantMessage] {
	return provider.Response[messages.AssistantMessage]{
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: content},
		},
	}
}

func toolCallResponse(calls ...messages.ToolCallData) provider.Response[messages.ToolCallMessage] {
	return provider.Response[messages.ToolCallMessage]{
		Response: messages.ToolCallMessage{ToolCalls: calls},
	}
}

func TestLocalRun(t *testing.T) {
	t.Run("completes with assistant message", func(t *testing.T) {
		agent := newTestAgent()
		thread := shortterm.New()
		hook := &mockHook[string]{}

		cmd, err := NewRunCommand[string](agent, thread, hook)
		require.NoError(t, err)

		fut := NewFuture(DefaultUnmarshal[string]())
		require.NoError(t, NewLocal[string]().Run(context.Background(), cmd, fut))

		result, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, "test result", result)

		msgs := thread.Messages()
		require.NotEmpty(t, msgs)
		assert.Equal(t, "test_agent", msgs[len(msgs)-1].Sender)
	})

	t.Run("validates command", func(t *testing.T) {
		cmd := RunCommand[string]{}
		err := NewLocal[string]().Run(context.Background(), cmd, NewFuture(DefaultUnmarshal[string]()))
		require.Error(t, err)
	})

	t.Run("passes completion params to provider", func(t *testing.T) {
		agent := newTestAgent()
		prov := agent.testModel.provider.(*mockProvider)
		thread := shortterm.New()

		cmd, err := NewRunCommand[string](agent, thread, &mockHook[string]{})
		require.NoError(t, err)
		cmd = cmd.WithStream(true)

		fut := NewFuture(DefaultUnmarshal[string]())
		require.NoError(t, NewLocal[string]().Run(context.Background(), cmd, fut))
		_, _ = fut.Get()

		assert.Equal(t, cmd.ID(), prov.lastParams.RunID)
		assert.Equal(t, "mock instructions", prov.lastParams.Instructions)
		assert.True(t, prov.lastParams.Stream)
		assert.Len(t, prov.lastParams.Tools, 1)
		assert.False(t, prov.lastParams.ParallelToolCalls)
	})

	t.Run("parallel tool calls flag reaches the provider", func(t *testing.T) {
		agent := newTestAgent()
		agent.parallel = true
		prov := agent.testModel.provider.(*mockProvider)

		cmd, err := NewRunCommand[string](agent, shortterm.New(), &mockHook[string]{})
		require.NoError(t, err)

		fut := NewFuture(DefaultUnmarshal[string]())
		require.NoError(t, NewLocal[string]().Run(context.Background(), cmd, fut))
		_, _ = fut.Get()

		assert.True(t, prov.lastParams.ParallelToolCalls)
	})

	t.Run("returns provider error", func(t *testing.T) {
		agent := newTestAgent()
		agent.testModel.provider.(*mockProvider).err = errors.New("provider down")

		cmd, err := NewRunCommand[string](agent, shortterm.New(), &mockHook[string]{})
		require.NoError(t, err)

		err = NewLocal[string]().Run(context.Background(), cmd, NewFuture(DefaultUnmarshal[string]()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider down")
	})

	t.Run("propagates stream error to promise", func(t *testing.T) {
		agent := newTestAgent()
		streamErr := errors.New("rate limited")
		agent.testModel.provider.(*mockProvider).responses = []provider.StreamEvent{
			provider.Error{Err: streamErr},
		}

		var hookErr error
		hook := &mockHook[string]{onError: func(_ context.Context, err error) { hookErr = err }}
		cmd, err := NewRunCommand[string](agent, shortterm.New(), hook)
		require.NoError(t, err)

		fut := NewFuture(DefaultUnmarshal[string]())
		err = NewLocal[string]().Run(context.Background(), cmd, fut)
		require.Error(t, err)

		_, err = fut.Get()
		require.ErrorIs(t, err, streamErr)
		require.Error(t, hookErr)
	})

	t.Run("instructions error fails the run", func(t *testing.T) {
		agent := newTestAgent()
		agent.instructionsErr = errors.New("bad template")

		cmd, err := NewRunCommand[string](agent, shortterm.New(), &mockHook[string]{})
		require.NoError(t, err)

		err = NewLocal[string]().Run(context.Background(), cmd, NewFuture(DefaultUnmarshal[string]()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to render instructions")
	})

	t.Run("respects max turns", func(t *testing.T) {
		agent := newTestAgent()
		cmd, err := NewRunCommand[string](agent, shortterm.New(), &mockHook[string]{})
		require.NoError(t, err)
		cmd = cmd.WithMaxTurns(0)

		err = NewLocal[string]().Run(context.Background(), cmd, NewFuture(DefaultUnmarshal[string]()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max turns exceeded")
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		agent := newTestAgent()
		prov := agent.testModel.provider.(*mockProvider)
		prov.streamCh = make(chan provider.StreamEvent)

		cmd, err := NewRunCommand[string](agent, shortterm.New(), &mockHook[string]{})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- NewLocal[string]().Run(ctx, cmd, NewFuture(DefaultUnmarshal[string]()))
		}()

		cancel()
		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("run did not stop after context cancellation")
		}
	})
}

func TestLocalToolCalls(t *testing.T) {
	t.Run("executes tool and records response", func(t *testing.T) {
		agent := newTestAgent()
		prov := agent.testModel.provider.(*mockProvider)
		prov.responses = []provider.StreamEvent{
			toolCallResponse(messages.ToolCallData{ID: "1", Name: "test_tool", Arguments: "{}"}),
			assistantResponse("done"),
		}

		var toolResponses []messages.Message[messages.ToolResponse]
		hook := &mockHook[string]{
			onToolCallResponse: func(_ context.Context, msg messages.Message[messages.ToolResponse]) {
				toolResponses = append(toolResponses, msg)
			},
		}

		cmd, err := NewRunCommand[string](agent, shortterm.New(), hook)
		require.NoError(t, err)

		fut := NewFuture(DefaultUnmarshal[string]())
		require.NoError(t, NewLocal[string]().Run(context.Background(), cmd, fut))

		result, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, "done", result)

		require.Len(t, toolResponses, 1)
		assert.Equal(t, "test_tool", toolResponses[0].Payload.ToolName)
		assert.Equal(t, "result", toolResponses[0].Payload.Content)
	})

	t.Run("unknown tool fails the run", func(t *testing.T) {
		agent := newTestAgent()
		prov := agent.testModel.provider.(*mockProvider)
		prov.responses = []provider.StreamEvent{
			toolCallResponse(messages.ToolCallData{ID: "1", Name: "no_such_tool", Arguments: "{}"}),
		}

		cmd, err := NewRunCommand[string](agent, shortterm.New(), &mockHook[string]{})
		require.NoError(t, err)

		err = NewLocal[string]().Run(context.Background(), cmd, NewFuture(DefaultUnmarshal[string]()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool no_such_tool")
	})

	t.Run("tool arguments are passed positionally", func(t *testing.T) {
		var gotCity string
		agent := newTestAgent()
		agent.testTools = []tool.Definition{
			tool.Must(func(city string) string {
				gotCity = city
				return "sunny"
			}, tool.Name("weather"), tool.Parameters("city")),
		}
		prov := agent.testModel.provider.(*mockProvider)
		prov.responses = []provider.StreamEvent{
			toolCallResponse(messages.ToolCallData{ID: "1", Name: "weather", Arguments: `{"city":"Utrecht"}`}),
			assistantResponse("done"),
		}

		cmd, err := NewRunCommand[string](agent, shortterm.New(), &mockHook[string]{})
		require.NoError(t, err)

		fut := NewFuture(DefaultUnmarshal[string]())
		require.NoError(t, NewLocal[string]().Run(context.Background(), cmd, fut))
		_, _ = fut.Get()

		assert.Equal(t, "Utrecht", gotCity)
	})

	t.Run("runtime context is injected", func(t *testing.T) {
		var gotUser any
		agent := newTestAgent()
		agent.testTools = []tool.Definition{
			tool.Must(func(rc types.RuntimeContext) string {
				gotUser = rc["user"]
				return "ok"
			}, tool.Name("who_am_i")),
		}
		prov := agent.testModel.provider.(*mockProvider)
		prov.responses = []provider.StreamEvent{
			toolCallResponse(messages.ToolCallData{ID: "1", Name: "who_am_i", Arguments: "{}"}),
			assistantResponse("done"),
		}

		cmd, err := NewRunCommand[string](agent, shortterm.New(), &mockHook[string]{})
		require.NoError(t, err)
		cmd = cmd.WithRuntimeContext(types.RuntimeContext{"user": "jan"})

		fut := NewFuture(DefaultUnmarshal[string]())
		require.NoError(t, NewLocal[string]().Run(context.Background(), cmd, fut))
		_, _ = fut.Get()

		assert.Equal(t, "jan", gotUser)
	})

	t.Run("agent transfer switches the active agent", func(t *testing.T) {
		second := newTestAgent()
		second.testName = "second_agent"
		second.testModel.provider.(*mockProvider).responses = []provider.StreamEvent{
			assistantResponse("from the second agent"),
		}

		first := newTestAgent()
		first.testTools = []tool.Definition{
			tool.Must(func() api.Agent { return second }, tool.Name("transfer_to_second")),
		}
		first.testModel.provider.(*mockProvider).responses = []provider.StreamEvent{
			toolCallResponse(messages.ToolCallData{ID: "1", Name: "transfer_to_second", Arguments: "{}"}),
		}

		thread := shortterm.New()
		cmd, err := NewRunCommand[string](first, thread, &mockHook[string]{})
		require.NoError(t, err)

		fut := NewFuture(DefaultUnmarshal[string]())
		require.NoError(t, NewLocal[string]().Run(context.Background(), cmd, fut))

		result, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, "from the second agent", result)

		msgs := thread.Messages()
		require.NotEmpty(t, msgs)
		assert.Equal(t, "second_agent", msgs[len(msgs)-1].Sender)
	})
}

func TestCallFunction(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		want string
	}{
		{"string", func() string { return "hello" }, "hello"},
		{"int", func() int { return 42 }, "42"},
		{"uint", func() uint { return 7 }, "7"},
		{"float", func() float64 { return 1.5 }, "1.5"},
		{"time", func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }, "2025-06-01T00:00:00Z"},
		{"json fallback", func() map[string]string { return map[string]string{"k": "v"} }, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := callFunction(tt.fn, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Value)
		})
	}

	t.Run("error return", func(t *testing.T) {
		_, err := callFunction(func() error { return assert.AnError }, nil, nil)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("agent return", func(t *testing.T) {
		agent := newTestAgent()
		result, err := callFunction(func() api.Agent { return agent }, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, agent, result.Agent)
		assert.Contains(t, result.Value, "test_agent")
	})

	t.Run("runtime context return merges", func(t *testing.T) {
		result, err := callFunction(func() types.RuntimeContext {
			return types.RuntimeContext{"region": "eu"}
		}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "eu", result.RuntimeContext["region"])
	})

	t.Run("missing argument is an error", func(t *testing.T) {
		args := buildArgList(`{}`, map[string]string{"param0": "symbol"})
		_, err := callFunction(func(symbol string) string { return symbol }, args, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing argument")
	})

	t.Run("inconvertible argument is an error", func(t *testing.T) {
		args := buildArgList(`{"symbol": 123.5}`, map[string]string{"param0": "symbol"})
		_, err := callFunction(func(symbol string) string { return symbol }, args, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot use")
	})

	t.Run("runtime context before positional arguments", func(t *testing.T) {
		args := buildArgList(`{"city":"Utrecht"}`, map[string]string{"param0": "city"})
		result, err := callFunction(func(rc types.RuntimeContext, city string) string {
			return fmt.Sprintf("%v:%s", rc["user"], city)
		}, args, types.RuntimeContext{"user": "jan"})
		require.NoError(t, err)
		assert.Equal(t, "jan:Utrecht", result.Value)
	})
}

func TestBuildArgList(t *testing.T) {
	t.Run("ordered by parameter index", func(t *testing.T) {
		args := buildArgList(`{"symbol":"NVDA","days":30}`, map[string]string{
			"param0": "symbol",
			"param1": "days",
		})
		require.Len(t, args, 2)
		assert.Equal(t, "NVDA", args[0].Interface())
		assert.EqualValues(t, 30, args[1].Interface().(float64))
	})

	t.Run("missing arguments are skipped", func(t *testing.T) {
		args := buildArgList(`{"symbol":"NVDA"}`, map[string]string{
			"param0": "symbol",
			"param1": "days",
		})
		require.Len(t, args, 1)
	})

	t.Run("no parameters", func(t *testing.T) {
		assert.Empty(t, buildArgList(`{}`, nil))
	})
}
