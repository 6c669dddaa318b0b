package executor

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/internal/shortterm"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/pkg/reflectx"
	"github.com/deanmachines/foundry/pkg/slogx"
	"github.com/deanmachines/foundry/provider"
	"github.com/deanmachines/foundry/tool"
	"github.com/deanmachines/foundry/types"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var _ Executor[any] = &Local[any]{}

type breakError struct{}

func (e *breakError) Error() string {
	return "break"
}

type continueError struct{}

func (e *continueError) Error() string {
	return "continue"
}

// Local runs commands in process, one reactor loop per run.
type Local[T any] struct{}

func NewLocal[T any]() *Local[T] {
	return &Local[T]{}
}

func wrapErr(runID, turnID uuid.UUID, sender string, err error) (events.Error, bool) {
	if err == nil {
		return events.Error{}, false
	}
	if pErr, ok := err.(events.Error); ok { //nolint: errorlint
		return pErr, true
	}
	return events.Error{
		RunID:     runID,
		TurnID:    turnID,
		Sender:    sender,
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	}, true
}

type toolCallParams[T any] struct {
	runID          uuid.UUID
	agent          api.Agent
	runtimeContext types.RuntimeContext
	mem            *shortterm.Aggregator
	hook           events.Hook[T]
	toolCalls      messages.ToolCallMessage
}

func (l *Local[T]) Run(ctx context.Context, command RunCommand[T], promise Promise) error {
	if err := command.Validate(); err != nil {
		return err
	}

	runtimeContext := command.initializeRuntimeContext()
	thread := command.Thread.Fork()

	err := l.runReactorLoop(ctx, reactorParams[T]{
		command:        command,
		thread:         thread,
		activeAgent:    command.Agent,
		runtimeContext: runtimeContext,
		promise:        promise,
	})
	if err != nil {
		var breakErr *breakError
		if errors.As(err, &breakErr) {
			// break means the promise completed
			command.Thread.Join(thread)
			return nil
		}
		return err
	}

	command.Thread.Join(thread)
	return nil
}

type reactorParams[T any] struct {
	command        RunCommand[T]
	thread         *shortterm.Aggregator
	activeAgent    api.Agent
	runtimeContext types.RuntimeContext
	promise        Promise
}

func (l *Local[T]) runReactorLoop(ctx context.Context, params reactorParams[T]) error {
	for params.thread.TurnLen() < params.command.MaxTurns {
		if err := l.validateAgentAndProvider(ctx, &params); err != nil {
			return err
		}

		stream, err := l.initiateChatCompletion(ctx, &params)
		if err != nil {
			return err
		}

		if err := l.handleStreamEvents(ctx, stream, &params); err != nil {
			var continueErr *continueError
			if errors.As(err, &continueErr) {
				continue // agent transfer, retry with the new agent
			}
			return err
		}

		return l.handleStreamCompletion(&params)
	}
	return errors.New("max turns exceeded")
}

func (l *Local[T]) validateAgentAndProvider(ctx context.Context, params *reactorParams[T]) error {
	model := params.activeAgent.Model()
	if model == nil {
		err := fmt.Errorf("agent model cannot be nil")
		l.publishError(ctx, params, err)
		return err
	}

	if model.Provider() == nil {
		err := fmt.Errorf("model provider cannot be nil")
		l.publishError(ctx, params, err)
		return err
	}

	return nil
}

func (l *Local[T]) initiateChatCompletion(ctx context.Context, params *reactorParams[T]) (<-chan provider.StreamEvent, error) {
	instructions, err := params.activeAgent.RenderInstructions(params.runtimeContext)
	if err != nil {
		l.publishError(ctx, params, fmt.Errorf("failed to render instructions: %w", err))
		return nil, fmt.Errorf("failed to render instructions: %w", err)
	}

	stream, err := params.activeAgent.Model().Provider().ChatCompletion(ctx, provider.CompletionParams{
		RunID:             params.command.ID(),
		Instructions:      instructions,
		Thread:            params.thread,
		Stream:            params.command.Stream,
		Model:             params.activeAgent.Model(),
		ResponseSchema:    params.command.ResponseSchema,
		Tools:             params.activeAgent.Tools(),
		ParallelToolCalls: params.activeAgent.ParallelToolCalls(),
	})
	if err != nil {
		l.publishError(ctx, params, fmt.Errorf("failed to get chat completion: %w", err))
		return nil, fmt.Errorf("failed to get chat completion: %w", err)
	}

	return stream, nil
}

func (l *Local[T]) handleStreamEvents(ctx context.Context, stream <-chan provider.StreamEvent, params *reactorParams[T]) error {
	for {
		select {
		case event, hasMore := <-stream:
			if !hasMore {
				return l.handleStreamCompletion(params)
			}

			if err := l.processStreamEvent(ctx, event, params); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Local[T]) handleStreamCompletion(params *reactorParams[T]) error {
	msgs := params.thread.Messages()
	if len(msgs) == 0 {
		return fmt.Errorf("no messages in thread")
	}

	// The last message must be from the current agent.
	lastMsg := msgs[len(msgs)-1]
	if lastMsg.Sender != params.activeAgent.Name() {
		return fmt.Errorf("last message is not from current agent %s", params.activeAgent.Name())
	}

	// A trailing tool response means the turn is not finished yet.
	if _, ok := lastMsg.Payload.(messages.ToolResponse); ok {
		return &continueError{}
	}

	if assistantMsg, ok := lastMsg.Payload.(messages.AssistantMessage); ok {
		params.promise.Complete(assistantMsg.Content.Content)
		return &breakError{}
	}

	return fmt.Errorf("last message from agent %s was neither assistant message nor tool response", params.activeAgent.Name())
}

func (l *Local[T]) processStreamEvent(ctx context.Context, event provider.StreamEvent, params *reactorParams[T]) error {
	switch event := event.(type) {
	case provider.Delim:
		return nil
	case provider.Error:
		l.publishError(ctx, params, event)
		params.promise.Error(event.Err)
		return event.Err
	case provider.Chunk[messages.AssistantMessage]:
		params.command.Hook.OnAssistantChunk(ctx, messages.Message[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    params.activeAgent.Name(),
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
		return nil
	case provider.Chunk[messages.ToolCallMessage]:
		params.command.Hook.OnToolCallChunk(ctx, messages.Message[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    params.activeAgent.Name(),
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
		return nil
	case provider.Response[messages.ToolCallMessage]:
		return l.handleToolCallResponse(ctx, event, params)
	case provider.Response[messages.AssistantMessage]:
		return l.handleAssistantResponse(ctx, event, params)
	default:
		panic(fmt.Sprintf("unknown event type %T", event))
	}
}

func (l *Local[T]) publishError(ctx context.Context, params *reactorParams[T], err error) {
	if ee, hasErr := wrapErr(params.command.ID(), params.thread.ID(), params.activeAgent.Name(), err); hasErr {
		params.command.Hook.OnError(ctx, ee)
	}
}

func (l *Local[T]) handleAssistantResponse(ctx context.Context, event provider.Response[messages.AssistantMessage], params *reactorParams[T]) error {
	// The provider emits tool calls and their responses before any
	// assistant message, so by this point every tool call is settled.
	event.Checkpoint.MergeInto(params.thread)

	msg := messages.Message[messages.AssistantMessage]{
		RunID:     event.RunID,
		TurnID:    event.TurnID,
		Payload:   event.Response,
		Sender:    params.activeAgent.Name(),
		Timestamp: event.Timestamp,
		Meta:      event.Meta,
	}
	params.thread.AddAssistantMessage(msg)
	params.command.Hook.OnAssistantMessage(ctx, msg)
	return nil
}

func (l *Local[T]) handleToolCallResponse(ctx context.Context, event provider.Response[messages.ToolCallMessage], params *reactorParams[T]) error {
	forked := params.thread.Fork()
	event.Checkpoint.MergeInto(forked)

	toolCallMsg := messages.Message[messages.ToolCallMessage]{
		RunID:     event.RunID,
		TurnID:    event.TurnID,
		Payload:   event.Response,
		Sender:    params.activeAgent.Name(),
		Timestamp: event.Timestamp,
		Meta:      event.Meta,
	}
	forked.AddToolCall(toolCallMsg)
	params.command.Hook.OnToolCallMessage(ctx, toolCallMsg)

	toolParams := toolCallParams[T]{
		mem:            forked,
		agent:          params.activeAgent,
		runID:          event.RunID,
		hook:           params.command.Hook,
		toolCalls:      event.Response,
		runtimeContext: make(types.RuntimeContext),
	}
	if params.runtimeContext != nil {
		maps.Copy(toolParams.runtimeContext, params.runtimeContext)
	}

	nextAgent, err := l.handleToolCalls(ctx, toolParams)
	if err != nil {
		l.publishError(ctx, params, err)
		return err
	}

	if nextAgent != nil {
		params.activeAgent = nextAgent
		return &continueError{}
	}

	return nil
}

func (l *Local[T]) handleToolCalls(ctx context.Context, params toolCallParams[T]) (api.Agent, error) {
	agentTools := make(map[string]tool.Definition, len(params.agent.Tools()))
	for tool := range slices.Values(params.agent.Tools()) {
		agentTools[tool.Name] = tool
	}

	// Transfers run first so a handoff wins over plain tool output.
	var agentTransfers []messages.ToolCallData
	var otherTools []messages.ToolCallData

	for _, call := range params.toolCalls.ToolCalls {
		tool, exists := agentTools[call.Name]
		if !exists {
			return nil, events.Error{
				RunID:     params.runID,
				TurnID:    params.mem.ID(),
				Sender:    params.agent.Name(),
				Err:       fmt.Errorf("unknown tool %s", call.Name),
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}

		if reflectx.ResultImplements[api.Agent](tool.Function) {
			agentTransfers = append(agentTransfers, call)
		} else {
			otherTools = append(otherTools, call)
		}
	}

	for _, call := range append(agentTransfers, otherTools...) {
		tool := agentTools[call.Name]
		args := buildArgList(call.Arguments, tool.Parameters)
		result, err := callFunction(tool.Function, args, params.runtimeContext)
		if err != nil {
			return nil, err
		}

		if result.Agent != nil {
			return result.Agent, nil
		}

		msg := messages.New().ToolResponse(call.ID, call.Name, fmt.Sprintf("%v", result.Value))
		msg.RunID = params.runID
		msg.TurnID = params.mem.ID()
		msg.Sender = params.agent.Name()
		params.mem.AddToolResponse(msg)
		params.hook.OnToolCallResponse(ctx, msg)

		if result.RuntimeContext != nil {
			if params.runtimeContext == nil {
				params.runtimeContext = make(types.RuntimeContext)
			}
			maps.Copy(params.runtimeContext, result.RuntimeContext)
		}
	}

	return nil, nil
}

func buildArgList(arguments string, parameters map[string]string) []reflect.Value {
	args := gjson.Parse(arguments)
	targs := make([]string, len(parameters))
	for k, v := range parameters {
		ns := strings.TrimPrefix(k, "param")
		i, _ := strconv.Atoi(ns)
		if i < 0 || i >= len(targs) {
			continue
		}
		targs[i] = v
	}

	toolArgs := make([]reflect.Value, 0)
	for _, arg := range targs {
		if arg == "" {
			continue
		}

		val := args.Get(arg)
		if !val.Exists() {
			continue
		}

		toolArgs = append(toolArgs, reflect.ValueOf(val.Value()))
	}
	return toolArgs
}

type toolResult struct {
	Value          string
	Agent          api.Agent
	RuntimeContext types.RuntimeContext
}

func callFunction(fn any, args []reflect.Value, runtimeContext types.RuntimeContext) (toolResult, error) {
	val := reflect.ValueOf(fn)
	vtpe := val.Type()

	numIn := vtpe.NumIn()
	callArgs := make([]reflect.Value, numIn)

	// Runtime context parameters are injected, every other parameter is
	// consumed from args in order. The model fills args, so a short or
	// mistyped list is rejected here instead of reaching Call.
	argIdx := 0
	for fi := 0; fi < numIn; fi++ {
		paramType := vtpe.In(fi)
		if reflectx.IsRefinedType[types.RuntimeContext](paramType) {
			callArgs[fi] = reflect.ValueOf(runtimeContext)
			continue
		}

		if argIdx >= len(args) {
			return toolResult{}, fmt.Errorf("missing argument for parameter %d (%s)", fi, paramType)
		}

		vv := args[argIdx]
		argIdx++
		if !vv.Type().ConvertibleTo(paramType) {
			return toolResult{}, fmt.Errorf("argument %d: cannot use %s as %s", fi, vv.Type(), paramType)
		}
		callArgs[fi] = vv.Convert(paramType)
	}

	results := val.Call(callArgs)
	if len(results) == 0 {
		return toolResult{}, nil
	}

	res := results[0]
	if !res.IsValid() {
		return toolResult{}, nil
	}

	switch vtpe := res.Interface().(type) {
	case api.Agent:
		return toolResult{Value: fmt.Sprintf(`{"assistant":%q}`, vtpe.Name()), Agent: vtpe}, nil
	case error:
		return toolResult{}, vtpe
	case types.RuntimeContext:
		return toolResult{Value: "", RuntimeContext: vtpe}, nil
	case string:
		return toolResult{Value: vtpe}, nil
	case time.Time:
		return toolResult{Value: vtpe.Format(time.RFC3339)}, nil
	case int, int8, int16, int32, int64:
		val := reflect.ValueOf(vtpe)
		return toolResult{Value: strconv.FormatInt(val.Int(), 10)}, nil
	case uint, uint8, uint16, uint32, uint64:
		val := reflect.ValueOf(vtpe)
		return toolResult{Value: strconv.FormatUint(val.Uint(), 10)}, nil
	case float32, float64:
		return toolResult{Value: strconv.FormatFloat(reflect.ValueOf(vtpe).Float(), 'f', -1, 64)}, nil
	case encoding.TextMarshaler:
		b, err := vtpe.MarshalText()
		if err != nil {
			slog.Error("Error marshalling function return", slogx.Error(err))
			return toolResult{}, err
		}
		return toolResult{Value: string(b)}, nil
	case fmt.Stringer:
		return toolResult{Value: vtpe.String()}, nil
	default:
		b, err := json.Marshal(vtpe)
		if err != nil {
			slog.Error("Error marshalling function return", slogx.Error(err))
			return toolResult{}, err
		}
		return toolResult{Value: string(b)}, nil
	}
}
