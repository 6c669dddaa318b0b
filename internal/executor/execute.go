package executor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/internal/shortterm"
	"github.com/deanmachines/foundry/pkg/stdx"
	"github.com/deanmachines/foundry/pkg/uuidx"
	"github.com/deanmachines/foundry/provider"
	"github.com/deanmachines/foundry/types"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// Structured outputs accept a subset of JSON schema. These flags keep
// the reflected schema inside that subset.
var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// ToJSONSchema reflects T into the schema a provider expects for
// structured output.
func ToJSONSchema[T any]() *jsonschema.Schema {
	var v T
	return reflector.Reflect(v)
}

// NewRunCommand assembles a validated command for a single agent run.
func NewRunCommand[T any](agent api.Agent, thread *shortterm.Aggregator, hook events.Hook[T]) (RunCommand[T], error) {
	var err error
	if agent == nil {
		err = errors.Join(err, errors.New("agent is required"))
	}
	if thread == nil {
		err = errors.Join(err, errors.New("thread is required"))
	}
	if hook == nil {
		err = errors.Join(err, errors.New("hook is required"))
	}

	if err != nil {
		return RunCommand[T]{}, err
	}

	return RunCommand[T]{
		id:       uuidx.New(),
		Agent:    agent,
		Thread:   thread,
		Hook:     hook,
		MaxTurns: math.MaxInt,
	}, nil
}

// RunCommand captures everything a run needs: the agent, the
// conversation so far, the hook observing progress, and the limits.
type RunCommand[T any] struct {
	id             uuid.UUID
	Agent          api.Agent
	Thread         *shortterm.Aggregator
	ResponseSchema *provider.StructuredOutput
	Stream         bool
	MaxTurns       int
	RuntimeContext types.RuntimeContext
	Hook           events.Hook[T]
}

func (r *RunCommand[T]) Validate() error {
	if r.Agent == nil {
		return fmt.Errorf("agent cannot be nil")
	}
	if r.Thread == nil {
		return fmt.Errorf("thread cannot be nil")
	}
	if r.Hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	return nil
}

func (r *RunCommand[T]) initializeRuntimeContext() types.RuntimeContext {
	if r.RuntimeContext != nil {
		return maps.Clone(r.RuntimeContext)
	}
	return nil
}

func (r *RunCommand[T]) ID() uuid.UUID {
	return r.id
}

func (r RunCommand[T]) WithStream(stream bool) RunCommand[T] {
	r.Stream = stream
	return r
}

func (r RunCommand[T]) WithMaxTurns(maxTurns int) RunCommand[T] {
	r.MaxTurns = maxTurns
	return r
}

func (r RunCommand[T]) WithRuntimeContext(rc types.RuntimeContext) RunCommand[T] {
	r.RuntimeContext = rc
	return r
}

func (r RunCommand[T]) WithResponseSchema(output *provider.StructuredOutput) RunCommand[T] {
	r.ResponseSchema = output
	return r
}

// DefaultUnmarshal picks the conversion from the model's final text to
// T: passthrough for strings, gjson parse for gjson.Result, JSON
// decoding for everything else.
func DefaultUnmarshal[T any]() func([]byte) (T, error) {
	var t T
	if _, isGjsonResult := any(t).(gjson.Result); isGjsonResult {
		return func(data []byte) (T, error) {
			result := gjson.ParseBytes(data)
			return any(result).(T), nil
		}
	}

	if reflect.TypeFor[T]().Kind() == reflect.String {
		return func(data []byte) (T, error) {
			return any(string(data)).(T), nil
		}
	}

	return func(data []byte) (T, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return v, err
		}
		return v, nil
	}
}

// CompletableFuture is the writer and reader side of a run's outcome.
type CompletableFuture[T any] interface {
	Future[T]
	Promise
}

// Promise receives the outcome of a run.
type Promise interface {
	Complete(string)
	Error(error)
}

// Future yields the outcome of a run, blocking until it is available.
type Future[T any] interface {
	Get() (T, error)
}

type futState struct {
	value string
	err   error
}

type futResult[T any] struct {
	result T
	err    error
	done   bool
}

type future[T any] struct {
	unmarshal func([]byte) (T, error)
	ch        chan futState
	result    atomic.Value // holds *futResult[T]
	once      sync.Once
	mu        sync.Mutex
}

// NewFuture builds a single-use future that converts the completed
// value with the given unmarshal function.
func NewFuture[T any](unmarshal func([]byte) (T, error)) CompletableFuture[T] {
	f := &future[T]{
		unmarshal: unmarshal,
		ch:        make(chan futState, 1),
	}
	f.result.Store(&futResult[T]{})
	return f
}

func (f *future[T]) Get() (T, error) {
	res := f.result.Load().(*futResult[T])
	if res.done {
		return res.result, res.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	res = f.result.Load().(*futResult[T])
	if res.done {
		return res.result, res.err
	}

	r := <-f.ch
	var newResult futResult[T]
	if r.err != nil {
		newResult = futResult[T]{
			result: stdx.Zero[T](),
			err:    r.err,
			done:   true,
		}
	} else {
		result, err := f.unmarshal([]byte(r.value))
		newResult = futResult[T]{
			result: result,
			err:    err,
			done:   true,
		}
	}
	f.result.Store(&newResult)
	return newResult.result, newResult.err
}

func (f *future[T]) Complete(data string) {
	f.once.Do(func() {
		f.ch <- futState{value: data}
	})
}

func (f *future[T]) Error(err error) {
	f.once.Do(func() {
		f.ch <- futState{err: err}
	})
}

// Executor drives a run command to completion.
type Executor[T any] interface {
	Run(context.Context, RunCommand[T], Promise) error
}
