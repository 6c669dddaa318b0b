// Package shortterm holds the in-flight conversation state of a run:
// the ordered message history, fork/join support for handoffs between
// agents, and token usage accounting.
package shortterm

import (
	"iter"
	"slices"

	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/pkg/uuidx"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// AggregatedMessages is an ordered collection of type-erased messages.
type AggregatedMessages []messages.Message[messages.ModelMessage]

// Len returns the number of messages in the collection.
func (a AggregatedMessages) Len() int {
	return len(a)
}

// New creates an empty aggregator with a fresh id.
func New() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: make(AggregatedMessages, 0),
		usage:    Usage{},
	}
}

// Aggregator collects the messages of a run in order and tracks token
// usage. Fork and Join allow an agent handoff to work on a copy of the
// history and merge only its additions back.
//
// An aggregator is not safe for concurrent use; each run owns its own.
type Aggregator struct {
	id       uuid.UUID
	messages AggregatedMessages
	initLen  int // length at fork time, used when joining
	usage    Usage
}

// ID returns the identifier of this aggregator. Forked aggregators get
// their own id, which the executor uses as the turn id.
func (a *Aggregator) ID() uuid.UUID {
	return a.id
}

// Len returns the total number of messages held.
func (a *Aggregator) Len() int {
	return a.messages.Len()
}

// TurnLen returns the number of messages added since the fork point.
func (a *Aggregator) TurnLen() int {
	return len(a.messages) - a.initLen
}

// Messages returns a copy of all messages.
func (a *Aggregator) Messages() AggregatedMessages {
	return slices.Clone(a.messages)
}

// MessagesIter iterates the history without copying it.
func (a *Aggregator) MessagesIter() iter.Seq[messages.Message[messages.ModelMessage]] {
	return slices.Values(a.messages)
}

func eraseType[T messages.ModelMessage](m messages.Message[T]) messages.Message[messages.ModelMessage] {
	return messages.Message[messages.ModelMessage]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Payload:   m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}

// AddMessage appends any message type to the aggregator. Prefer the
// typed Add methods where the payload type is known statically.
func AddMessage[T messages.ModelMessage](a *Aggregator, m messages.Message[T]) {
	a.add(eraseType(m))
}

// AddUserPrompt appends a user message.
func (a *Aggregator) AddUserPrompt(m messages.Message[messages.UserMessage]) {
	a.add(eraseType(m))
}

// AddAssistantMessage appends an assistant response.
func (a *Aggregator) AddAssistantMessage(m messages.Message[messages.AssistantMessage]) {
	a.add(eraseType(m))
}

// AddToolCall appends a tool call request.
func (a *Aggregator) AddToolCall(m messages.Message[messages.ToolCallMessage]) {
	a.add(eraseType(m))
}

// AddToolResponse appends a tool result.
func (a *Aggregator) AddToolResponse(m messages.Message[messages.ToolResponse]) {
	a.add(eraseType(m))
}

func (a *Aggregator) add(m messages.Message[messages.ModelMessage]) {
	a.messages = append(a.messages, m)
}

// AddUsage folds a provider's reported token usage into the run total.
func (a *Aggregator) AddUsage(u *Usage) {
	a.usage.AddUsage(u)
}

// Usage returns the accumulated usage statistics.
func (a *Aggregator) Usage() Usage {
	return a.usage
}

// Fork returns a new aggregator seeded with a copy of the current
// messages. The fork remembers the current length so Join can append
// only what was added afterwards.
func (a *Aggregator) Fork() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: slices.Clone(a.messages),
		initLen:  a.Len(),
	}
}

// Join appends the messages b gained after it was forked and merges its
// usage into this aggregator.
func (a *Aggregator) Join(b *Aggregator) {
	a.messages = append(a.messages, b.messages[b.initLen:]...)
	a.usage.AddUsage(&b.usage)
}

// Checkpoint snapshots the current state. The snapshot is immutable;
// later changes to the aggregator do not affect it.
func (a *Aggregator) Checkpoint() Checkpoint {
	return Checkpoint{
		id:       a.id,
		messages: slices.Clone(a.messages),
		usage:    a.usage,
		initLen:  a.initLen,
	}
}

// Checkpoint is a frozen copy of an aggregator's state. Providers embed
// one in their final stream event so subscribers can reconstruct the
// turn without sharing the live aggregator.
type Checkpoint struct {
	id       uuid.UUID
	messages AggregatedMessages
	usage    Usage
	initLen  int
}

// ID returns the id of the aggregator this checkpoint was taken from.
func (c *Checkpoint) ID() uuid.UUID {
	return c.id
}

// Messages returns a copy of the snapshotted messages.
func (c *Checkpoint) Messages() AggregatedMessages {
	return slices.Clone(c.messages)
}

// Usage returns the usage recorded at checkpoint time.
func (c *Checkpoint) Usage() Usage {
	return c.usage
}

// MergeInto appends the checkpoint's post-fork messages and usage into
// another aggregator.
func (c *Checkpoint) MergeInto(other *Aggregator) {
	other.messages = append(other.messages, c.messages[c.initLen:]...)
	other.usage.AddUsage(&c.usage)
	if other.id == uuid.Nil {
		other.id = c.id
	}
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string                                     `json:"id"`
		Messages []*messages.Message[messages.ModelMessage] `json:"messages"`
		Usage    Usage                                      `json:"usage"`
		InitLen  int                                        `json:"init_len"`
	}{
		ID:       c.id.String(),
		Messages: ptrSlice(c.messages),
		Usage:    c.usage,
		InitLen:  c.initLen,
	})
}

func ptrSlice[T any](in []T) (out []*T) {
	out = make([]*T, len(in))
	for i, v := range in {
		out[i] = &v
	}
	return
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var tmp struct {
		ID       string                                    `json:"id"`
		Messages []messages.Message[messages.ModelMessage] `json:"messages"`
		Usage    Usage                                     `json:"usage"`
		InitLen  int                                       `json:"init_len"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	id, err := uuid.Parse(tmp.ID)
	if err != nil {
		return err
	}
	c.id = id
	c.messages = tmp.Messages
	c.usage = tmp.Usage
	c.initLen = tmp.InitLen
	return nil
}
