package messages

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ModelMessage is the constraint satisfied by every payload that can
// appear in a conversation history.
type ModelMessage interface {
	message()
}

// Request constrains payloads that flow toward the model.
type Request interface {
	ModelMessage
	request()
}

// Response constrains payloads produced by the model.
type Response interface {
	ModelMessage
	response()
}

// Message is the envelope around a single conversation entry. RunID and
// TurnID tie the entry to a run; they are assigned when the message is
// added to a run's history, not by the builder.
type Message[T ModelMessage] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Payload   T               `json:"-"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (m Message[T]) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}

	out := string(payload)
	if out, err = sjson.Set(out, "run_id", m.RunID.String()); err != nil {
		return nil, err
	}
	if out, err = sjson.Set(out, "turn_id", m.TurnID.String()); err != nil {
		return nil, err
	}
	if m.Sender != "" {
		if out, err = sjson.Set(out, "sender", m.Sender); err != nil {
			return nil, err
		}
	}
	if out, err = sjson.Set(out, "timestamp", m.Timestamp.String()); err != nil {
		return nil, err
	}
	if m.Meta.Exists() {
		if out, err = sjson.SetRaw(out, "meta", m.Meta.Raw); err != nil {
			return nil, err
		}
	}
	return []byte(out), nil
}

func (m *Message[T]) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	parsed := gjson.ParseBytes(data)
	typeField := parsed.Get("type")
	if !typeField.Exists() {
		return fmt.Errorf("missing required field 'type'")
	}

	payload, err := payloadFromJSON(typeField.String(), parsed)
	if err != nil {
		return err
	}
	if err := assignPayload(&m.Payload, payload); err != nil {
		return err
	}

	if rid := parsed.Get("run_id"); rid.Exists() {
		id, err := uuid.Parse(rid.String())
		if err != nil {
			return fmt.Errorf("invalid 'run_id': %w", err)
		}
		m.RunID = id
	}
	if tid := parsed.Get("turn_id"); tid.Exists() {
		id, err := uuid.Parse(tid.String())
		if err != nil {
			return fmt.Errorf("invalid 'turn_id': %w", err)
		}
		m.TurnID = id
	}
	m.Sender = parsed.Get("sender").String()
	if ts := parsed.Get("timestamp"); ts.Exists() {
		dt, err := strfmt.ParseDateTime(ts.String())
		if err != nil {
			return fmt.Errorf("invalid 'timestamp': %w", err)
		}
		m.Timestamp = dt
	}
	if meta := parsed.Get("meta"); meta.Exists() {
		m.Meta = meta
	}
	return nil
}

func payloadFromJSON(messageType string, parsed gjson.Result) (ModelMessage, error) {
	switch messageType {
	case "instructions":
		var p InstructionsMessage
		return p, p.decode(parsed)
	case "user":
		var p UserMessage
		return p, p.decode(parsed)
	case "assistant":
		var p AssistantMessage
		return p, p.decode(parsed)
	case "tool_call":
		var p ToolCallMessage
		return p, p.decode(parsed)
	case "tool_response":
		var p ToolResponse
		return p, p.decode(parsed)
	case "retry":
		var p Retry
		return p, p.decode(parsed)
	default:
		return nil, fmt.Errorf("unknown message type: %s", messageType)
	}
}

func assignPayload[T ModelMessage](dst *T, payload ModelMessage) error {
	switch p := any(dst).(type) {
	case *ModelMessage:
		*p = payload
		return nil
	case *InstructionsMessage:
		if v, ok := payload.(InstructionsMessage); ok {
			*p = v
			return nil
		}
	case *UserMessage:
		if v, ok := payload.(UserMessage); ok {
			*p = v
			return nil
		}
	case *AssistantMessage:
		if v, ok := payload.(AssistantMessage); ok {
			*p = v
			return nil
		}
	case *ToolCallMessage:
		if v, ok := payload.(ToolCallMessage); ok {
			*p = v
			return nil
		}
	case *ToolResponse:
		if v, ok := payload.(ToolResponse); ok {
			*p = v
			return nil
		}
	case *Retry:
		if v, ok := payload.(Retry); ok {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("message payload type %T does not match envelope", payload)
}

type payloadDecoder interface {
	decode(gjson.Result) error
}

func decodePayload(data []byte, dst payloadDecoder) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	return dst.decode(gjson.ParseBytes(data))
}

// InstructionsMessage carries the rendered system prompt for a turn.
type InstructionsMessage struct {
	Content string `json:"content"`
	_       struct{}
}

func (InstructionsMessage) message() {}

func (i InstructionsMessage) MarshalJSON() ([]byte, error) {
	out, err := sjson.Set(`{"type":"instructions"}`, "content", i.Content)
	return []byte(out), err
}

func (i *InstructionsMessage) UnmarshalJSON(data []byte) error {
	return decodePayload(data, i)
}

func (i *InstructionsMessage) decode(parsed gjson.Result) error {
	content := parsed.Get("content")
	if !content.Exists() {
		return fmt.Errorf("missing required field 'content'")
	}
	i.Content = content.String()
	return nil
}

// UserMessage is user input, either plain text or multi-part content.
type UserMessage struct {
	Content ContentOrParts `json:"content"`
	_       struct{}
}

func (UserMessage) message() {}
func (UserMessage) request() {}

func (u UserMessage) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(u.Content)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetRaw(`{"type":"user"}`, "content", string(content))
	return []byte(out), err
}

func (u *UserMessage) UnmarshalJSON(data []byte) error {
	return decodePayload(data, u)
}

func (u *UserMessage) decode(parsed gjson.Result) error {
	content := parsed.Get("content")
	if !content.Exists() {
		return fmt.Errorf("missing required field 'content'")
	}
	return u.Content.decode(content)
}

// AssistantMessage is model output. Content and Refusal are mutually
// exclusive: a populated Refusal means the model declined the request.
type AssistantMessage struct {
	Content AssistantContentOrParts `json:"content,omitempty"`
	Refusal string                  `json:"refusal,omitempty"`
	_       struct{}
}

func (AssistantMessage) message()  {}
func (AssistantMessage) response() {}

func (a AssistantMessage) MarshalJSON() ([]byte, error) {
	out := `{"type":"assistant"}`
	var err error
	if a.Content.Content != "" || len(a.Content.Parts) > 0 {
		var content []byte
		if content, err = json.Marshal(a.Content); err != nil {
			return nil, err
		}
		if out, err = sjson.SetRaw(out, "content", string(content)); err != nil {
			return nil, err
		}
	}
	if a.Refusal != "" {
		if out, err = sjson.Set(out, "refusal", a.Refusal); err != nil {
			return nil, err
		}
	}
	return []byte(out), nil
}

func (a *AssistantMessage) UnmarshalJSON(data []byte) error {
	return decodePayload(data, a)
}

func (a *AssistantMessage) decode(parsed gjson.Result) error {
	content := parsed.Get("content")
	refusal := parsed.Get("refusal")
	if content.Exists() && refusal.Exists() {
		return fmt.Errorf("both 'content' and 'refusal' cannot be present")
	}
	if refusal.Exists() {
		a.Refusal = refusal.String()
		return nil
	}
	if content.Exists() {
		return a.Content.decode(content)
	}
	return nil
}

// ToolCallData describes a single tool invocation requested by the model.
// Arguments is the raw JSON argument object as the model produced it.
type ToolCallData struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	_         struct{}
}

// CallTool builds a ToolCallData from parsed arguments.
func CallTool(id, name string, arguments gjson.Result) ToolCallData {
	return ToolCallData{ID: id, Name: name, Arguments: arguments.Raw}
}

// ToolCallMessage is the set of tool invocations the model requested in
// one turn.
type ToolCallMessage struct {
	ToolCalls []ToolCallData `json:"tool_calls"`
	_         struct{}
}

func (ToolCallMessage) message()  {}
func (ToolCallMessage) response() {}

func (t ToolCallMessage) MarshalJSON() ([]byte, error) {
	calls, err := json.Marshal(t.ToolCalls)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetRaw(`{"type":"tool_call"}`, "tool_calls", string(calls))
	return []byte(out), err
}

func (t *ToolCallMessage) UnmarshalJSON(data []byte) error {
	return decodePayload(data, t)
}

func (t *ToolCallMessage) decode(parsed gjson.Result) error {
	calls := parsed.Get("tool_calls")
	if !calls.Exists() {
		return fmt.Errorf("missing required field 'tool_calls'")
	}
	if !calls.IsArray() {
		return fmt.Errorf("'tool_calls' must be an array")
	}
	for _, call := range calls.Array() {
		t.ToolCalls = append(t.ToolCalls, ToolCallData{
			ID:        call.Get("id").String(),
			Name:      call.Get("name").String(),
			Arguments: call.Get("arguments").String(),
		})
	}
	return nil
}

// ToolResponse is the successful result of running a tool.
type ToolResponse struct {
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	_          struct{}
}

func (ToolResponse) message() {}
func (ToolResponse) request() {}

func (t ToolResponse) MarshalJSON() ([]byte, error) {
	out := `{"type":"tool_response"}`
	var err error
	if out, err = sjson.Set(out, "tool_name", t.ToolName); err != nil {
		return nil, err
	}
	if out, err = sjson.Set(out, "tool_call_id", t.ToolCallID); err != nil {
		return nil, err
	}
	if out, err = sjson.Set(out, "content", t.Content); err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (t *ToolResponse) UnmarshalJSON(data []byte) error {
	return decodePayload(data, t)
}

func (t *ToolResponse) decode(parsed gjson.Result) error {
	for _, field := range []string{"tool_name", "tool_call_id", "content"} {
		if !parsed.Get(field).Exists() {
			return fmt.Errorf("missing required field '%s'", field)
		}
	}
	t.ToolName = parsed.Get("tool_name").String()
	t.ToolCallID = parsed.Get("tool_call_id").String()
	t.Content = parsed.Get("content").String()
	return nil
}

// Retry reports a failed tool call back to the model so it can correct
// the arguments and try again.
type Retry struct {
	Error      error  `json:"error"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	_          struct{}
}

func (Retry) message() {}
func (Retry) request() {}

func (r Retry) MarshalJSON() ([]byte, error) {
	out := `{"type":"retry"}`
	var err error
	if r.Error != nil {
		if out, err = sjson.Set(out, "error", r.Error.Error()); err != nil {
			return nil, err
		}
	}
	if r.ToolName != "" {
		if out, err = sjson.Set(out, "tool_name", r.ToolName); err != nil {
			return nil, err
		}
	}
	if r.ToolCallID != "" {
		if out, err = sjson.Set(out, "tool_call_id", r.ToolCallID); err != nil {
			return nil, err
		}
	}
	return []byte(out), nil
}

func (r *Retry) UnmarshalJSON(data []byte) error {
	return decodePayload(data, r)
}

func (r *Retry) decode(parsed gjson.Result) error {
	errField := parsed.Get("error")
	if !errField.Exists() {
		return fmt.Errorf("missing required field 'error'")
	}
	r.Error = errors.New(errField.String())
	r.ToolName = parsed.Get("tool_name").String()
	r.ToolCallID = parsed.Get("tool_call_id").String()
	return nil
}
