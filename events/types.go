package events

import (
	"errors"
	"fmt"

	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/provider"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	delimJSON    = []byte(`{"type":"delim"}`)
	chunkJSON    = []byte(`{"type":"chunk"}`)
	requestJSON  = []byte(`{"type":"request"}`)
	responseJSON = []byte(`{"type":"response"}`)
	resultJSON   = []byte(`{"type":"result"}`)
	errorJSON    = []byte(`{"type":"error"}`)
)

// Event is the union of things that flow through a run's topic: stream
// delimiters, chunks, requests, responses, final results and errors.
type Event interface {
	event()
}

// FromStreamEvent lifts a provider stream event into a run event,
// attributing it to the agent that produced it.
func FromStreamEvent(e provider.StreamEvent, sender string) Event {
	switch event := e.(type) {
	case provider.Delim:
		return Delim(event)
	case provider.Chunk[messages.ToolCallMessage]:
		return Chunk[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Chunk:     event.Chunk,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	case provider.Chunk[messages.AssistantMessage]:
		return Chunk[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Chunk:     event.Chunk,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	case provider.Response[messages.ToolCallMessage]:
		return Response[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Response:  event.Response,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	case provider.Response[messages.AssistantMessage]:
		return Response[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Response:  event.Response,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	case provider.Error:
		return Error{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Err:       event.Err,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	default:
		panic(fmt.Sprintf("unknown event type: %T", event))
	}
}

// ToJSON serializes an event with its type discriminator.
func ToJSON(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event, dispatching on the top-level type and,
// for payload-carrying events, on the payload's own type tag.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() {
		return nil, errors.New("missing required field 'type'")
	}

	switch msgType.String() {
	case "delim":
		var d Delim
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case "chunk":
		switch gjson.GetBytes(data, "chunk.type").String() {
		case "assistant":
			var c Chunk[messages.AssistantMessage]
			if err := json.Unmarshal(data, &c); err != nil {
				return nil, err
			}
			return c, nil
		case "tool_call":
			var c Chunk[messages.ToolCallMessage]
			if err := json.Unmarshal(data, &c); err != nil {
				return nil, err
			}
			return c, nil
		default:
			return nil, fmt.Errorf("unknown chunk type: %s", gjson.GetBytes(data, "chunk.type").String())
		}
	case "request":
		switch gjson.GetBytes(data, "message.type").String() {
		case "user":
			var r Request[messages.UserMessage]
			if err := json.Unmarshal(data, &r); err != nil {
				return nil, err
			}
			return r, nil
		case "tool_response":
			var r Request[messages.ToolResponse]
			if err := json.Unmarshal(data, &r); err != nil {
				return nil, err
			}
			return r, nil
		default:
			return nil, fmt.Errorf("unknown request message type: %s", gjson.GetBytes(data, "message.type").String())
		}
	case "response":
		switch gjson.GetBytes(data, "response.type").String() {
		case "assistant":
			var r Response[messages.AssistantMessage]
			if err := json.Unmarshal(data, &r); err != nil {
				return nil, err
			}
			return r, nil
		case "tool_call":
			var r Response[messages.ToolCallMessage]
			if err := json.Unmarshal(data, &r); err != nil {
				return nil, err
			}
			return r, nil
		default:
			return nil, fmt.Errorf("unknown response type: %s", gjson.GetBytes(data, "response.type").String())
		}
	case "result":
		var r Result[json.RawMessage]
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case "error":
		var e Error
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", msgType.String())
	}
}

// Delim marks the beginning and end of a streamed response.
type Delim struct {
	RunID  uuid.UUID `json:"run_id"`
	TurnID uuid.UUID `json:"turn_id"`
	Delim  string    `json:"delim"`
}

func (Delim) event() {}

func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(delimJSON, "run_id", d.RunID.String())
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "turn_id", d.TurnID.String()); err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if err := requireType(data, "delim"); err != nil {
		return err
	}
	if err := parseIDs(data, &d.RunID, &d.TurnID); err != nil {
		return err
	}

	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return fmt.Errorf("missing required field 'delim'")
	}
	d.Delim = delim.String()
	return nil
}

// Chunk is an incremental piece of a streamed response, attributed to
// the agent that produced it.
type Chunk[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Chunk     T               `json:"chunk"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Chunk[T]) event() {}

func (c Chunk[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalIDs(chunkJSON, c.RunID, c.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = marshalPayload(result, "chunk", c.Chunk); err != nil {
		return nil, err
	}
	return setEnvelope(result, c.Sender, c.Timestamp, c.Meta)
}

func (c *Chunk[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if err := requireType(data, "chunk"); err != nil {
		return err
	}
	if err := parseIDs(data, &c.RunID, &c.TurnID); err != nil {
		return err
	}
	if err := unmarshalPayload(data, "chunk", &c.Chunk); err != nil {
		return err
	}
	return parseEnvelope(data, &c.Sender, &c.Timestamp, &c.Meta)
}

// Request wraps an inbound message, either the user's prompt or a tool
// response feeding back into the run.
type Request[T messages.Request] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Message   T               `json:"message"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Request[T]) event() {}

func (r Request[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalIDs(requestJSON, r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = marshalPayload(result, "message", r.Message); err != nil {
		return nil, err
	}
	return setEnvelope(result, r.Sender, r.Timestamp, r.Meta)
}

func (r *Request[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if err := requireType(data, "request"); err != nil {
		return err
	}
	if err := parseIDs(data, &r.RunID, &r.TurnID); err != nil {
		return err
	}
	if err := unmarshalPayload(data, "message", &r.Message); err != nil {
		return err
	}
	return parseEnvelope(data, &r.Sender, &r.Timestamp, &r.Meta)
}

// Response carries a completed model turn.
type Response[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Response  T               `json:"response"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Response[T]) event() {}

func (r Response[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalIDs(responseJSON, r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = marshalPayload(result, "response", r.Response); err != nil {
		return nil, err
	}
	return setEnvelope(result, r.Sender, r.Timestamp, r.Meta)
}

func (r *Response[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if err := requireType(data, "response"); err != nil {
		return err
	}
	if err := parseIDs(data, &r.RunID, &r.TurnID); err != nil {
		return err
	}
	if err := unmarshalPayload(data, "response", &r.Response); err != nil {
		return err
	}
	return parseEnvelope(data, &r.Sender, &r.Timestamp, &r.Meta)
}

// Result is the terminal value of a run, structured or plain text.
type Result[T any] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Result    T               `json:"result"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Result[T]) event() {}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalIDs(resultJSON, r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = marshalPayload(result, "result", r.Result); err != nil {
		return nil, err
	}
	return setEnvelope(result, r.Sender, r.Timestamp, r.Meta)
}

func (r *Result[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if err := requireType(data, "result"); err != nil {
		return err
	}
	if err := parseIDs(data, &r.RunID, &r.TurnID); err != nil {
		return err
	}
	if err := unmarshalPayload(data, "result", &r.Result); err != nil {
		return err
	}
	return parseEnvelope(data, &r.Sender, &r.Timestamp, &r.Meta)
}

// Error reports a failed run.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Err       error           `json:"error"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) event() {}

func (e Error) Error() string {
	errStr := "<nil>"
	if e.Err != nil {
		errStr = e.Err.Error()
	}
	return fmt.Sprintf("%s run_id=%s turn_id=%s", errStr, e.RunID, e.TurnID)
}

func (e Error) MarshalJSON() ([]byte, error) {
	result, err := marshalIDs(errorJSON, e.RunID, e.TurnID)
	if err != nil {
		return nil, err
	}
	if e.Err != nil {
		if result, err = sjson.SetBytes(result, "error", e.Err.Error()); err != nil {
			return nil, err
		}
	}
	return setEnvelope(result, e.Sender, e.Timestamp, e.Meta)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if err := requireType(data, "error"); err != nil {
		return err
	}
	if err := parseIDs(data, &e.RunID, &e.TurnID); err != nil {
		return err
	}

	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())

	return parseEnvelope(data, &e.Sender, &e.Timestamp, &e.Meta)
}

func requireType(data []byte, want string) error {
	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != want {
		return fmt.Errorf("missing or invalid type, expected '%s'", want)
	}
	return nil
}

func marshalIDs(prefix []byte, runID, turnID uuid.UUID) ([]byte, error) {
	result, err := sjson.SetBytes(prefix, "run_id", runID.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "turn_id", turnID.String())
}

func parseIDs(data []byte, runID, turnID *uuid.UUID) error {
	rid := gjson.GetBytes(data, "run_id")
	if !rid.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := runID.UnmarshalText([]byte(rid.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	tid := gjson.GetBytes(data, "turn_id")
	if !tid.Exists() {
		return fmt.Errorf("missing required field 'turn_id'")
	}
	if err := turnID.UnmarshalText([]byte(tid.String())); err != nil {
		return fmt.Errorf("invalid turn_id: %w", err)
	}
	return nil
}

func marshalPayload(result []byte, field string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", field, err)
	}
	return sjson.SetRawBytes(result, field, payloadBytes)
}

func unmarshalPayload(data []byte, field string, dst any) error {
	payload := gjson.GetBytes(data, field)
	if !payload.Exists() {
		return fmt.Errorf("missing required field '%s'", field)
	}
	if err := json.Unmarshal([]byte(payload.Raw), dst); err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	return nil
}

func setEnvelope(result []byte, sender string, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	var err error
	if sender != "" {
		if result, err = sjson.SetBytes(result, "sender", sender); err != nil {
			return nil, err
		}
	}
	if !ts.IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", ts.String()); err != nil {
			return nil, err
		}
	}
	if meta.Exists() {
		if result, err = sjson.SetRawBytes(result, "meta", []byte(meta.Raw)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func parseEnvelope(data []byte, sender *string, ts *strfmt.DateTime, meta *gjson.Result) error {
	if s := gjson.GetBytes(data, "sender"); s.Exists() {
		*sender = s.String()
	}
	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := ts.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if m := gjson.GetBytes(data, "meta"); m.Exists() {
		*meta = m
	}
	return nil
}
