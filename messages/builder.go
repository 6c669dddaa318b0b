package messages

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
)

// New starts a message builder stamped with the current time. The
// builder is a value type, so partially configured builders can be
// reused without aliasing.
func New() messageBuilder {
	return messageBuilder{timestamp: strfmt.DateTime(time.Now())}
}

type messageBuilder struct {
	sender    string
	timestamp strfmt.DateTime
	metadata  gjson.Result
	_         struct{}
}

// WithSender sets the sender recorded on built messages.
func (b messageBuilder) WithSender(sender string) messageBuilder {
	b.sender = sender
	return b
}

// WithTimestamp overrides the timestamp recorded on built messages.
func (b messageBuilder) WithTimestamp(timestamp strfmt.DateTime) messageBuilder {
	b.timestamp = timestamp
	return b
}

// WithMetadata attaches a parsed JSON metadata blob to built messages.
func (b messageBuilder) WithMetadata(meta gjson.Result) messageBuilder {
	b.metadata = meta
	return b
}

func (b messageBuilder) timestampOrNow() strfmt.DateTime {
	if time.Time(b.timestamp).IsZero() {
		return strfmt.DateTime(time.Now())
	}
	return b.timestamp
}

// Instructions builds a system prompt message.
func (b messageBuilder) Instructions(content string) Message[InstructionsMessage] {
	return Message[InstructionsMessage]{
		Payload:   InstructionsMessage{Content: content},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}

// UserPrompt builds a plain text user message.
func (b messageBuilder) UserPrompt(content string) Message[UserMessage] {
	return Message[UserMessage]{
		Payload:   UserMessage{Content: ContentOrParts{Content: content}},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}

// UserPromptMultipart builds a user message from typed content parts.
func (b messageBuilder) UserPromptMultipart(parts ...ContentPart) Message[UserMessage] {
	return Message[UserMessage]{
		Payload:   UserMessage{Content: ContentOrParts{Parts: parts}},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}

// AssistantMessage builds a plain text assistant message.
func (b messageBuilder) AssistantMessage(content string) Message[AssistantMessage] {
	return Message[AssistantMessage]{
		Payload:   AssistantMessage{Content: AssistantContentOrParts{Content: content}},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}

// AssistantRefusal builds an assistant message that declines a request.
func (b messageBuilder) AssistantRefusal(refusal string) Message[AssistantMessage] {
	return Message[AssistantMessage]{
		Payload:   AssistantMessage{Refusal: refusal},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}

// AssistantMessageMultipart builds an assistant message from typed
// content parts.
func (b messageBuilder) AssistantMessageMultipart(parts ...AssistantContentPart) Message[AssistantMessage] {
	return Message[AssistantMessage]{
		Payload:   AssistantMessage{Content: AssistantContentOrParts{Parts: parts}},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}

// ToolCall builds the message recording the tool invocations requested
// by the model.
func (b messageBuilder) ToolCall(calls []ToolCallData) Message[ToolCallMessage] {
	return Message[ToolCallMessage]{
		Payload:   ToolCallMessage{ToolCalls: calls},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}

// ToolResponse builds the message carrying a successful tool result.
func (b messageBuilder) ToolResponse(callID, toolName, content string) Message[ToolResponse] {
	return Message[ToolResponse]{
		Payload: ToolResponse{
			ToolCallID: callID,
			ToolName:   toolName,
			Content:    content,
		},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}

// ToolError builds the retry message for a failed tool call.
func (b messageBuilder) ToolError(callID, toolName string, err error) Message[Retry] {
	return Message[Retry]{
		Payload: Retry{
			Error:      err,
			ToolCallID: callID,
			ToolName:   toolName,
		},
		Sender:    b.sender,
		Timestamp: b.timestampOrNow(),
		Meta:      b.metadata,
	}
}
