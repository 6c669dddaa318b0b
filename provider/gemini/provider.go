// Package gemini implements the provider interface on top of Google's
// Gemini API via the generative-ai-go SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"time"

	"github.com/deanmachines/foundry/internal/shortterm"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/pkg/uuidx"
	"github.com/deanmachines/foundry/provider"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/generative-ai-go/genai"
	"github.com/tidwall/gjson"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Provider struct {
	client *genai.Client
	err    error
}

// New creates a Gemini provider. When no client options are given the
// API key is taken from GEMINI_API_KEY or GOOGLE_API_KEY.
func New(opts ...option.ClientOption) *Provider {
	if len(opts) == 0 {
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			return &Provider{err: errors.New("gemini api key required: set GEMINI_API_KEY or GOOGLE_API_KEY")}
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return &Provider{err: fmt.Errorf("failed to create gemini client: %w", err)}
	}
	return &Provider{client: client}
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	if p.err != nil {
		return nil, p.err
	}

	model := p.client.GenerativeModel(params.Model.Name())
	temp := float32(0.1)
	model.Temperature = &temp
	if params.Instructions != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(params.Instructions)},
		}
	}
	if params.ResponseSchema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(params.ResponseSchema.Schema)
	}

	if len(params.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, len(params.Tools))
		for i, tool := range params.Tools {
			if tool.Function == nil {
				return nil, fmt.Errorf("tool %s has nil function", tool.Name)
			}
			name, schema := tool.ToNameAndSchema()
			declarations[i] = &genai.FunctionDeclaration{
				Name:        name,
				Description: tool.Description,
				Parameters:  toGenaiSchema(schema),
			}
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	history, last := messagesToGemini(params.Thread.MessagesIter())
	session := model.StartChat()
	session.History = history

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, session, last, &params, events)
		} else {
			p.runOnce(ctx, session, last, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runOnce(ctx context.Context, session *genai.ChatSession, last []genai.Part, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		events <- provider.Error{
			Err:       fmt.Errorf("gemini api error: %w", err),
			RunID:     command.RunID,
			TurnID:    command.Thread.ID(),
			Timestamp: strfmt.DateTime(time.Now()),
		}
		return
	}

	events <- responseToStreamEvent(resp, command)
}

func (p *Provider) runStream(ctx context.Context, session *genai.ChatSession, last []genai.Part, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	strm := session.SendMessageStream(ctx, last...)

	var notFirst bool
	var acc accumulator

	for {
		resp, err := strm.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			events <- provider.Error{
				Err:       fmt.Errorf("gemini api error: %w", err),
				RunID:     command.RunID,
				TurnID:    command.Thread.ID(),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}
		if ctx.Err() != nil {
			events <- provider.Error{
				Err:       ctx.Err(),
				RunID:     command.RunID,
				TurnID:    command.Thread.ID(),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}

		if !notFirst {
			notFirst = true
			events <- provider.Delim{Delim: "start"}
		}

		acc.add(resp)
		if text := textContent(resp); text != "" {
			events <- provider.Chunk[messages.AssistantMessage]{
				RunID:  command.RunID,
				TurnID: command.Thread.ID(),
				Chunk: messages.AssistantMessage{
					Content: messages.AssistantContentOrParts{Content: text},
				},
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}
	}

	if notFirst {
		events <- provider.Delim{Delim: "end"}
		events <- acc.toStreamEvent(command)
	}
}

// accumulator collects streamed chunks into a final response the same
// way the openai accumulator does.
type accumulator struct {
	text      string
	toolCalls []messages.ToolCallData
	usage     *genai.UsageMetadata
}

func (a *accumulator) add(resp *genai.GenerateContentResponse) {
	a.text += textContent(resp)
	a.toolCalls = append(a.toolCalls, functionCalls(resp)...)
	if resp.UsageMetadata != nil {
		a.usage = resp.UsageMetadata
	}
}

func (a *accumulator) toStreamEvent(command *provider.CompletionParams) provider.StreamEvent {
	recordUsage(a.usage, command)

	if len(a.toolCalls) > 0 {
		return provider.Response[messages.ToolCallMessage]{
			RunID:      command.RunID,
			TurnID:     command.Thread.ID(),
			Checkpoint: command.Thread.Checkpoint(),
			Response:   messages.ToolCallMessage{ToolCalls: a.toolCalls},
			Timestamp:  strfmt.DateTime(time.Now()),
		}
	}

	return provider.Response[messages.AssistantMessage]{
		RunID:      command.RunID,
		TurnID:     command.Thread.ID(),
		Checkpoint: command.Thread.Checkpoint(),
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: a.text},
		},
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func responseToStreamEvent(resp *genai.GenerateContentResponse, command *provider.CompletionParams) provider.StreamEvent {
	recordUsage(resp.UsageMetadata, command)

	if calls := functionCalls(resp); len(calls) > 0 {
		return provider.Response[messages.ToolCallMessage]{
			RunID:      command.RunID,
			TurnID:     command.Thread.ID(),
			Checkpoint: command.Thread.Checkpoint(),
			Response:   messages.ToolCallMessage{ToolCalls: calls},
			Timestamp:  strfmt.DateTime(time.Now()),
		}
	}

	return provider.Response[messages.AssistantMessage]{
		RunID:      command.RunID,
		TurnID:     command.Thread.ID(),
		Checkpoint: command.Thread.Checkpoint(),
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: textContent(resp)},
		},
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func recordUsage(usage *genai.UsageMetadata, command *provider.CompletionParams) {
	if usage == nil {
		return
	}
	command.Thread.AddUsage(&shortterm.Usage{
		PromptTokens:     int64(usage.PromptTokenCount),
		CompletionTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:      int64(usage.TotalTokenCount),
		PromptTokensDetails: shortterm.PromptTokensDetails{
			CachedTokens: int64(usage.CachedContentTokenCount),
		},
	})
}

// messagesToGemini converts the conversation history to Gemini contents
// and splits off the parts of the final message, which the chat session
// sends itself.
func messagesToGemini(iter iter.Seq[messages.Message[messages.ModelMessage]]) ([]*genai.Content, []genai.Part) {
	var contents []*genai.Content
	for message := range iter {
		switch msg := message.Payload.(type) {
		case messages.UserMessage:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: userParts(msg),
			})
		case messages.AssistantMessage:
			text := msg.Content.Content
			for _, part := range msg.Content.Parts {
				if tp, ok := part.(messages.TextContentPart); ok {
					text += tp.Text
				}
			}
			if text != "" {
				contents = append(contents, &genai.Content{
					Role:  "model",
					Parts: []genai.Part{genai.Text(text)},
				})
			}
		case messages.ToolCallMessage:
			parts := make([]genai.Part, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				args := make(map[string]any)
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case messages.ToolResponse:
			contents = append(contents, &genai.Content{
				Role: "function",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     msg.ToolName,
					Response: map[string]any{"content": msg.Content},
				}},
			})
		case messages.Retry:
			content := ""
			if msg.Error != nil {
				content = msg.Error.Error()
			}
			contents = append(contents, &genai.Content{
				Role: "function",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     msg.ToolName,
					Response: map[string]any{"error": content},
				}},
			})
		}
	}

	if len(contents) == 0 {
		return nil, []genai.Part{genai.Text("")}
	}
	last := contents[len(contents)-1]
	return contents[:len(contents)-1], last.Parts
}

func userParts(msg messages.UserMessage) []genai.Part {
	if msg.Content.Content != "" {
		return []genai.Part{genai.Text(msg.Content.Content)}
	}
	parts := make([]genai.Part, 0, len(msg.Content.Parts))
	for _, part := range msg.Content.Parts {
		switch part := part.(type) {
		case messages.TextContentPart:
			parts = append(parts, genai.Text(part.Text))
		case messages.ImageContentPart:
			parts = append(parts, genai.Text(part.URL))
		}
	}
	return parts
}

func textContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var content string
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content += string(txt)
		}
	}
	return content
}

func functionCalls(resp *genai.GenerateContentResponse) []messages.ToolCallData {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []messages.ToolCallData
	for _, part := range resp.Candidates[0].Content.Parts {
		fc, ok := part.(genai.FunctionCall)
		if !ok {
			continue
		}
		args, err := json.Marshal(fc.Args)
		if err != nil {
			args = []byte("{}")
		}
		calls = append(calls, messages.CallTool(uuidx.NewString(), fc.Name, gjson.ParseBytes(args)))
	}
	return calls
}
