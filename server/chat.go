package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/deanmachines/foundry"
	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/memory"
	"github.com/deanmachines/foundry/messages"
	"github.com/deanmachines/foundry/pkg/uuidx"
	"github.com/deanmachines/foundry/pubsub"
	"github.com/deanmachines/foundry/types"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
)

type chatRequest struct {
	SessionID string         `json:"session_id" validate:"omitempty,max=128"`
	Message   string         `json:"message" validate:"required,max=32768"`
	Context   map[string]any `json:"context"`
	// Agent bypasses the router and addresses one roster member directly.
	Agent string `json:"agent"`
}

type chatResponse struct {
	SessionID string        `json:"session_id"`
	RunID     string        `json:"run_id,omitempty"`
	Agent     string        `json:"agent,omitempty"`
	Content   string        `json:"content"`
	Usage     foundry.Usage `json:"usage"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "could not read request body", err.Error())
		return
	}

	var req chatRequest
	if err := swag.ReadJSON(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid json", err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "request validation failed", err.Error())
		return
	}

	wf, err := s.workflow(req)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "unknown_agent", err.Error(), "")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuidx.NewString()
	}

	rtc := types.RuntimeContext{"session_id": sessionID}
	for k, v := range req.Context {
		rtc[k] = v
	}

	ctx := r.Context()
	history, err := s.memory.History(ctx, sessionID, s.historyLimit)
	if err != nil {
		// a cold memory backend degrades the chat, it does not fail it
		log.Warn().Err(err).Str("session_id", sessionID).Msg("history unavailable")
	}

	capture := &chatCapture{}
	topic := s.broker.Topic(ctx, sessionID)
	hook := runHook{events.NewCompositeHook[string](capture, pubsub.PublishingHook[string](topic))}

	rc := foundry.Local[string](hook,
		foundry.WithRuntimeContext(rtc),
		foundry.WithMaxTurns(s.maxTurns),
	).WithPriorTurns(priorTurns(history)...)

	if err := foundry.Run(ctx, wf, rc); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("chat run failed")
		s.writeError(w, http.StatusInternalServerError, "run_failed", "the conversation run failed", err.Error())
		return
	}

	runID, agentName, content, runErr := capture.outcome()
	if runErr != nil {
		log.Error().Err(runErr).Str("session_id", sessionID).Msg("chat run failed")
		s.writeError(w, http.StatusInternalServerError, "run_failed", "the conversation run failed", runErr.Error())
		return
	}

	s.persistTurn(ctx, sessionID, req.Message, runID, agentName, content)

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: sessionID,
		RunID:     runID,
		Agent:     agentName,
		Content:   content,
		Usage:     rc.Usage(),
	})
}

func (s *Server) workflow(req chatRequest) (*foundry.Workflow, error) {
	if req.Agent == "" {
		return s.network.Workflow(req.Message), nil
	}
	member, found := s.network.Agent(req.Agent)
	if !found {
		return nil, fmt.Errorf("unknown agent %q", req.Agent)
	}
	return foundry.New(
		foundry.Agents(member),
		foundry.Steps(foundry.Step(member.Name(), req.Message)),
	), nil
}

func (s *Server) persistTurn(ctx context.Context, sessionID, prompt, runID, agentName, content string) {
	now := strfmt.DateTime(time.Now().UTC())
	entries := []memory.Entry{
		{Role: memory.RoleUser, Content: prompt, Timestamp: now},
		{RunID: runID, Role: memory.RoleAssistant, Sender: agentName, Content: content, Timestamp: now},
	}
	for _, entry := range entries {
		if err := s.memory.Append(ctx, sessionID, entry); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist chat turn")
		}
	}
}

func priorTurns(history []memory.Entry) []foundry.PriorTurn {
	turns := make([]foundry.PriorTurn, 0, len(history))
	for _, entry := range history {
		turns = append(turns, foundry.PriorTurn{
			Role:    entry.Role,
			Sender:  entry.Sender,
			Content: entry.Content,
		})
	}
	return turns
}

// chatCapture remembers the pieces of a run the chat response needs:
// the final text, which agent answered, and the run id.
type chatCapture struct {
	mu      sync.Mutex
	runID   uuid.UUID
	agent   string
	content string
	err     error
}

func (c *chatCapture) outcome() (runID, agent, content string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := ""
	if c.runID != uuid.Nil {
		id = c.runID.String()
	}
	return id, c.agent, c.content, c.err
}

func (c *chatCapture) OnUserPrompt(context.Context, messages.Message[messages.UserMessage]) {}

func (c *chatCapture) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {
}

func (c *chatCapture) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage]) {}

func (c *chatCapture) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runID = msg.RunID
	c.agent = msg.Sender
}

func (c *chatCapture) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage]) {}

func (c *chatCapture) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse]) {}

func (c *chatCapture) OnResult(_ context.Context, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = result
}

func (c *chatCapture) OnError(_ context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// runHook satisfies the run's hook contract for hooks that have nothing
// to release on close.
type runHook struct {
	events.Hook[string]
}

func (runHook) OnClose(context.Context) {}
