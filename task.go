package foundry

import (
	"fmt"

	"github.com/deanmachines/foundry/messages"
)

type task interface {
	task()
}

type stringTask string

func (s stringTask) task() {}

type messageTask messages.Message[messages.UserMessage]

func (m messageTask) task() {}

// Task constrains the prompt types a conversation step accepts: a plain
// string or a fully built user message.
type Task interface {
	~string | messages.Message[messages.UserMessage]
}

// ConversationStep binds a prompt to the agent that should handle it.
type ConversationStep struct {
	agentName string
	task      task
}

// Step creates a conversation step for the named agent.
func Step[T Task](agentName string, tsk T) ConversationStep {
	var t task
	switch xt := any(tsk).(type) {
	case string:
		t = stringTask(xt)
	case messages.Message[messages.UserMessage]:
		t = messageTask(xt)
	default:
		panic(fmt.Sprintf("invalid task type: %T", xt))
	}
	return ConversationStep{
		agentName: agentName,
		task:      t,
	}
}
