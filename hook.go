package foundry

import (
	"context"

	"github.com/deanmachines/foundry/events"
)

// Hook observes a conversation run. It extends the event hook with a
// close callback that fires after the final result has been forwarded.
type Hook[T any] interface {
	events.Hook[T]
	OnClose(context.Context)
}
