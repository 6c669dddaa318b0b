package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/deanmachines/foundry/events"
	"github.com/deanmachines/foundry/pubsub"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
)

// handleStream upgrades to a websocket and relays every event published
// for the session, serialized with the event type discriminator. The
// connection stays open until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "session_id query parameter is required", "")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writer := &wsWriter{conn: conn}
	topic := s.broker.Topic(ctx, sessionID)
	sub, err := topic.Subscribe(ctx, pubsub.EventHook[string](writer.write))
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("subscribe failed")
		return
	}
	defer sub.Unsubscribe()

	// the read loop only exists to notice the peer closing
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsWriter serializes events onto a websocket. Writes are mutex-guarded
// because gorilla connections allow a single writer at a time.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) write(_ context.Context, event events.Event) error {
	data, err := events.ToJSON(event)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}
