package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// handleWS attaches a websocket to a session's fragment-event topic. Every
// event for the session is forwarded as one JSON text frame; the socket is
// read-only for the client apart from keepalive traffic.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing session_id"}`))
		_ = conn.Close()
		return
	}
	if _, err := s.cfg.Store.Ensure(r.Context(), sessionID); err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"failed to join session"}`))
		_ = conn.Close()
		return
	}

	// the request context ends with the upgrade; the subscription lives
	// until the peer goes away
	ctx, cancel := context.WithCancel(context.Background())
	events, cleanup, err := s.cfg.Broker.Subscribe(ctx, sessionID, "ws-"+uuid.NewString())
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("ws subscribe failed")
		cancel()
		_ = conn.Close()
		return
	}
	log.Info().Str("session_id", sessionID).Msg("websocket attached")

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			cancel()
			cleanup()
			_ = conn.Close()
			log.Info().Str("session_id", sessionID).Msg("websocket detached")
		}()
		for msg := range events {
			if err := conn.WriteMessage(websocket.TextMessage, msg.Payload); err != nil {
				msg.Ack()
				return
			}
			msg.Ack()
		}
	}()
}
