package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/lampwick/pkg/chat"
)

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

// handleStream relays one turn as a chunked plain-text body, one inference
// fragment per chunk. The relay runs on the request context, so a dropped
// client cancels inference and the accumulated partial reply is committed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	model := q.Get("model")
	prompt := q.Get("prompt")
	if model == "" || prompt == "" {
		writeDetail(w, http.StatusBadRequest, "missing model or prompt")
		return
	}
	sessionID := q.Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	req := chat.Request{
		SessionID:    sessionID,
		RunID:        uuid.NewString(),
		Model:        model,
		Prompt:       prompt,
		Temperature:  parseFloat(q.Get("temperature"), 1.0),
		TopP:         parseFloat(q.Get("top_p"), 1.0),
		EnableSearch: parseBool(q.Get("enable_search"), true),
	}
	// distinguish "absent" from "explicitly empty": the latter clears the
	// stored system prompt
	if vals, ok := q["system_prompt"]; ok {
		req.SystemPromptSet = true
		req.SystemPrompt = vals[0]
	}

	ctx := r.Context()
	events, cleanup, err := s.cfg.Broker.Subscribe(ctx, sessionID, "http-"+req.RunID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("subscribe to session topic")
		writeDetail(w, http.StatusInternalServerError, "failed to attach to stream")
		return
	}
	defer cleanup()

	go func() {
		if err := s.cfg.Relay.Run(ctx, req); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Str("run_id", req.RunID).Msg("relay run failed")
		}
	}()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Session-Id", sessionID)
	flusher, canFlush := w.(http.Flusher)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			ev, err := chat.ParseEvent(msg.Payload)
			msg.Ack()
			if err != nil {
				log.Warn().Err(err).Msg("undecodable fragment event")
				continue
			}
			if ev.RunID != req.RunID {
				continue
			}
			switch ev.Type {
			case chat.EventDelta, chat.EventError:
				if _, err := w.Write([]byte(ev.Delta)); err != nil {
					return
				}
				if canFlush {
					flusher.Flush()
				}
				if ev.Type == chat.EventError {
					return
				}
			case chat.EventDone:
				return
			}
		}
	}
}
