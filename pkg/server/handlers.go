package server

import (
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/lampwick/pkg/inference"
	"github.com/go-go-golems/lampwick/pkg/search"
	"github.com/go-go-golems/lampwick/pkg/store"
)

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/sessions/new", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions/rename", s.handleRenameSession)
	s.mux.HandleFunc("POST /api/sessions/delete", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/sessions/reset", s.handleResetSession)
	s.mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleGetMessages)
	s.mux.HandleFunc("POST /api/sessions/{id}/import", s.handleImportMessages)
	s.mux.HandleFunc("GET /api/models", s.handleListModels)
	s.mux.HandleFunc("GET /api/models/{name}", s.handleGetModel)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/stream", s.handleStream)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.registerStatic()
}

func (s *Server) registerStatic() {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return
	}
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		b, err := staticFS.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "index not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(b)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// storeError maps store failures onto the 404/500 taxonomy.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	writeDetail(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.cfg.Store.Create(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.cfg.Store.List(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
		NewName   string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.cfg.Store.Rename(r.Context(), body.SessionID, body.NewName); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// idempotent: deleting an unknown session still reports success
	if err := s.cfg.Store.Delete(r.Context(), body.SessionID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.cfg.Store.Reset(r.Context(), body.SessionID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.cfg.Store.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleImportMessages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []store.Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	count, err := s.cfg.Store.Import(r.Context(), r.PathValue("id"), body.Messages)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.cfg.Registry.Models(r.Context())
	if err != nil {
		// degrade to an empty list, same as search: the UI stays usable
		log.Warn().Err(err).Msg("list models failed")
		writeJSON(w, http.StatusOK, []inference.ModelInfo{})
		return
	}
	if models == nil {
		models = []inference.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	model, err := s.cfg.Registry.Model(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, inference.ErrModelNotFound) {
			writeDetail(w, http.StatusNotFound, "Model not found")
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeDetail(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	results := s.cfg.Search.Search(r.Context(), query)
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}
