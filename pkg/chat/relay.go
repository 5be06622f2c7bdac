package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/lampwick/pkg/inference"
	"github.com/go-go-golems/lampwick/pkg/search"
	"github.com/go-go-golems/lampwick/pkg/store"
	"github.com/go-go-golems/lampwick/pkg/streams"
)

// Request describes one streaming turn.
type Request struct {
	SessionID string
	RunID     string
	Model     string
	Prompt    string
	// SystemPrompt is only applied when SystemPromptSet is true; an explicit
	// empty value clears the stored prompt.
	SystemPrompt    string
	SystemPromptSet bool
	Temperature     float64
	TopP            float64
	EnableSearch    bool
}

// Relay drives one inference run per request: it persists the user turn,
// assembles the context, streams fragments onto the session topic and
// commits the reply. Runs for the same session are serialized.
type Relay struct {
	store     store.Store
	engine    inference.Engine
	search    *search.Client
	publisher message.Publisher

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewRelay(st store.Store, engine inference.Engine, sc *search.Client, publisher message.Publisher) *Relay {
	return &Relay{
		store:     st,
		engine:    engine,
		search:    sc,
		publisher: publisher,
		locks:     map[string]*sessionLock{},
	}
}

// lockSession serializes read-log / infer / append per session id so
// concurrent streams cannot interleave log mutations. Entries are
// refcounted and reclaimed once the last holder releases, so the map does
// not grow with every session id ever seen.
func (r *Relay) lockSession(id string) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &sessionLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}

func (r *Relay) publish(e Event) {
	msg, err := e.Message()
	if err != nil {
		log.Warn().Err(err).Str("run_id", e.RunID).Msg("encode fragment event")
		return
	}
	if err := r.publisher.Publish(streams.Topic(e.SessionID), msg); err != nil {
		log.Warn().Err(err).Str("session_id", e.SessionID).Msg("publish fragment event")
	}
}

// Run executes one turn. Inference failures are reported in-band (error
// event plus an error-text assistant entry) and do not surface as a Run
// error; only store failures do. Cancellation of ctx stops the stream and
// commits whatever was accumulated at that point. Every run ends with
// exactly one terminal event on the session topic, so stream consumers
// never wait on a failed run.
func (r *Relay) Run(ctx context.Context, req Request) (err error) {
	unlock := r.lockSession(req.SessionID)
	defer unlock()

	defer func() {
		if err != nil {
			errText := "Error: " + err.Error()
			r.publish(Event{Type: EventError, SessionID: req.SessionID, RunID: req.RunID, Delta: errText, Text: errText})
		}
	}()

	sess, err := r.store.Ensure(ctx, req.SessionID)
	if err != nil {
		return errors.Wrap(err, "ensure session")
	}

	systemPrompt := sess.SystemPrompt
	if req.SystemPromptSet {
		systemPrompt = req.SystemPrompt
		if err := r.store.SetSystemPrompt(ctx, req.SessionID, req.SystemPrompt); err != nil {
			return errors.Wrap(err, "set system prompt")
		}
	}

	history, err := r.store.Messages(ctx, req.SessionID)
	if err != nil {
		return errors.Wrap(err, "read history")
	}

	// The user turn is committed before inference so the log reflects the
	// prompt even if the run fails.
	if err := r.store.Append(ctx, req.SessionID, store.Message{Role: store.RoleUser, Content: req.Prompt}); err != nil {
		return errors.Wrap(err, "append user message")
	}

	var results []search.Result
	if req.EnableSearch && r.search != nil && r.search.ShouldSearch(req.Prompt) {
		log.Debug().Str("session_id", req.SessionID).Str("prompt", req.Prompt).Msg("searching for prompt context")
		results = r.search.Search(ctx, req.Prompt)
	}

	messages := Assemble(systemPrompt, results, history, req.Prompt)

	var acc strings.Builder
	streamErr := r.engine.ChatStream(ctx, req.Model, messages, inference.Options{
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}, func(delta string) error {
		acc.WriteString(delta)
		r.publish(Event{Type: EventDelta, SessionID: req.SessionID, RunID: req.RunID, Delta: delta})
		return nil
	})

	switch {
	case streamErr == nil:
		// fall through to commit
	case errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded):
		// Caller went away; keep what was delivered so far.
		log.Info().Str("session_id", req.SessionID).Str("run_id", req.RunID).Int("accumulated", acc.Len()).Msg("stream cancelled, committing partial reply")
	default:
		errText := "Error: " + streamErr.Error()
		log.Error().Err(streamErr).Str("session_id", req.SessionID).Str("run_id", req.RunID).Msg("inference failed")
		if err := r.store.Append(context.WithoutCancel(ctx), req.SessionID, store.Message{Role: store.RoleAssistant, Content: errText}); err != nil {
			return errors.Wrap(err, "append error message")
		}
		r.publish(Event{Type: EventError, SessionID: req.SessionID, RunID: req.RunID, Delta: errText, Text: errText})
		return nil
	}

	reply := acc.String()
	if err := r.store.Append(context.WithoutCancel(ctx), req.SessionID, store.Message{Role: store.RoleAssistant, Content: reply}); err != nil {
		return errors.Wrap(err, "append assistant message")
	}
	r.publish(Event{Type: EventDone, SessionID: req.SessionID, RunID: req.RunID, Text: reply})
	return nil
}
