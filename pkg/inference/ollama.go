package inference

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Ollama talks to a locally running Ollama instance through its official
// client. It implements both Engine and Registry.
type Ollama struct {
	client *api.Client
}

var (
	_ Engine   = (*Ollama)(nil)
	_ Registry = (*Ollama)(nil)
)

// NewOllama builds a client for the given host (e.g. http://localhost:11434).
// An empty host falls back to OLLAMA_HOST / the client default.
func NewOllama(host string) (*Ollama, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, errors.Wrap(err, "ollama client from environment")
		}
		return &Ollama{client: client}, nil
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, errors.Wrapf(err, "parse ollama host %q", host)
	}
	return &Ollama{client: api.NewClient(u, http.DefaultClient)}, nil
}

func (o *Ollama) ChatStream(ctx context.Context, model string, messages []Message, opts Options, onDelta func(string) error) error {
	apiMessages := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		apiMessages = append(apiMessages, api.Message{Role: m.Role, Content: m.Content})
	}
	stream := true
	req := &api.ChatRequest{
		Model:    model,
		Messages: apiMessages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": opts.Temperature,
			"top_p":       opts.TopP,
		},
	}
	return o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		return onDelta(resp.Message.Content)
	})
}

func (o *Ollama) Models(ctx context.Context) ([]ModelInfo, error) {
	resp, err := o.client.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list ollama models")
	}
	return normalizeList(resp.Models), nil
}

func (o *Ollama) Model(ctx context.Context, name string) (ModelInfo, error) {
	models, err := o.Models(ctx)
	if err != nil {
		return ModelInfo{}, err
	}
	for _, m := range models {
		if m.Name == name {
			return m, nil
		}
	}
	return ModelInfo{}, ErrModelNotFound
}

// Probe logs backend connectivity at startup. Failures are warnings; the
// server still comes up and streams will report errors in-band.
func (o *Ollama) Probe(ctx context.Context) {
	models, err := o.Models(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not connect to ollama")
		return
	}
	log.Info().Int("models", len(models)).Msg("ollama connected")
}
