package inference

import (
	"context"

	"github.com/pkg/errors"
)

// ErrModelNotFound is returned by Registry.Model for unknown model names.
var ErrModelNotFound = errors.New("model not found")

// Message is one entry of the list submitted to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the sampling parameters passed through to the backend.
type Options struct {
	Temperature float64
	TopP        float64
}

// Engine is the inference capability: given a model and an ordered message
// list, produce text fragments. onDelta is called once per fragment in
// arrival order; returning an error aborts the stream.
type Engine interface {
	ChatStream(ctx context.Context, model string, messages []Message, opts Options, onDelta func(delta string) error) error
}

// ModelDetails mirrors the backend's model metadata when available.
type ModelDetails struct {
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
}

// ModelInfo is the uniform model shape served over HTTP regardless of what
// the backend registry returns.
type ModelInfo struct {
	Name       string        `json:"name"`
	ModifiedAt string        `json:"modified_at"`
	Size       int64         `json:"size"`
	Digest     string        `json:"digest"`
	Details    *ModelDetails `json:"details,omitempty"`
}

// Registry lists the models the inference capability can serve.
type Registry interface {
	Models(ctx context.Context) ([]ModelInfo, error)
	Model(ctx context.Context, name string) (ModelInfo, error)
}
