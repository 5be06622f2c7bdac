package inference

import (
	"time"

	"github.com/ollama/ollama/api"
)

// normalizeList flattens the backend's list response into the uniform
// ModelInfo shape. Older Ollama versions populate Name, newer ones Model;
// either is accepted, and zero-value details are omitted.
func normalizeList(models []api.ListModelResponse) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, normalizeModel(m))
	}
	return out
}

func normalizeModel(m api.ListModelResponse) ModelInfo {
	name := m.Model
	if name == "" {
		name = m.Name
	}
	info := ModelInfo{
		Name:   name,
		Size:   m.Size,
		Digest: m.Digest,
	}
	if !m.ModifiedAt.IsZero() {
		info.ModifiedAt = m.ModifiedAt.Format(time.RFC3339)
	}
	if d := (ModelDetails{
		Format:            m.Details.Format,
		Family:            m.Details.Family,
		ParameterSize:     m.Details.ParameterSize,
		QuantizationLevel: m.Details.QuantizationLevel,
	}); d != (ModelDetails{}) {
		info.Details = &d
	}
	return info
}
