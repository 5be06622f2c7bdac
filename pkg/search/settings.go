package search

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings tunes providers and the trigger heuristic. All fields have
// defaults; a YAML file can override any subset.
type Settings struct {
	SearxNGURL     string   `yaml:"searxng_url"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxResults     int      `yaml:"max_results"`
	TriggerPhrases []string `yaml:"trigger_phrases"`
}

func DefaultSettings() Settings {
	return Settings{
		SearxNGURL:     "http://localhost:8080",
		TimeoutSeconds: 5,
		MaxResults:     5,
		TriggerPhrases: []string{
			"search", "find", "look up", "what is", "who is", "when did",
			"latest", "recent", "current", "news", "today", "weather",
			"price", "stock", "how much", "where is", "information about",
		},
	}
}

// LoadSettings reads a YAML settings file, filling unset fields from the
// defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	b, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrap(err, "read search settings")
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, errors.Wrap(err, "parse search settings")
	}
	d := DefaultSettings()
	if s.SearxNGURL == "" {
		s.SearxNGURL = d.SearxNGURL
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = d.TimeoutSeconds
	}
	if s.MaxResults <= 0 {
		s.MaxResults = d.MaxResults
	}
	if len(s.TriggerPhrases) == 0 {
		s.TriggerPhrases = d.TriggerPhrases
	}
	return s, nil
}

func (s Settings) timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}
