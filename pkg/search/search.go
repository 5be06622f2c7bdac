package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Client tries each provider in order and returns the first non-empty result
// set. Provider failures are logged and swallowed; a search can degrade to
// zero results but never fails the turn.
type Client struct {
	settings  Settings
	providers []Provider
}

// NewClient builds a client with the SearXNG-then-DuckDuckGo provider chain.
// Explicit providers replace the chain (used by tests).
func NewClient(settings Settings, providers ...Provider) *Client {
	if len(providers) == 0 {
		hc := &http.Client{Timeout: settings.timeout()}
		providers = []Provider{
			NewSearxNG(settings.SearxNGURL, hc),
			NewDuckDuckGo(hc),
		}
	}
	return &Client{settings: settings, providers: providers}
}

func (c *Client) Search(ctx context.Context, query string) []Result {
	for _, p := range c.providers {
		results, err := p.Search(ctx, query, c.settings.MaxResults)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Str("query", query).Msg("search provider failed")
			continue
		}
		if len(results) > 0 {
			log.Debug().Str("provider", p.Name()).Int("count", len(results)).Msg("search results")
			return results
		}
	}
	return nil
}

// ShouldSearch reports whether a prompt looks like it needs external
// grounding. Lexical and best-effort; false positives are fine.
func (c *Client) ShouldSearch(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, phrase := range c.settings.TriggerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

const snippetLimit = 200

// truncateRunes shortens s to at most limit runes, never splitting a
// multi-byte character.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// FormatResults renders a ranked plain-text block suitable for inclusion in
// a system message.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No search results found."
	}
	var b strings.Builder
	b.WriteString("Search Results:\n\n")
	for i, r := range results {
		snippet := truncateRunes(r.Snippet, snippetLimit)
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		fmt.Fprintf(&b, "   %s...\n\n", snippet)
	}
	return b.String()
}
