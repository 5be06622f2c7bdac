package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name    string
	results []Result
	err     error
	calls   int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Search(_ context.Context, _ string, _ int) ([]Result, error) {
	p.calls++
	return p.results, p.err
}

func TestFallbackOnEmptyPrimary(t *testing.T) {
	primary := &stubProvider{name: "primary"}
	secondary := &stubProvider{name: "secondary", results: []Result{{Title: "hit", Source: "secondary"}}}
	c := NewClient(DefaultSettings(), primary, secondary)

	results := c.Search(context.Background(), "anything")
	require.Len(t, results, 1)
	assert.Equal(t, "hit", results[0].Title)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackOnPrimaryError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("connection refused")}
	secondary := &stubProvider{name: "secondary", results: []Result{{Title: "hit"}}}
	c := NewClient(DefaultSettings(), primary, secondary)

	results := c.Search(context.Background(), "anything")
	require.Len(t, results, 1)
}

func TestBothProvidersFailingYieldsEmpty(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	secondary := &stubProvider{name: "secondary", err: errors.New("also down")}
	c := NewClient(DefaultSettings(), primary, secondary)

	require.Empty(t, c.Search(context.Background(), "anything"))
}

func TestPrimaryShortCircuitsSecondary(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []Result{{Title: "hit"}}}
	secondary := &stubProvider{name: "secondary"}
	c := NewClient(DefaultSettings(), primary, secondary)

	c.Search(context.Background(), "anything")
	assert.Equal(t, 0, secondary.calls)
}

func TestShouldSearch(t *testing.T) {
	c := NewClient(DefaultSettings(), &stubProvider{name: "x"})
	assert.True(t, c.ShouldSearch("What is the latest Go release?"))
	assert.True(t, c.ShouldSearch("weather in Berlin"))
	assert.True(t, c.ShouldSearch("WHO IS the president"))
	assert.False(t, c.ShouldSearch("write me a haiku"))
}

func TestSearxNGParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "golang", r.URL.Query().Get("q"))
		require.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Go","url":"https://go.dev","content":"The Go programming language"},
			{"title":"Go wiki","url":"https://go.dev/wiki","content":"Wiki"},
			{"title":"extra1","url":"u","content":"c"},
			{"title":"extra2","url":"u","content":"c"},
			{"title":"extra3","url":"u","content":"c"},
			{"title":"overflow","url":"u","content":"c"}
		]}`))
	}))
	defer srv.Close()

	p := NewSearxNG(srv.URL, srv.Client())
	results, err := p.Search(context.Background(), "golang", 5)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "Go", results[0].Title)
	assert.Equal(t, "https://go.dev", results[0].URL)
	assert.Equal(t, "searxng", results[0].Source)
}

func TestDuckDuckGoParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Heading":"Go",
			"Abstract":"Go is a programming language.",
			"AbstractURL":"https://go.dev",
			"RelatedTopics":[
				{"Text":"Gopher - mascot","FirstURL":"https://go.dev/gopher"},
				{"Text":"","FirstURL":"ignored"}
			]
		}`))
	}))
	defer srv.Close()

	p := &DuckDuckGo{baseURL: srv.URL, client: srv.Client()}
	results, err := p.Search(context.Background(), "golang", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Go", results[0].Title)
	assert.Equal(t, "duckduckgo", results[0].Source)
	assert.Equal(t, "Gopher - mascot", results[1].Title)
}

func TestFormatResults(t *testing.T) {
	assert.Equal(t, "No search results found.", FormatResults(nil))

	long := strings.Repeat("x", 300)
	out := FormatResults([]Result{
		{Title: "First", URL: "https://a", Snippet: "short"},
		{Title: "Second", URL: "https://b", Snippet: long},
	})
	assert.Contains(t, out, "1. First")
	assert.Contains(t, out, "   URL: https://a")
	assert.Contains(t, out, "2. Second")
	assert.NotContains(t, out, long)
	assert.Contains(t, out, strings.Repeat("x", snippetLimit)+"...")
}

func TestTruncationKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, strings.Repeat("ü", 100), truncateRunes(strings.Repeat("ü", 120), 100))

	long := strings.Repeat("é", snippetLimit+50)
	out := FormatResults([]Result{{Title: "Accents", URL: "https://a", Snippet: long}})
	require.True(t, utf8.ValidString(out))
	assert.Contains(t, out, strings.Repeat("é", snippetLimit)+"...")
	assert.NotContains(t, out, long)
}

func TestDuckDuckGoTitleTruncation(t *testing.T) {
	longTitle := strings.Repeat("ñ", 120)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"RelatedTopics": []map[string]string{{"Text": longTitle, "FirstURL": "https://x"}},
		})
	}))
	defer srv.Close()

	p := &DuckDuckGo{baseURL: srv.URL, client: srv.Client()}
	results, err := p.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, strings.Repeat("ñ", 100), results[0].Title)
	assert.True(t, utf8.ValidString(results[0].Title))
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.yaml")
	require.NoError(t, os.WriteFile(path, []byte("searxng_url: http://search.internal:8888\nmax_results: 3\n"), 0o600))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "http://search.internal:8888", s.SearxNGURL)
	assert.Equal(t, 3, s.MaxResults)
	// unset fields fall back to defaults
	assert.Equal(t, 5, s.TimeoutSeconds)
	assert.NotEmpty(t, s.TriggerPhrases)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
