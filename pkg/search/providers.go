package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Result is one ranked search hit. Results are transient; they are folded
// into a single system-content block for one turn and never persisted.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Provider is a single search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// SearxNG queries a local SearXNG instance's JSON API.
type SearxNG struct {
	baseURL string
	client  *http.Client
}

func NewSearxNG(baseURL string, client *http.Client) *SearxNG {
	return &SearxNG{baseURL: baseURL, client: client}
}

func (p *SearxNG) Name() string { return "searxng" }

func (p *SearxNG) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("categories", "general")
	q.Set("language", "en")
	q.Set("safesearch", "1")
	q.Set("pageno", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build searxng request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "searxng request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("searxng status %d", resp.StatusCode)
	}
	var body struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode searxng response")
	}
	out := make([]Result, 0, limit)
	for _, r := range body.Results {
		if len(out) >= limit {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Content, Source: p.Name()})
	}
	return out, nil
}

// DuckDuckGo queries the DuckDuckGo instant-answer API. It only yields
// abstract and related-topic entries, which is why it is the fallback.
type DuckDuckGo struct {
	baseURL string
	client  *http.Client
}

func NewDuckDuckGo(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{baseURL: "https://api.duckduckgo.com", client: client}
}

func (p *DuckDuckGo) Name() string { return "duckduckgo" }

func (p *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build duckduckgo request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "duckduckgo request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("duckduckgo status %d", resp.StatusCode)
	}
	var body struct {
		Heading       string `json:"Heading"`
		Abstract      string `json:"Abstract"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode duckduckgo response")
	}
	var out []Result
	if body.Abstract != "" {
		title := body.Heading
		if title == "" {
			title = query
		}
		out = append(out, Result{Title: title, URL: body.AbstractURL, Snippet: body.Abstract, Source: p.Name()})
	}
	for _, t := range body.RelatedTopics {
		if len(out) >= limit {
			break
		}
		if t.Text == "" {
			continue
		}
		title := truncateRunes(t.Text, 100)
		out = append(out, Result{Title: title, URL: t.FirstURL, Snippet: t.Text, Source: p.Name()})
	}
	return out, nil
}
