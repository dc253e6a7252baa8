package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	fetchBodyLimit    = 1 << 20
	fetchOutputLimit  = 50000
	searchMaxResults  = 20
	searchDefaultHits = 10
)

// WebFetch retrieves a URL and returns its content as text.
type WebFetch struct {
	client *http.Client
}

func NewWebFetch() *WebFetch {
	return &WebFetch{client: &http.Client{Timeout: 30 * time.Second}}
}

func (w *WebFetch) Spec() Spec {
	return Spec{
		Name:        "webfetch",
		Description: "Fetch content from a URL. Returns the page content as text.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to fetch",
				},
			},
			"required": []string{"url"},
		},
	}
}

func (w *WebFetch) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	rawURL, ok := args["url"].(string)
	if !ok || rawURL == "" {
		return &Result{Error: ErrInvalidArgs}, ErrInvalidArgs
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &Result{Title: "webfetch", Output: "Invalid URL: " + err.Error(), Error: err}, nil
	}
	if parsed.Scheme == "http" {
		parsed.Scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return &Result{Title: "webfetch", Output: err.Error(), Error: err}, nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; goalflow/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := w.client.Do(req)
	if err != nil {
		return &Result{Title: "webfetch", Output: "Fetch failed: " + err.Error(), Error: err}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d", resp.StatusCode)
		return &Result{Title: "webfetch", Output: err.Error(), Error: err}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return &Result{Title: "webfetch", Output: err.Error(), Error: err}, nil
	}

	content := htmlToText(string(body))
	if len(content) > fetchOutputLimit {
		content = content[:fetchOutputLimit] + "\n... (content truncated)"
	}

	return &Result{
		Title:  "Fetched " + parsed.Host,
		Output: content,
		Metadata: map[string]any{
			"url":         parsed.String(),
			"status":      resp.StatusCode,
			"contentType": resp.Header.Get("Content-Type"),
		},
	}, nil
}

// WebSearch queries the DuckDuckGo instant answer API.
type WebSearch struct {
	client *http.Client
}

func NewWebSearch() *WebSearch {
	return &WebSearch{client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebSearch) Spec() Spec {
	return Spec{
		Name:        "websearch",
		Description: "Search the web using DuckDuckGo. Returns search results.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
				"max_results": map[string]any{
					"type":        "number",
					"description": "Maximum number of results (default: 10)",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (w *WebSearch) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return &Result{Error: ErrInvalidArgs}, ErrInvalidArgs
	}
	maxResults := intArg(args, "max_results", searchDefaultHits)
	if maxResults > searchMaxResults {
		maxResults = searchMaxResults
	}

	results, err := w.search(ctx, query, maxResults)
	if err != nil {
		return &Result{Title: "websearch", Output: "Search failed: " + err.Error(), Error: err}, nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		sb.WriteString("No results found")
	}

	return &Result{
		Title:    "Search: " + query,
		Output:   sb.String(),
		Metadata: map[string]any{"query": query, "results": len(results)},
	}, nil
}

type searchHit struct {
	Title   string
	URL     string
	Snippet string
}

func (w *WebSearch) search(ctx context.Context, query string, maxResults int) ([]searchHit, error) {
	apiURL := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1&skip_disambig=1",
		url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "goalflow/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ddg struct {
		Abstract       string `json:"Abstract"`
		AbstractURL    string `json:"AbstractURL"`
		AbstractSource string `json:"AbstractSource"`
		RelatedTopics  []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
		Results []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"Results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ddg); err != nil {
		return nil, err
	}

	var hits []searchHit
	if ddg.Abstract != "" && ddg.AbstractURL != "" {
		hits = append(hits, searchHit{Title: ddg.AbstractSource, URL: ddg.AbstractURL, Snippet: ddg.Abstract})
	}
	for _, r := range ddg.Results {
		if len(hits) >= maxResults {
			break
		}
		hits = append(hits, searchHit{Title: hitTitle(r.Text), URL: r.FirstURL, Snippet: r.Text})
	}
	for _, r := range ddg.RelatedTopics {
		if len(hits) >= maxResults {
			break
		}
		if r.FirstURL != "" {
			hits = append(hits, searchHit{Title: hitTitle(r.Text), URL: r.FirstURL, Snippet: r.Text})
		}
	}
	return hits, nil
}

func hitTitle(text string) string {
	if idx := strings.Index(text, " - "); idx > 0 {
		return text[:idx]
	}
	if len(text) > 60 {
		return text[:60] + "..."
	}
	return text
}

var (
	scriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	commentRe = regexp.MustCompile(`<!--.*?-->`)
	breakRe   = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>|</tr>`)
	itemRe    = regexp.MustCompile(`(?i)<li[^>]*>`)
	hOpenRe   = regexp.MustCompile(`(?i)<h[1-6][^>]*>`)
	hCloseRe  = regexp.MustCompile(`(?i)</h[1-6]>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	blanksRe  = regexp.MustCompile(`\n{3,}`)
)

func htmlToText(html string) string {
	html = scriptRe.ReplaceAllString(html, "")
	html = styleRe.ReplaceAllString(html, "")
	html = commentRe.ReplaceAllString(html, "")
	html = breakRe.ReplaceAllString(html, "\n")
	html = itemRe.ReplaceAllString(html, "- ")
	html = hOpenRe.ReplaceAllString(html, "\n## ")
	html = hCloseRe.ReplaceAllString(html, "\n")
	html = tagRe.ReplaceAllString(html, "")

	for entity, repl := range map[string]string{
		"&nbsp;": " ", "&amp;": "&", "&lt;": "<",
		"&gt;": ">", "&quot;": `"`, "&#39;": "'",
	} {
		html = strings.ReplaceAll(html, entity, repl)
	}

	html = spaceRe.ReplaceAllString(html, " ")
	html = blanksRe.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}

var (
	_ Executor = (*WebFetch)(nil)
	_ Executor = (*WebSearch)(nil)
)
