// Package search fetches web search results, Wikipedia summaries and page
// text for the agents' tools and for knowledge ingestion.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
	DefaultWikipediaURL  = "https://en.wikipedia.org/api/rest_v1/page/summary/"

	maxBody    = 4 << 20
	userAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 superpod/1.0"
	MaxResults = 30
)

// Result represents a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Summary is a Wikipedia page summary.
type Summary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	URL     string `json:"url"`
}

// Client performs outbound lookups.
type Client struct {
	httpClient    *http.Client
	duckDuckGoURL string
	wikipediaURL  string
}

// NewClient returns a client with the public endpoints.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		duckDuckGoURL: DefaultDuckDuckGoURL,
		wikipediaURL:  DefaultWikipediaURL,
	}
}

// WithEndpoints overrides the search endpoints.
func (c *Client) WithEndpoints(duckDuckGo, wikipedia string) *Client {
	cp := *c
	if duckDuckGo != "" {
		cp.duckDuckGoURL = duckDuckGo
	}
	if wikipedia != "" {
		cp.wikipediaURL = wikipedia
	}
	return &cp
}

func (c *Client) get(ctx context.Context, target, accept string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Search queries DuckDuckGo's HTML endpoint.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	maxResults = min(maxResults, MaxResults)

	body, _, err := c.get(ctx, c.duckDuckGoURL+"?q="+url.QueryEscape(query), "text/html")
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return parseDuckDuckGo(string(body), maxResults)
}

func parseDuckDuckGo(page string, maxResults int) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if r := extractResult(n); r.URL != "" && r.Title != "" {
				results = append(results, r)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var r Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				r.URL = attr(n, "href")
				r.Title = textContent(n)
			case hasClass(n, "result__snippet"):
				r.Snippet = textContent(n)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	r.URL = unwrapRedirect(r.URL)
	return r
}

// unwrapRedirect resolves DuckDuckGo's //duckduckgo.com/l/?uddg= links.
func unwrapRedirect(raw string) string {
	if !strings.Contains(raw, "duckduckgo.com/l/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString(" ")
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// Wikipedia returns the summary of the page best matching query.
func (c *Client) Wikipedia(ctx context.Context, query string) (*Summary, error) {
	title := strings.ReplaceAll(strings.TrimSpace(query), " ", "_")
	if title == "" {
		return nil, fmt.Errorf("query is required")
	}
	body, _, err := c.get(ctx, c.wikipediaURL+url.PathEscape(title), "application/json")
	if err != nil {
		return nil, fmt.Errorf("wikipedia lookup failed: %w", err)
	}
	var raw struct {
		Title       string `json:"title"`
		Extract     string `json:"extract"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode wikipedia summary: %w", err)
	}
	return &Summary{Title: raw.Title, Extract: raw.Extract, URL: raw.ContentURLs.Desktop.Page}, nil
}

// FetchText downloads a page and returns its readable text. Plain text and
// markdown are returned unchanged.
func (c *Client) FetchText(ctx context.Context, target string) (string, error) {
	body, contentType, err := c.get(ctx, target, "text/html,text/plain,text/markdown;q=0.9,*/*;q=0.5")
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		return string(body), nil
	}
	return HTMLToText(string(body))
}

var skipElements = map[string]bool{"script": true, "style": true, "noscript": true, "nav": true, "footer": true, "header": true, "svg": true}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "blockquote": true,
}

// HTMLToText strips markup, keeping paragraph breaks.
func HTMLToText(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				sb.WriteString(t)
				sb.WriteString(" ")
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), nil
}

// FormatResults renders results as markdown for a model.
func FormatResults(query string, results []Result) string {
	if len(results) == 0 {
		return "No results found for: " + query
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Search Results for: %s\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "## %d. %s\n**URL:** %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "\n%s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
