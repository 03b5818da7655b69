package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/tool/bingsearch"
	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/crew/internal/config"
)

// WebSearchTool wraps the provider-specific eino-ext search tool behind a
// single manifest.
type WebSearchTool struct {
	inner tool.InvokableTool
}

// NewWebSearchTool creates a web search tool for the configured provider.
// Supported: "duckduckgo" (default, no API key), "google", "bing".
func NewWebSearchTool(ctx context.Context, cfg config.WebToolConfig) (*WebSearchTool, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "duckduckgo"
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	var inner tool.InvokableTool
	var err error
	switch provider {
	case "duckduckgo":
		inner, err = duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
			ToolName:   "web_search",
			ToolDesc:   "Search the web using DuckDuckGo. Returns titles, URLs, and summaries.",
			MaxResults: maxResults,
		})
	case "google":
		if cfg.APIKey == "" || cfg.SearchEngineID == "" {
			return nil, fmt.Errorf("web_search: google provider requires api_key and search_engine_id")
		}
		inner, err = googlesearch.NewTool(ctx, &googlesearch.Config{
			APIKey:         cfg.APIKey,
			SearchEngineID: cfg.SearchEngineID,
			Num:            maxResults,
			ToolName:       "web_search",
			ToolDesc:       "Search the web using Google. Returns titles, URLs, and snippets.",
		})
	case "bing":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("web_search: bing provider requires api_key")
		}
		inner, err = bingsearch.NewTool(ctx, &bingsearch.Config{
			APIKey:     cfg.APIKey,
			MaxResults: maxResults,
			ToolName:   "web_search",
			ToolDesc:   "Search the web using Bing. Returns titles, URLs, and descriptions.",
		})
	default:
		return nil, fmt.Errorf("web_search: unknown provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("web_search: init %s: %w", provider, err)
	}

	slog.Info("web_search: provider ready", "provider", provider)
	return &WebSearchTool{inner: inner}, nil
}

// Info delegates to the provider tool.
func (t *WebSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return t.inner.Info(ctx)
}

// InvokableRun delegates to the provider tool.
func (t *WebSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	return t.inner.InvokableRun(ctx, argumentsInJSON, opts...)
}

// WebSearchManifest returns the manifest for the web_search tool.
func WebSearchManifest() *Manifest {
	return &Manifest{
		Name:        "web_search",
		Description: "Search the web",
		Tools: []ToolSpec{
			{
				Name:        "web_search",
				Description: "Search the web for current information. Returns titles, URLs, and snippets.",
				Parameters: map[string]ParamSpec{
					"query": {
						Type:        "string",
						Description: "The search query",
						Required:    true,
					},
				},
			},
		},
	}
}

// WebFetchTool fetches a URL and returns its text content.
type WebFetchTool struct {
	client    *http.Client
	maxBodyKB int
	userAgent string
}

// NewWebFetchTool creates a web fetch tool with the given config.
func NewWebFetchTool(cfg config.WebToolConfig) *WebFetchTool {
	timeout := cfg.FetchTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.FetchMaxKB
	if maxBody <= 0 {
		maxBody = 512
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "Crew/1.0 (web_fetch)"
	}

	return &WebFetchTool{
		client:    &http.Client{Timeout: timeout},
		maxBodyKB: maxBody,
		userAgent: ua,
	}
}

// WebFetchManifest returns the manifest for the web_fetch tool.
func WebFetchManifest() *Manifest {
	return &Manifest{
		Name:        "web_fetch",
		Description: "Fetch web pages",
		Tools: []ToolSpec{
			{
				Name:        "web_fetch",
				Description: "Fetch a URL and return its text content. HTTP URLs are upgraded to HTTPS. Content is truncated to the configured max size.",
				Parameters: map[string]ParamSpec{
					"url": {
						Type:        "string",
						Description: "The URL to fetch",
						Required:    true,
					},
				},
			},
		},
	}
}

type webFetchInput struct {
	URL string `json:"url"`
}

type webFetchOutput struct {
	URL     string `json:"url"`
	Status  int    `json:"status"`
	Content string `json:"content"`
}

func (t *WebFetchTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&WebFetchManifest().Tools[0]), nil
}

func (t *WebFetchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input webFetchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("web_fetch: parse input: %w", err)
	}
	if input.URL == "" {
		return "", fmt.Errorf("web_fetch: url is required")
	}

	url := input.URL
	if strings.HasPrefix(url, "http://") {
		url = "https://" + strings.TrimPrefix(url, "http://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("web_fetch: create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,*/*")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web_fetch: %w", err)
	}
	defer resp.Body.Close()

	maxBytes := int64(t.maxBodyKB) * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", fmt.Errorf("web_fetch: read body: %w", err)
	}

	content := extractText(string(body))
	if len(content) > int(maxBytes) {
		content = content[:maxBytes]
	}

	result := webFetchOutput{
		URL:     url,
		Status:  resp.StatusCode,
		Content: content,
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("web_fetch: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*WebSearchTool)(nil)
var _ tool.InvokableTool = (*WebFetchTool)(nil)

// blockTags are the tags that start a new line of extracted text. Each
// entry carries its delimiter so "p>" does not match "<pre>".
var blockTags = []string{
	"p>", "p ", "div>", "div ", "br>", "br/>", "br />",
	"h1>", "h1 ", "h2>", "h2 ", "h3>", "h3 ", "h4>", "h4 ",
	"li>", "li ", "tr>", "tr ", "td>", "td ",
}

// startsBlockTag reports whether rest, positioned just after '<', opens or
// closes a block-level tag.
func startsBlockTag(rest string) bool {
	for _, bt := range blockTags {
		if strings.HasPrefix(rest, bt) || strings.HasPrefix(rest, "/"+bt) {
			return true
		}
	}
	return false
}

// extractText strips HTML down to plain text: script and style bodies are
// dropped, block tags become newlines, common entities are decoded and
// whitespace is collapsed.
func extractText(html string) string {
	var sb strings.Builder
	sb.Grow(len(html) / 2)

	inTag := false
	inScript := false
	inStyle := false
	lastSpace := true

	lower := strings.ToLower(html)

	for i := 0; i < len(html); {
		// Skipping past the closing tag consumes its '>', so clear inTag too.
		if inScript {
			end := strings.Index(lower[i:], "</script>")
			if end < 0 {
				break
			}
			i += end + len("</script>")
			inScript = false
			inTag = false
			continue
		}
		if inStyle {
			end := strings.Index(lower[i:], "</style>")
			if end < 0 {
				break
			}
			i += end + len("</style>")
			inStyle = false
			inTag = false
			continue
		}

		r, size := utf8.DecodeRuneInString(html[i:])

		if r == '<' {
			rest := lower[i:]
			inTag = true
			switch {
			case strings.HasPrefix(rest, "<script"):
				inScript = true
			case strings.HasPrefix(rest, "<style"):
				inStyle = true
			}
			if startsBlockTag(rest[1:]) && !lastSpace {
				sb.WriteByte('\n')
				lastSpace = true
			}
			i += size
			continue
		}

		if r == '>' {
			inTag = false
			i += size
			continue
		}

		if inTag {
			i += size
			continue
		}

		if r == '&' {
			end := strings.IndexByte(html[i:], ';')
			if end > 0 && end < 10 {
				entity := html[i : i+end+1]
				switch entity {
				case "&nbsp;", "&#160;":
					sb.WriteByte(' ')
				case "&amp;":
					sb.WriteByte('&')
				case "&lt;":
					sb.WriteByte('<')
				case "&gt;":
					sb.WriteByte('>')
				case "&quot;":
					sb.WriteByte('"')
				default:
					sb.WriteString(entity)
				}
				lastSpace = false
				i += end + 1
				continue
			}
		}

		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				sb.WriteByte(' ')
				lastSpace = true
			}
			i += size
			continue
		}

		sb.WriteRune(r)
		lastSpace = false
		i += size
	}

	return strings.TrimSpace(sb.String())
}
