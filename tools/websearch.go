package tools

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/deanmachines/foundry/tool"
	"github.com/tidwall/gjson"
)

// WebSearch queries the Bing Web Search API.
type WebSearch struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
	Limit   int
}

func NewWebSearch(apiKey string) *WebSearch {
	return &WebSearch{
		Client:  defaultHTTPClient(),
		BaseURL: "https://api.bing.microsoft.com/v7.0/search",
		APIKey:  apiKey,
		Limit:   5,
	}
}

func (w *WebSearch) Definition() tool.Definition {
	return tool.Must(
		w.Search,
		tool.Name("web_search"),
		tool.Description("Search the web and return the top results with title, link, and snippet."),
		tool.Parameters("query"),
	)
}

// Search returns the top results for the query as numbered lines.
func (w *WebSearch) Search(query string) string {
	if strings.TrimSpace(query) == "" {
		return "web search needs a non-empty query"
	}

	req, err := http.NewRequest(http.MethodGet, w.BaseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return fmt.Sprintf("web search failed: %v", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", w.APIKey)

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("web search failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("web search failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("web search failed: %v", err)
	}

	results := gjson.GetBytes(body, "webPages.value").Array()
	if len(results) == 0 {
		return fmt.Sprintf("no results for %q", query)
	}
	if len(results) > w.Limit {
		results = results[:w.Limit]
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n",
			i+1,
			r.Get("name").String(),
			r.Get("url").String(),
			r.Get("snippet").String(),
		)
	}
	return sb.String()
}
