package tools

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/deanmachines/foundry/tool"
	"github.com/tidwall/gjson"
)

// HackerNews fetches front-page stories from the Firebase API.
type HackerNews struct {
	Client  *http.Client
	BaseURL string
}

func NewHackerNews() *HackerNews {
	return &HackerNews{
		Client:  defaultHTTPClient(),
		BaseURL: "https://hacker-news.firebaseio.com/v0",
	}
}

func (h *HackerNews) Definition() tool.Definition {
	return tool.Must(
		h.TopStories,
		tool.Name("hackernews_top_stories"),
		tool.Description("Fetch the current top Hacker News stories. Count is clamped to 1-10."),
		tool.Parameters("count"),
	)
}

// TopStories returns the titles, scores, and links of the top stories.
func (h *HackerNews) TopStories(count int) string {
	if count < 1 {
		count = 5
	}
	if count > 10 {
		count = 10
	}

	body, err := h.get("/topstories.json")
	if err != nil {
		return fmt.Sprintf("hacker news lookup failed: %v", err)
	}

	ids := gjson.GetBytes(body, "@this").Array()
	if len(ids) == 0 {
		return "hacker news returned no stories"
	}
	if len(ids) > count {
		ids = ids[:count]
	}

	var sb strings.Builder
	for i, id := range ids {
		item, err := h.get(fmt.Sprintf("/item/%d.json", id.Int()))
		if err != nil {
			continue
		}
		title := gjson.GetBytes(item, "title").String()
		score := gjson.GetBytes(item, "score").Int()
		link := gjson.GetBytes(item, "url").String()
		if link == "" {
			link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", id.Int())
		}
		fmt.Fprintf(&sb, "%d. %s (%d points) %s\n", i+1, title, score, link)
	}
	if sb.Len() == 0 {
		return "hacker news returned no readable stories"
	}
	return sb.String()
}

func (h *HackerNews) get(path string) ([]byte, error) {
	resp, err := h.Client.Get(h.BaseURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
