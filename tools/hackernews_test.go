package tools

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHackerNewsTopStories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/topstories.json":
			_, _ = w.Write([]byte(`[1,2,3]`))
		case "/item/1.json":
			_, _ = w.Write([]byte(`{"title":"First story","score":120,"url":"https://example.com/1"}`))
		case "/item/2.json":
			_, _ = w.Write([]byte(`{"title":"Ask HN: no url","score":40}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	h := NewHackerNews()
	h.BaseURL = srv.URL

	t.Run("lists stories with links and scores", func(t *testing.T) {
		out := h.TopStories(2)
		assert.Contains(t, out, "1. First story (120 points) https://example.com/1")
		assert.Contains(t, out, "2. Ask HN: no url (40 points) https://news.ycombinator.com/item?id=2")
	})

	t.Run("skips unreadable items", func(t *testing.T) {
		out := h.TopStories(3)
		assert.NotContains(t, out, "item?id=3")
	})

	t.Run("clamps the count", func(t *testing.T) {
		out := h.TopStories(0)
		assert.Contains(t, out, "First story")
	})
}

func TestHackerNewsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHackerNews()
	h.BaseURL = srv.URL
	assert.Contains(t, h.TopStories(5), "hacker news lookup failed")
}

func TestHackerNewsEmptyFrontPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	h := NewHackerNews()
	h.BaseURL = srv.URL
	assert.Equal(t, "hacker news returned no stories", h.TopStories(5))
}
