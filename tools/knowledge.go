package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/deanmachines/foundry/tool"
)

// Document is one entry in a knowledge base.
type Document struct {
	ID      string
	Title   string
	Content string
}

// Index is the retrieval seam for the knowledge tool. Vector-store
// backends implement this; tests and small deployments use the
// in-memory index below.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// Knowledge exposes index retrieval as a tool.
type Knowledge struct {
	index Index
	k     int
}

func NewKnowledge(index Index) *Knowledge {
	return &Knowledge{index: index, k: 3}
}

func (k *Knowledge) Definition() tool.Definition {
	return tool.Must(
		k.Search,
		tool.Name("search_knowledge_base"),
		tool.Description("Search the internal knowledge base and return the most relevant documents."),
		tool.Parameters("query"),
	)
}

func (k *Knowledge) Search(query string) string {
	docs, err := k.index.Search(context.Background(), query, k.k)
	if err != nil {
		return fmt.Sprintf("knowledge base search failed: %v", err)
	}
	if len(docs) == 0 {
		return fmt.Sprintf("no documents match %q", query)
	}

	var sb strings.Builder
	for i, doc := range docs {
		content := doc.Content
		if len(content) > 300 {
			content = content[:300] + "…"
		}
		fmt.Fprintf(&sb, "%d. %s\n%s\n", i+1, doc.Title, content)
	}
	return sb.String()
}

// MemoryIndex is a term-overlap index over an in-process document set.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs []Document
}

func NewMemoryIndex(docs ...Document) *MemoryIndex {
	return &MemoryIndex{docs: docs}
}

func (m *MemoryIndex) Add(doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
}

// Search scores documents by the number of query terms they contain
// and returns the k best, best first. Documents matching no term are
// excluded.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]Document, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		doc   Document
		score int
	}
	var matches []scored
	for _, doc := range m.docs {
		text := strings.ToLower(doc.Title + " " + doc.Content)
		score := 0
		for _, term := range terms {
			score += strings.Count(text, term)
		}
		if score > 0 {
			matches = append(matches, scored{doc: doc, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > k {
		matches = matches[:k]
	}

	out := make([]Document, len(matches))
	for i, m := range matches {
		out[i] = m.doc
	}
	return out, nil
}
