package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit is used when Params.Limit is not positive.
const DefaultLimit = 20

// Params configures a search.
type Params struct {
	Query  string
	UserID string // Restrict to one reviewer when set
	Limit  int
}

// Result is the outcome of a search.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matching review.
type Hit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Author     string            `json:"author"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search runs a full-text query. Hits are ordered by relevance, then newest first.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, 0, false)
	req.SortBy([]string{"-_score", "-timestamp"})
	req.Fields = []string{"title", "author"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("title")
	req.Highlight.AddField("author")

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if t, ok := h.Fields["title"].(string); ok {
			hit.Title = t
		}
		if a, ok := h.Fields["author"].(string); ok {
			hit.Author = a
		}
		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string, len(h.Fragments))
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

// buildQuery matches the text against title, author, reviewer and review body. Titles
// weigh most. Longer terms also match with one typo.
func buildQuery(params Params) query.Query {
	text := strings.TrimSpace(params.Query)

	var main query.Query
	if text == "" {
		main = bleve.NewMatchAllQuery()
	} else {
		fields := []struct {
			name  string
			boost float64
		}{
			{"title", 3},
			{"author", 2},
			{"username", 1.5},
			{"text", 1},
		}

		var should []query.Query
		for _, f := range fields {
			mq := bleve.NewMatchQuery(text)
			mq.SetField(f.name)
			mq.SetBoost(f.boost)
			should = append(should, mq)
		}

		if len(text) >= 4 {
			fq := bleve.NewMatchQuery(text)
			fq.SetField("title")
			fq.SetFuzziness(1)
			fq.SetBoost(0.5)
			should = append(should, fq)
		}

		if !strings.Contains(text, " ") {
			pq := bleve.NewPrefixQuery(strings.ToLower(text))
			pq.SetField("title")
			should = append(should, pq)
		}

		main = bleve.NewDisjunctionQuery(should...)
	}

	if params.UserID == "" {
		return main
	}

	uq := bleve.NewTermQuery(params.UserID)
	uq.SetField("user_id")
	return bleve.NewConjunctionQuery(main, uq)
}
