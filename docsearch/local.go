package docsearch

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"

	moss "github.com/inferedge/moss-go"
)

// LocalIndex is the runtime half of the docs-search integration: an
// in-memory full-text index over the same chunks the build step uploads,
// so the search widget answers keystrokes without a network round trip.
type LocalIndex struct {
	idx bleve.Index
}

// BuildLocal indexes chunks into a fresh in-memory index.
func BuildLocal(chunks []Chunk) (*LocalIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create local index: %w", err)
	}

	batch := idx.NewBatch()
	for _, c := range chunks {
		err := batch.Index(c.ID, map[string]any{
			"title": c.Title,
			"text":  c.Text,
			"path":  c.Path,
		})
		if err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("apply index batch: %w", err)
	}
	return &LocalIndex{idx: idx}, nil
}

// Close releases the index.
func (l *LocalIndex) Close() error {
	return l.idx.Close()
}

// Hit is one docs-search result, from either the local or the remote path.
type Hit struct {
	ID    string
	Title string
	Path  string
	Text  string
	Score float64
}

// Query matches text against chunk titles and bodies, titles weighted
// higher, and returns up to topK hits.
func (l *LocalIndex) Query(text string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	titleQ := bleve.NewMatchQuery(text)
	titleQ.SetField("title")
	titleQ.SetBoost(2)
	bodyQ := bleve.NewMatchQuery(text)
	bodyQ.SetField("text")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(titleQ, bodyQ))
	req.Size = topK
	req.Fields = []string{"title", "text", "path"}

	res, err := l.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("local query: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["title"].(string); ok {
			hit.Title = v
		}
		if v, ok := h.Fields["text"].(string); ok {
			hit.Text = v
		}
		if v, ok := h.Fields["path"].(string); ok {
			hit.Path = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// remoteAPI is the slice of the Moss SDK the fallback path needs.
type remoteAPI interface {
	Query(ctx context.Context, text string, opts ...moss.QueryOption) (moss.QueryResult, error)
}

// Searcher answers queries from the local index when one is loaded and
// falls back to the remote Moss index otherwise.
type Searcher struct {
	local  *LocalIndex
	remote remoteAPI
	topK   int
}

// NewSearcher builds a Searcher. local may be nil, in which case every
// query goes to the remote index.
func NewSearcher(local *LocalIndex, remote remoteAPI, topK int) *Searcher {
	if topK <= 0 {
		topK = 10
	}
	return &Searcher{local: local, remote: remote, topK: topK}
}

// Search runs the query on whichever path is available.
func (s *Searcher) Search(ctx context.Context, text string) ([]Hit, error) {
	if s.local != nil {
		return s.local.Query(text, s.topK)
	}
	if s.remote == nil {
		return nil, fmt.Errorf("search: no local index and no remote client")
	}

	res, err := s.remote.Query(ctx, text, moss.TopK(s.topK))
	if err != nil {
		return nil, fmt.Errorf("remote query: %w", err)
	}
	hits := make([]Hit, len(res.Docs))
	for i, d := range res.Docs {
		hits[i] = Hit{
			ID:    d.ID,
			Title: d.Metadata["title"],
			Path:  d.Metadata["path"],
			Text:  d.Text,
			Score: d.Score,
		}
	}
	return hits, nil
}
