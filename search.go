package moss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/inferedge/moss-go/internal/rest"
)

// SearchService queries one index.
type SearchService struct {
	index string
	rest  restDoer
	obs   *observer
}

// QueryOption configures a query.
type QueryOption interface {
	applyQuery(*queryConfig)
}

type queryOptionFunc func(*queryConfig)

func (f queryOptionFunc) applyQuery(c *queryConfig) { f(c) }

type queryConfig struct {
	topK      int
	alpha     *float64
	embedding []float32
}

// TopK sets the number of results to return. Service default: 10.
func TopK(k int) QueryOption {
	return queryOptionFunc(func(c *queryConfig) {
		c.topK = k
	})
}

// Alpha blends semantic and keyword scores. 1 is purely semantic, 0 purely
// keyword; the service default is 0.5. Interpreted entirely by the service.
func Alpha(a float64) QueryOption {
	return queryOptionFunc(func(c *queryConfig) {
		c.alpha = &a
	})
}

// WithEmbedding supplies a precomputed query vector instead of letting the
// service embed the query text. The dimension must match the index model.
func WithEmbedding(vec []float32) QueryOption {
	return queryOptionFunc(func(c *queryConfig) {
		c.embedding = vec
	})
}

type queryRequest struct {
	Query     string    `json:"query"`
	TopK      int       `json:"top_k,omitempty"`
	Alpha     *float64  `json:"alpha,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Query runs a semantic search over the index.
func (s *SearchService) Query(
	ctx context.Context, text string, opts ...QueryOption,
) (_ QueryResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.query", start, err) }()

	if text == "" {
		return QueryResult{}, errors.New("query: text is required")
	}

	cfg := &queryConfig{}
	for _, o := range opts {
		o.applyQuery(cfg)
	}

	req := queryRequest{
		Query:     text,
		TopK:      cfg.topK,
		Alpha:     cfg.alpha,
		Embedding: cfg.embedding,
	}

	var res QueryResult
	path := "/indexes/" + rest.PathEscape(s.index) + "/query"
	if err = s.rest.Do(ctx, http.MethodPost, path, req, &res); err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}
	return res, nil
}
