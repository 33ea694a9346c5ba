package moss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/inferedge/moss-go/internal/rest"
)

// IndexService manages indexes.
type IndexService struct {
	rest restDoer
	obs  *observer
}

// IndexOption configures index creation.
type IndexOption interface {
	applyIndex(*indexConfig)
}

type indexOptionFunc func(*indexConfig)

func (f indexOptionFunc) applyIndex(c *indexConfig) { f(c) }

type indexConfig struct {
	model string
}

// WithModel selects the embedding model for a new index, e.g. "moss-minilm".
// The service default is used when unset. Ignored when all documents carry
// caller-supplied embeddings.
func WithModel(id string) IndexOption {
	return indexOptionFunc(func(c *indexConfig) {
		c.model = id
	})
}

type createIndexRequest struct {
	Name  string     `json:"name"`
	Docs  []Document `json:"docs"`
	Model string     `json:"model,omitempty"`
}

type listIndexesResponse struct {
	Indexes []IndexInfo `json:"indexes"`
}

type loadIndexResponse struct {
	Name string `json:"name"`
}

// Create creates a new index with initial documents.
func (s *IndexService) Create(
	ctx context.Context, name string, docs []Document, opts ...IndexOption,
) (_ IndexInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.create", start, err) }()

	if name == "" {
		return IndexInfo{}, errors.New("create index: name is required")
	}

	cfg := &indexConfig{}
	for _, o := range opts {
		o.applyIndex(cfg)
	}

	var info IndexInfo
	req := createIndexRequest{Name: name, Docs: docs, Model: cfg.model}
	if err = s.rest.Do(ctx, http.MethodPost, "/indexes", req, &info); err != nil {
		return IndexInfo{}, fmt.Errorf("create index: %w", err)
	}
	return info, nil
}

// Ensure creates an index if it does not exist.
// If it already exists, returns its info.
func (s *IndexService) Ensure(
	ctx context.Context, name string, docs []Document, opts ...IndexOption,
) (_ IndexInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.ensure", start, err) }()

	info, err := s.Create(ctx, name, docs, opts...)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, ErrIndexAlreadyExists) {
		return IndexInfo{}, fmt.Errorf("ensure index: %w", err)
	}

	existing, err := s.Get(ctx, name)
	if err != nil {
		return IndexInfo{}, fmt.Errorf("ensure index: %w", err)
	}
	return existing, nil
}

// Get retrieves index metadata by name.
func (s *IndexService) Get(ctx context.Context, name string) (_ IndexInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.get", start, err) }()

	var info IndexInfo
	if err = s.rest.Do(ctx, http.MethodGet, "/indexes/"+rest.PathEscape(name), nil, &info); err != nil {
		return IndexInfo{}, fmt.Errorf("get index: %w", err)
	}
	return info, nil
}

// List returns all indexes in the project.
func (s *IndexService) List(ctx context.Context) (_ []IndexInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.list", start, err) }()

	var resp listIndexesResponse
	if err = s.rest.Do(ctx, http.MethodGet, "/indexes", nil, &resp); err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	return resp.Indexes, nil
}

// Load warms the index onto the low-latency query path and returns the
// loaded index name. Queries work without loading, at higher latency.
func (s *IndexService) Load(ctx context.Context, name string) (_ string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.load", start, err) }()

	var resp loadIndexResponse
	if err = s.rest.Do(ctx, http.MethodPost, "/indexes/"+rest.PathEscape(name)+"/load", nil, &resp); err != nil {
		return "", fmt.Errorf("load index: %w", err)
	}
	return resp.Name, nil
}

// Delete removes an index and all its documents.
func (s *IndexService) Delete(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.delete", start, err) }()

	if err = s.rest.Do(ctx, http.MethodDelete, "/indexes/"+rest.PathEscape(name), nil, nil); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}
